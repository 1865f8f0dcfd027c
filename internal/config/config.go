// Package config loads service configuration from config/{ENV_NAME}.yaml,
// config/secrets.yaml, a .env file and environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kjstillabower/matchboard/internal/validation"
)

// ErrConfigNotFound is returned when config/{ENV_NAME}.yaml does not exist.
var ErrConfigNotFound = errors.New("config file not found")

// Config holds service configuration loaded from YAML and env.
type Config struct {
	Env string

	ServerPort     string
	RequestTimeout time.Duration

	GenAIAPIKey  string
	GenAIAPIURL  string
	GenAIModel   string
	GenAITimeout time.Duration

	FreshnessWindow time.Duration
	RefreshCooldown time.Duration

	CacheBackend          string // file, memory, memcached or sqlite
	CacheKey              string
	CacheDir              string
	CacheRetention        time.Duration
	MemoryCacheSizeMB     int
	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int
	SQLitePath            string

	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	RateLimitRPS   int
	RateLimitBurst int

	CircuitFailureThreshold int
	CircuitSuccessThreshold int
	CircuitTimeout          time.Duration

	WarmOnStart  bool
	WarmInterval time.Duration

	ScheduleTeams        []string
	ScheduleNationalTeam string
	ScheduleCompetitions []string
	ScheduleExcluded     []string
	ScheduleHorizonDays  int

	CORSAllowedOrigins []string

	ShutdownTimeout  time.Duration
	DegradedWindow   time.Duration
	DegradedErrorPct int
}

// CredentialMissing reports whether no usable provider key is configured.
// The service still starts; every live fetch takes the fallback path.
func (c *Config) CredentialMissing() bool {
	return validation.PlaceholderCredential(c.GenAIAPIKey)
}

type fileConfig struct {
	Server struct {
		Port           string `yaml:"port"`
		RequestTimeout string `yaml:"request_timeout"`
	} `yaml:"server"`

	GenAI struct {
		URL     string `yaml:"url"`
		Model   string `yaml:"model"`
		Timeout string `yaml:"timeout"`
	} `yaml:"genai"`

	Matches struct {
		FreshnessWindow string `yaml:"freshness_window"`
		RefreshCooldown string `yaml:"refresh_cooldown"`
	} `yaml:"matches"`

	Cache struct {
		Backend      string `yaml:"backend"`
		Key          string `yaml:"key"`
		Dir          string `yaml:"dir"`
		Retention    string `yaml:"retention"`
		MemorySizeMB int    `yaml:"memory_size_mb"`
		Memcached    struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
		SQLite struct {
			Path string `yaml:"path"`
		} `yaml:"sqlite"`
		WarmOnStart  *bool  `yaml:"warm_on_start"`
		WarmInterval string `yaml:"warm_interval"`
	} `yaml:"cache"`

	Reliability struct {
		RetryMaxAttempts        int    `yaml:"retry_max_attempts"`
		RetryBaseDelay          string `yaml:"retry_base_delay"`
		RetryMaxDelay           string `yaml:"retry_max_delay"`
		RateLimitRPS            int    `yaml:"rate_limit_rps"`
		RateLimitBurst          int    `yaml:"rate_limit_burst"`
		CircuitFailureThreshold int    `yaml:"circuit_failure_threshold"`
		CircuitSuccessThreshold int    `yaml:"circuit_success_threshold"`
		CircuitTimeout          string `yaml:"circuit_timeout"`
	} `yaml:"reliability"`

	Schedule struct {
		Teams        []string `yaml:"teams"`
		NationalTeam string   `yaml:"national_team"`
		Competitions []string `yaml:"competitions"`
		Excluded     []string `yaml:"excluded"`
		HorizonDays  int      `yaml:"horizon_days"`
	} `yaml:"schedule"`

	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`

	Health struct {
		DegradedWindow   string `yaml:"degraded_window"`
		DegradedErrorPct int    `yaml:"degraded_error_pct"`
	} `yaml:"health"`
}

type secretsFile struct {
	GeminiAPIKey string `yaml:"gemini_api_key"`
}

// Load reads configuration relative to the working directory. Call from
// project root.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	return LoadFrom(cwd)
}

// LoadFrom reads root/.env, root/config/{ENV_NAME}.yaml (default dev) and
// root/config/secrets.yaml. The API key comes from GEMINI_API_KEY, then
// API_KEY, then the secrets file; a missing key is not an error.
func LoadFrom(root string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(root, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	configPath := filepath.Join(root, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{Env: env}

	cfg.ServerPort = firstNonEmpty(os.Getenv("SERVER_PORT"), fc.Server.Port, "8080")
	cfg.RequestTimeout = parseDuration(fc.Server.RequestTimeout, 90*time.Second)

	key, err := loadAPIKey(root)
	if err != nil {
		return nil, err
	}
	cfg.GenAIAPIKey = key
	cfg.GenAIAPIURL = firstNonEmpty(fc.GenAI.URL, "https://generativelanguage.googleapis.com/v1beta")
	cfg.GenAIModel = firstNonEmpty(fc.GenAI.Model, "gemini-2.5-flash")
	cfg.GenAITimeout = parseDurationOrZero(fc.GenAI.Timeout, 45*time.Second)

	cfg.FreshnessWindow = parseDuration(fc.Matches.FreshnessWindow, 6*time.Hour)
	cfg.RefreshCooldown = parseDurationOrZero(fc.Matches.RefreshCooldown, 60*time.Second)

	cfg.CacheBackend = strings.ToLower(firstNonEmpty(os.Getenv("CACHE_BACKEND"), fc.Cache.Backend, "file"))
	cfg.CacheKey = firstNonEmpty(fc.Cache.Key, "matchboard_cache_v3")
	cfg.CacheDir = firstNonEmpty(os.Getenv("CACHE_DIR"), fc.Cache.Dir, ".cache")
	cfg.CacheRetention = parseDuration(fc.Cache.Retention, 7*24*time.Hour)
	cfg.MemoryCacheSizeMB = fc.Cache.MemorySizeMB
	if cfg.MemoryCacheSizeMB <= 0 {
		cfg.MemoryCacheSizeMB = 1
	}
	cfg.MemcachedAddrs = firstNonEmpty(os.Getenv("MEMCACHED_ADDRS"), fc.Cache.Memcached.Addrs, "localhost:11211")
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}
	cfg.SQLitePath = firstNonEmpty(fc.Cache.SQLite.Path, filepath.Join(cfg.CacheDir, "matchboard.db"))
	cfg.WarmOnStart = true
	if fc.Cache.WarmOnStart != nil {
		cfg.WarmOnStart = *fc.Cache.WarmOnStart
	}
	cfg.WarmInterval = parseDurationOrZero(fc.Cache.WarmInterval, 0)

	cfg.RetryAttempts = fc.Reliability.RetryMaxAttempts
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	cfg.RetryBaseDelay = parseDuration(fc.Reliability.RetryBaseDelay, 500*time.Millisecond)
	cfg.RetryMaxDelay = parseDuration(fc.Reliability.RetryMaxDelay, 4*time.Second)
	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 20
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 40
	}
	cfg.CircuitFailureThreshold = fc.Reliability.CircuitFailureThreshold
	if cfg.CircuitFailureThreshold <= 0 {
		cfg.CircuitFailureThreshold = 5
	}
	cfg.CircuitSuccessThreshold = fc.Reliability.CircuitSuccessThreshold
	if cfg.CircuitSuccessThreshold <= 0 {
		cfg.CircuitSuccessThreshold = 1
	}
	cfg.CircuitTimeout = parseDuration(fc.Reliability.CircuitTimeout, 5*time.Minute)

	cfg.ScheduleTeams = fc.Schedule.Teams
	cfg.ScheduleNationalTeam = fc.Schedule.NationalTeam
	cfg.ScheduleCompetitions = fc.Schedule.Competitions
	cfg.ScheduleExcluded = fc.Schedule.Excluded
	cfg.ScheduleHorizonDays = fc.Schedule.HorizonDays

	cfg.CORSAllowedOrigins = fc.CORS.AllowedOrigins

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.DegradedWindow = parseDuration(fc.Health.DegradedWindow, 5*time.Minute)
	cfg.DegradedErrorPct = fc.Health.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 50
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadAPIKey(root string) (string, error) {
	if key := firstNonEmpty(os.Getenv("GEMINI_API_KEY"), os.Getenv("API_KEY")); key != "" {
		return key, nil
	}
	secretsData, err := os.ReadFile(filepath.Join(root, "config", "secrets.yaml"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read secrets file: %w", err)
	}
	var sec secretsFile
	if err := yaml.Unmarshal(secretsData, &sec); err != nil {
		return "", fmt.Errorf("parse secrets file: %w", err)
	}
	return strings.TrimSpace(sec.GeminiAPIKey), nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Returns zero or negative durations as-is (caller should handle fallback).
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate performs post-load validation. RequestTimeout is raised to cover
// the provider timeout, and WarmInterval is kept below the freshness window.
func validate(cfg *Config) error {
	if cfg.GenAITimeout <= 0 {
		return fmt.Errorf("genai.timeout must be positive")
	}
	if cfg.RefreshCooldown < 0 {
		return fmt.Errorf("matches.refresh_cooldown must not be negative")
	}
	if cfg.WarmInterval < 0 {
		return fmt.Errorf("cache.warm_interval must not be negative")
	}
	if cfg.WarmInterval >= cfg.FreshnessWindow {
		// A tick at the window edge still finds a fresh record and skips the
		// provider, doubling the real refresh period.
		cfg.WarmInterval = cfg.FreshnessWindow - cfg.FreshnessWindow/12
	}
	if cfg.RequestTimeout <= cfg.GenAITimeout {
		cfg.RequestTimeout = cfg.GenAITimeout + 5*time.Second
	}
	if cfg.DegradedErrorPct > 100 {
		return fmt.Errorf("health.degraded_error_pct must be at most 100, got %d", cfg.DegradedErrorPct)
	}
	switch cfg.CacheBackend {
	case "file", "memory", "memcached", "sqlite":
	default:
		return fmt.Errorf("cache.backend must be file, memory, memcached or sqlite, got %q", cfg.CacheBackend)
	}
	return nil
}
