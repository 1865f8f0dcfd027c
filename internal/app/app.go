// Package app wires configuration into the provider client, cache store and
// match coordinator shared by the HTTP service and the CLI.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kjstillabower/matchboard/internal/cache"
	"github.com/kjstillabower/matchboard/internal/circuitbreaker"
	"github.com/kjstillabower/matchboard/internal/client"
	"github.com/kjstillabower/matchboard/internal/config"
	"github.com/kjstillabower/matchboard/internal/observability"
	"github.com/kjstillabower/matchboard/internal/service"
)

// CircuitComponent labels the provider circuit breaker in metrics.
const CircuitComponent = "genai_api"

// App holds the wired components.
type App struct {
	Client  client.CompletionClient
	Store   cache.Store
	Matches *service.MatchService
}

// New builds the components described by cfg. A missing or rejected
// credential does not fail: the client is replaced by one that always
// reports the credential error, so the coordinator falls back.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	c := NewClient(cfg, logger)

	store, err := cache.Open(ctx, StoreOptions(cfg), logger)
	if err != nil {
		return nil, fmt.Errorf("open cache store: %w", err)
	}

	matches := service.NewMatchService(c, store, service.Config{
		Freshness: cfg.FreshnessWindow,
		Cooldown:  cfg.RefreshCooldown,
		Prompt:    service.BuildPrompt(ScheduleFrom(cfg)),
	}, logger)

	return &App{Client: c, Store: store, Matches: matches}, nil
}

// Close releases the cache store.
func (a *App) Close() error {
	return a.Store.Close()
}

// NewClient returns the Gemini client guarded by a circuit breaker, or an
// UnavailableClient when no usable credential is configured.
func NewClient(cfg *config.Config, logger *zap.Logger) client.CompletionClient {
	if cfg.CredentialMissing() {
		logger.Warn("no provider API key configured; serving cached or placeholder matches")
		return client.NewUnavailableClient(client.ErrMissingCredential)
	}

	gc, err := client.NewGeminiClientWithRetry(
		cfg.GenAIAPIKey,
		cfg.GenAIAPIURL,
		cfg.GenAIModel,
		cfg.GenAITimeout,
		cfg.RetryAttempts,
		cfg.RetryBaseDelay,
		cfg.RetryMaxDelay,
	)
	if err != nil {
		logger.Warn("provider client unavailable", zap.Error(err))
		return client.NewUnavailableClient(err)
	}

	gc.SetCircuitBreaker(circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: cfg.CircuitFailureThreshold,
		SuccessThreshold: cfg.CircuitSuccessThreshold,
		Timeout:          cfg.CircuitTimeout,
		Component:        CircuitComponent,
		IsFailure:        client.CountsAgainstCircuit,
		OnStateChange: func(from, to circuitbreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("component", CircuitComponent),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			observability.RecordCircuitBreakerTransition(CircuitComponent, from.String(), to.String(), int(to))
		},
	}))
	observability.CircuitBreakerState.WithLabelValues(CircuitComponent).Set(0)
	return gc
}

// StoreOptions maps the cache section of cfg onto cache.Options.
func StoreOptions(cfg *config.Config) cache.Options {
	return cache.Options{
		Backend:               cfg.CacheBackend,
		Key:                   cfg.CacheKey,
		Dir:                   cfg.CacheDir,
		MemorySizeMB:          cfg.MemoryCacheSizeMB,
		MemcachedAddrs:        cfg.MemcachedAddrs,
		MemcachedTimeout:      cfg.MemcachedTimeout,
		MemcachedMaxIdleConns: cfg.MemcachedMaxIdleConns,
		Retention:             cfg.CacheRetention,
		SQLitePath:            cfg.SQLitePath,
	}
}

// ScheduleFrom overlays the configured schedule on service.DefaultSchedule.
func ScheduleFrom(cfg *config.Config) service.Schedule {
	s := service.DefaultSchedule()
	if len(cfg.ScheduleTeams) > 0 {
		s.Teams = cfg.ScheduleTeams
	}
	if cfg.ScheduleNationalTeam != "" {
		s.NationalTeam = cfg.ScheduleNationalTeam
	}
	if len(cfg.ScheduleCompetitions) > 0 {
		s.Competitions = cfg.ScheduleCompetitions
	}
	if len(cfg.ScheduleExcluded) > 0 {
		s.Excluded = cfg.ScheduleExcluded
	}
	if cfg.ScheduleHorizonDays > 0 {
		s.HorizonDays = cfg.ScheduleHorizonDays
	}
	return s
}
