// Package cache persists the single match-schedule CacheRecord. Every backend
// stores the same JSON {data, timestamp} envelope under one fixed key.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/kjstillabower/matchboard/internal/models"
)

// DefaultKey is the storage key of the one CacheRecord.
const DefaultKey = "matchboard_cache_v3"

// Backend names accepted by Open.
const (
	BackendFile      = "file"
	BackendMemory    = "memory"
	BackendMemcached = "memcached"
	BackendSQLite    = "sqlite"
)

var (
	// ErrCorrupt is returned by Load when the stored payload cannot be decoded
	// into a CacheRecord.
	ErrCorrupt = errors.New("corrupt cache record")
	// ErrUnknownBackend is returned by Open for an unsupported backend name.
	ErrUnknownBackend = errors.New("unknown cache backend")
)

// Store holds at most one CacheRecord. Load reports (zero, false, nil) when
// nothing is stored.
type Store interface {
	Load(ctx context.Context) (models.CacheRecord, bool, error)
	Save(ctx context.Context, rec models.CacheRecord) error
	Discard(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
	Name() string
}

// Options selects and configures a backend.
type Options struct {
	Backend string
	Key     string

	// file
	Dir string

	// memory
	MemorySizeMB int

	// memcached
	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	// memory and memcached expiry; zero keeps the record as long as the
	// backend allows.
	Retention time.Duration

	// sqlite
	SQLitePath string
}

// Open builds the configured backend wrapped with metrics.
func Open(ctx context.Context, opts Options, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Key == "" {
		opts.Key = DefaultKey
	}

	var (
		s   Store
		err error
	)
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", BackendFile:
		s, err = NewFileStore(opts.Dir, opts.Key)
	case BackendMemory:
		s, err = NewMemoryStore(opts.Key, opts.MemorySizeMB, opts.Retention)
	case BackendMemcached:
		s, err = NewMemcachedStore(opts.MemcachedAddrs, opts.Key, opts.MemcachedTimeout, opts.MemcachedMaxIdleConns, opts.Retention)
	case BackendSQLite:
		s, err = NewSQLiteStore(ctx, opts.SQLitePath, opts.Key, logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("cache store opened", zap.String("backend", s.Name()), zap.String("key", opts.Key))
	return Instrument(s), nil
}

type envelope struct {
	Data      *models.Snapshot `json:"data"`
	Timestamp *int64           `json:"timestamp"`
}

// Encode serializes rec as the stored envelope.
func Encode(rec models.CacheRecord) ([]byte, error) {
	if rec.Data.Matches == nil {
		rec.Data.Matches = []models.Match{}
	}
	if rec.Data.Sources == nil {
		rec.Data.Sources = []models.GroundingSource{}
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode cache record: %w", err)
	}
	return raw, nil
}

// Decode parses a stored envelope. Missing data or timestamp, or a payload
// that is not JSON at all, is ErrCorrupt.
func Decode(raw []byte) (models.CacheRecord, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return models.CacheRecord{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if env.Data == nil || env.Timestamp == nil || *env.Timestamp <= 0 {
		return models.CacheRecord{}, fmt.Errorf("%w: missing data or timestamp", ErrCorrupt)
	}
	rec := models.CacheRecord{Data: *env.Data, Timestamp: *env.Timestamp}
	if rec.Data.Matches == nil {
		rec.Data.Matches = []models.Match{}
	}
	if rec.Data.Sources == nil {
		rec.Data.Sources = []models.GroundingSource{}
	}
	return rec, nil
}
