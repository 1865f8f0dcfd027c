//go:build integration
// +build integration

// Package testhelpers builds live components for integration tests.
package testhelpers

import (
	"context"
	"os"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/kjstillabower/matchboard/internal/cache"
	"github.com/kjstillabower/matchboard/internal/client"
	"github.com/kjstillabower/matchboard/internal/service"
)

// IntegrationTestConfig holds configuration for integration tests.
type IntegrationTestConfig struct {
	APIKey         string
	APIURL         string
	Model          string
	CacheBackend   string // file, memory, memcached or sqlite
	MemcachedAddrs string
}

// GetIntegrationConfig loads integration test configuration from environment.
// Skips test if GEMINI_API_KEY is not set.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	t.Helper()
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		t.Skip("GEMINI_API_KEY not set, skipping integration test")
	}

	cacheBackend := os.Getenv("INTEGRATION_CACHE_BACKEND")
	if cacheBackend == "" {
		cacheBackend = cache.BackendFile
	}
	memcachedAddrs := os.Getenv("MEMCACHED_ADDRS")
	if memcachedAddrs == "" {
		memcachedAddrs = "localhost:11211"
	}

	return IntegrationTestConfig{
		APIKey:         apiKey,
		APIURL:         os.Getenv("GEMINI_API_URL"),
		Model:          os.Getenv("GEMINI_MODEL"),
		CacheBackend:   cacheBackend,
		MemcachedAddrs: memcachedAddrs,
	}
}

// SetupIntegrationClient creates a live Gemini client.
func SetupIntegrationClient(t *testing.T, cfg IntegrationTestConfig) *client.GeminiClient {
	t.Helper()
	c, err := client.NewGeminiClientWithRetry(cfg.APIKey, cfg.APIURL, cfg.Model, 60*time.Second, 2, time.Second, 4*time.Second)
	if err != nil {
		t.Fatalf("NewGeminiClientWithRetry() error = %v", err)
	}
	return c
}

// SetupIntegrationService creates a coordinator over a live client and a
// store under t.TempDir. When memcached is requested but unreachable the file
// backend is used instead. The returned cleanup closes the store.
func SetupIntegrationService(t *testing.T, cfg IntegrationTestConfig) (*service.MatchService, cache.Store, func()) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	dir := t.TempDir()
	opts := cache.Options{
		Backend:               cfg.CacheBackend,
		Key:                   "integration_" + time.Now().Format("150405.000"),
		Dir:                   dir,
		MemorySizeMB:          1,
		MemcachedAddrs:        cfg.MemcachedAddrs,
		MemcachedTimeout:      500 * time.Millisecond,
		MemcachedMaxIdleConns: 2,
		Retention:             time.Hour,
		SQLitePath:            dir + "/integration.db",
	}

	ctx := context.Background()
	store, err := cache.Open(ctx, opts, logger)
	if err != nil {
		t.Fatalf("cache.Open() error = %v", err)
	}
	if err := store.Ping(ctx); err != nil {
		t.Logf("%s not available (%v), using file store", store.Name(), err)
		_ = store.Close()
		opts.Backend = cache.BackendFile
		if store, err = cache.Open(ctx, opts, logger); err != nil {
			t.Fatalf("cache.Open(file) error = %v", err)
		}
	}

	svc := service.NewMatchService(SetupIntegrationClient(t, cfg), store, service.Config{
		Cooldown: time.Second,
	}, logger)
	return svc, store, func() { _ = store.Close() }
}

// ClearCache discards the saved record so the next call goes live.
func ClearCache(ctx context.Context, store cache.Store) {
	_ = store.Discard(ctx)
}
