package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/kjstillabower/matchboard/internal/models"
)

const (
	keyPrefix = "matchboard:"

	defaultRetention = 7 * 24 * time.Hour
	// memcached treats larger relative expirations as absolute unix times.
	maxRelativeExpiration = 30 * 24 * time.Hour
)

// MemcachedStore keeps the record in memcached.
type MemcachedStore struct {
	client *memcache.Client
	key    string
	expSec int32
}

// NewMemcachedStore creates a MemcachedStore. addrs is a comma-separated list
// (e.g. "localhost:11211" or "host1:11211,host2:11211"). Retention is clamped
// to 30 days and defaults to 7.
func NewMemcachedStore(addrs, key string, timeout time.Duration, maxIdleConns int, retention time.Duration) (*MemcachedStore, error) {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	if key == "" {
		key = DefaultKey
	}
	return &MemcachedStore{
		client: client,
		key:    keyPrefix + key,
		expSec: expirationSeconds(retention),
	}, nil
}

func expirationSeconds(retention time.Duration) int32 {
	if retention <= 0 {
		retention = defaultRetention
	}
	if retention > maxRelativeExpiration {
		retention = maxRelativeExpiration
	}
	return int32(retention / time.Second)
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

func (s *MemcachedStore) Load(ctx context.Context) (models.CacheRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.CacheRecord{}, false, err
	}
	item, err := s.client.Get(s.key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return models.CacheRecord{}, false, nil
	}
	if err != nil {
		return models.CacheRecord{}, false, err
	}
	rec, err := Decode(item.Value)
	if err != nil {
		return models.CacheRecord{}, false, err
	}
	return rec, true, nil
}

func (s *MemcachedStore) Save(ctx context.Context, rec models.CacheRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := Encode(rec)
	if err != nil {
		return err
	}
	return s.client.Set(&memcache.Item{
		Key:        s.key,
		Value:      raw,
		Expiration: s.expSec,
	})
}

func (s *MemcachedStore) Discard(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.client.Delete(s.key); err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
		return err
	}
	return nil
}

// Ping checks if memcached is reachable. Used for health checks.
func (s *MemcachedStore) Ping(ctx context.Context) error {
	return s.client.Ping()
}

// Close closes the memcached client connections. Call during shutdown.
func (s *MemcachedStore) Close() error {
	return s.client.Close()
}

func (s *MemcachedStore) Name() string { return BackendMemcached }
