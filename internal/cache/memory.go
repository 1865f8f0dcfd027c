package cache

import (
	"context"
	"errors"
	"time"

	"github.com/coocood/freecache"

	"github.com/kjstillabower/matchboard/internal/models"
)

const defaultMemorySizeMB = 1

// MemoryStore keeps the encoded record in a freecache segment. Contents are
// lost when the process exits.
type MemoryStore struct {
	cache *freecache.Cache
	key   []byte
	ttl   int
}

// NewMemoryStore allocates sizeMB of cache. retention of zero never expires.
func NewMemoryStore(key string, sizeMB int, retention time.Duration) (*MemoryStore, error) {
	if key == "" {
		key = DefaultKey
	}
	if sizeMB <= 0 {
		sizeMB = defaultMemorySizeMB
	}
	ttl := 0
	if retention > 0 {
		ttl = max(int(retention.Seconds()), 1)
	}
	return &MemoryStore{
		cache: freecache.NewCache(sizeMB * 1024 * 1024),
		key:   []byte(key),
		ttl:   ttl,
	}, nil
}

func (s *MemoryStore) Load(ctx context.Context) (models.CacheRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.CacheRecord{}, false, err
	}
	raw, err := s.cache.Get(s.key)
	if errors.Is(err, freecache.ErrNotFound) {
		return models.CacheRecord{}, false, nil
	}
	if err != nil {
		return models.CacheRecord{}, false, err
	}
	rec, err := Decode(raw)
	if err != nil {
		return models.CacheRecord{}, false, err
	}
	return rec, true, nil
}

func (s *MemoryStore) Save(ctx context.Context, rec models.CacheRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := Encode(rec)
	if err != nil {
		return err
	}
	return s.cache.Set(s.key, raw, s.ttl)
}

// saveRaw stores raw bytes without encoding. Used by tests.
func (s *MemoryStore) saveRaw(raw []byte) error {
	return s.cache.Set(s.key, raw, s.ttl)
}

func (s *MemoryStore) Discard(ctx context.Context) error {
	s.cache.Del(s.key)
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryStore) Close() error {
	s.cache.Clear()
	return nil
}

func (s *MemoryStore) Name() string { return BackendMemory }
