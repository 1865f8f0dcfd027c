package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/kjstillabower/matchboard/internal/models"
	"github.com/kjstillabower/matchboard/internal/observability"
)

type instrumentedStore struct {
	next Store
}

// Instrument records latency and error metrics for every operation on s.
func Instrument(s Store) Store {
	if _, ok := s.(*instrumentedStore); ok {
		return s
	}
	return &instrumentedStore{next: s}
}

func (s *instrumentedStore) Load(ctx context.Context) (models.CacheRecord, bool, error) {
	start := time.Now()
	rec, ok, err := s.next.Load(ctx)
	observe("load", start, err)
	if errors.Is(err, ErrCorrupt) {
		observability.StoreCorruptRecordsTotal.Inc()
	}
	return rec, ok, err
}

func (s *instrumentedStore) Save(ctx context.Context, rec models.CacheRecord) error {
	start := time.Now()
	err := s.next.Save(ctx, rec)
	observe("save", start, err)
	return err
}

func (s *instrumentedStore) Discard(ctx context.Context) error {
	start := time.Now()
	err := s.next.Discard(ctx)
	observe("discard", start, err)
	return err
}

func (s *instrumentedStore) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}

func (s *instrumentedStore) Close() error {
	return s.next.Close()
}

func (s *instrumentedStore) Name() string {
	return s.next.Name()
}

func observe(op string, start time.Time, err error) {
	result := "success"
	if err != nil {
		result = "error"
		observability.StoreErrorsTotal.WithLabelValues(op, errorCategory(err)).Inc()
	}
	observability.StoreOperationDurationSeconds.WithLabelValues(op, result).Observe(time.Since(start).Seconds())
}

func errorCategory(err error) string {
	switch {
	case errors.Is(err, ErrCorrupt):
		return "corrupt"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	}
	errStr := err.Error()
	if strings.Contains(errStr, "timeout") {
		return "timeout"
	}
	if strings.Contains(errStr, "connection") || strings.Contains(errStr, "network") {
		return "connection"
	}
	return "backend"
}
