package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/matchboard/internal/models"
	"github.com/kjstillabower/matchboard/internal/observability"
)

// ErrWarmIncomplete is returned by Warm when the coordinator could not
// produce live or fresh cached data.
var ErrWarmIncomplete = errors.New("cache warm did not produce live data")

// MatchFetcher is implemented by the service layer.
// Used by Warmer to avoid a circular dependency on the service package.
type MatchFetcher interface {
	GetMatches(ctx context.Context, forceRefresh bool) models.Result
}

// Warmer performs the startup fetch so the first page view is served from
// cache, and optionally repeats it on an interval.
type Warmer struct {
	fetcher MatchFetcher
	logger  *zap.Logger
}

// NewWarmer creates a Warmer that uses the given fetcher and logger.
func NewWarmer(fetcher MatchFetcher, logger *zap.Logger) *Warmer {
	return &Warmer{fetcher: fetcher, logger: logger}
}

// Warm runs one non-forced fetch. A fresh cache hit counts as warm.
func (w *Warmer) Warm(ctx context.Context) error {
	start := time.Now()
	observability.CacheWarmingTotal.Inc()

	res := w.fetcher.GetMatches(ctx, false)

	duration := time.Since(start).Seconds()
	observability.CacheWarmingDurationSeconds.Observe(duration)
	if w.logger != nil {
		w.logger.Info("cache warming complete",
			zap.String("provenance", string(res.Provenance)),
			zap.Int("matches", len(res.Matches)),
			zap.Float64("duration_seconds", duration))
	}
	if res.Failed() {
		observability.CacheWarmingErrorsTotal.Inc()
		return fmt.Errorf("%w: %s: %s", ErrWarmIncomplete, res.Reason, res.Warning)
	}
	return nil
}

// WarmPeriodic runs an initial Warm, then repeats at interval until ctx is done.
// Each run only reaches the provider once the freshness window has lapsed,
// so interval should be shorter than that window.
func (w *Warmer) WarmPeriodic(ctx context.Context, interval time.Duration) error {
	if err := w.Warm(ctx); err != nil && w.logger != nil {
		w.logger.Warn("initial cache warm failed", zap.Error(err))
	}
	if interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Warm(ctx); err != nil && w.logger != nil {
				w.logger.Warn("periodic cache warm failed", zap.Error(err))
			}
		}
	}
}
