// Package service implements the fetch-cache coordinator: serve a fresh
// cached schedule, or make one live provider call, or fall back to stale
// cache or built-in placeholder matches.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/matchboard/internal/cache"
	"github.com/kjstillabower/matchboard/internal/client"
	"github.com/kjstillabower/matchboard/internal/extract"
	"github.com/kjstillabower/matchboard/internal/models"
	"github.com/kjstillabower/matchboard/internal/observability"
)

const (
	DefaultFreshness = 6 * time.Hour
	DefaultCooldown  = 60 * time.Second

	// storeTimeout bounds each store operation. Store calls ignore the
	// caller's cancellation so an expired request still sees the record.
	storeTimeout = 5 * time.Second
)

// Config tunes the coordinator. A zero Freshness uses DefaultFreshness; a zero
// Cooldown disables the forced-refresh cooldown. An empty Prompt is built
// from DefaultSchedule.
type Config struct {
	Freshness time.Duration
	Cooldown  time.Duration
	Prompt    string
}

// MatchService owns the single cache slot and the provider client. Calls to
// GetMatches run one at a time.
type MatchService struct {
	client client.CompletionClient
	store  cache.Store
	cfg    Config
	logger *zap.Logger

	mu         sync.Mutex
	lastForced time.Time
	now        func() time.Time
}

// NewMatchService creates a MatchService with the provided dependencies.
func NewMatchService(c client.CompletionClient, store cache.Store, cfg Config, logger *zap.Logger) *MatchService {
	if cfg.Freshness <= 0 {
		cfg.Freshness = DefaultFreshness
	}
	if cfg.Cooldown < 0 {
		cfg.Cooldown = 0
	}
	if cfg.Prompt == "" {
		cfg.Prompt = BuildPrompt(DefaultSchedule())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MatchService{
		client: c,
		store:  store,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// GetMatches returns the schedule to display. It never fails: every error is
// folded into the Result as a provenance, a warning and a reason.
func (s *MatchService) GetMatches(ctx context.Context, forceRefresh bool) models.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.now()
	logger := observability.LoggerFromContext(ctx, s.logger)

	rec, haveCache := s.loadRecord(ctx, logger)

	if !forceRefresh && haveCache && rec.IsFresh(start, s.cfg.Freshness) {
		observability.CacheHitsTotal.WithLabelValues("fresh").Inc()
		observability.CacheRecordAgeSeconds.Observe(rec.Age(start).Seconds())
		logger.Debug("serving fresh cache", zap.Duration("age", rec.Age(start)))
		return s.finish(fromCache(rec, "", ""))
	}

	if forceRefresh {
		if wait := s.cooldownRemaining(start); wait > 0 {
			observability.RefreshCooldownRejectionsTotal.Inc()
			warning := cooldownWarning(wait)
			logger.Info("forced refresh rejected by cooldown", zap.Duration("retry_in", wait))
			if haveCache {
				return s.finish(fromCache(rec, models.ReasonCooldown, warning))
			}
			return s.finish(s.fallback(start, models.ReasonCooldown, warning))
		}
		s.lastForced = start
	}

	var snap models.Snapshot
	err := ctx.Err()
	if err != nil {
		err = fmt.Errorf("request ended before provider call: %w", err)
	} else {
		snap, err = s.fetchLive(ctx)
	}
	if err == nil {
		fetchedAt := s.now()
		saveCtx, cancel := storeContext(ctx)
		saveErr := s.store.Save(saveCtx, models.NewCacheRecord(snap, fetchedAt))
		cancel()
		if saveErr != nil {
			logger.Warn("cache save failed", zap.Error(saveErr))
		}
		logger.Info("live schedule fetched",
			zap.Int("matches", len(snap.Matches)),
			zap.Int("sources", len(snap.Sources)),
			zap.Bool("forced", forceRefresh),
			zap.Duration("duration", fetchedAt.Sub(start)))
		return s.finish(models.Result{
			Matches:    snap.Matches,
			Sources:    snap.Sources,
			Provenance: models.ProvenanceAPI,
			FetchedAt:  fetchedAt.UTC(),
		})
	}

	reason := Classify(err)
	logger.Warn("live fetch failed",
		zap.Error(err),
		zap.String("reason", string(reason)),
		zap.String("category", string(client.CategorizeError(err))),
		zap.Bool("have_cache", haveCache))

	if haveCache {
		age := rec.Age(s.now())
		observability.CacheHitsTotal.WithLabelValues("stale").Inc()
		observability.CacheRecordAgeSeconds.Observe(math.Max(age.Seconds(), 0))
		return s.finish(fromCache(rec, reason, staleWarning(reason, age)))
	}

	logger.Warn("no cached schedule, serving placeholder matches", zap.String("reason", string(reason)))
	return s.finish(s.fallback(start, reason, fallbackWarning(reason)))
}

// RefreshAvailableIn reports how long until a forced refresh will be accepted.
func (s *MatchService) RefreshAvailableIn() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cooldownRemaining(s.now())
}

func (s *MatchService) cooldownRemaining(now time.Time) time.Duration {
	if s.cfg.Cooldown <= 0 || s.lastForced.IsZero() {
		return 0
	}
	wait := s.cfg.Cooldown - now.Sub(s.lastForced)
	if wait < 0 {
		return 0
	}
	return wait
}

// loadRecord reads the slot. Corrupt records are discarded; any other store
// error is treated as an empty slot.
func (s *MatchService) loadRecord(ctx context.Context, logger *zap.Logger) (models.CacheRecord, bool) {
	ctx, cancel := storeContext(ctx)
	defer cancel()
	rec, ok, err := s.store.Load(ctx)
	if err == nil {
		return rec, ok
	}
	if errors.Is(err, cache.ErrCorrupt) {
		logger.Warn("discarding corrupt cache record", zap.Error(err))
		if discardErr := s.store.Discard(ctx); discardErr != nil {
			logger.Warn("cache discard failed", zap.Error(discardErr))
		}
		return models.CacheRecord{}, false
	}
	logger.Warn("cache load failed", zap.Error(err))
	return models.CacheRecord{}, false
}

// storeContext detaches ctx from the caller's cancellation and bounds it by
// storeTimeout.
func storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
}

func (s *MatchService) fetchLive(ctx context.Context) (models.Snapshot, error) {
	completion, err := s.client.GenerateGrounded(ctx, s.cfg.Prompt)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("generate schedule: %w", err)
	}
	matches, err := extract.Matches(completion.Text)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("extract matches: %w", err)
	}
	sources := completion.Sources
	if sources == nil {
		sources = []models.GroundingSource{}
	}
	return models.Snapshot{Matches: matches, Sources: sources}, nil
}

func (s *MatchService) fallback(now time.Time, reason models.Reason, warning string) models.Result {
	return models.Result{
		Matches:    PlaceholderMatches(now),
		Sources:    []models.GroundingSource{},
		Provenance: models.ProvenanceFallback,
		Warning:    warning,
		Reason:     reason,
		FetchedAt:  now.UTC(),
	}
}

func (s *MatchService) finish(res models.Result) models.Result {
	if res.Matches == nil {
		res.Matches = []models.Match{}
	}
	if res.Sources == nil {
		res.Sources = []models.GroundingSource{}
	}
	observability.RecordResult(string(res.Provenance), string(res.Reason))
	return res
}

func fromCache(rec models.CacheRecord, reason models.Reason, warning string) models.Result {
	return models.Result{
		Matches:    rec.Data.Matches,
		Sources:    rec.Data.Sources,
		Provenance: models.ProvenanceCache,
		Warning:    warning,
		Reason:     reason,
		FetchedAt:  rec.CapturedAt(),
	}
}

// Classify maps a live-fetch error to the reason reported to the view.
// An open circuit breaker counts as a provider failure.
func Classify(err error) models.Reason {
	switch {
	case errors.Is(err, client.ErrMissingCredential), errors.Is(err, client.ErrInvalidAPIKey):
		return models.ReasonCredential
	case client.IsRateLimit(err):
		return models.ReasonRateLimited
	case errors.Is(err, extract.ErrNoJSON), errors.Is(err, extract.ErrInvalidJSON), errors.Is(err, client.ErrEmptyResponse):
		return models.ReasonMalformed
	default:
		return models.ReasonUpstream
	}
}
