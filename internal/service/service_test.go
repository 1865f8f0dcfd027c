package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kjstillabower/matchboard/internal/cache"
	"github.com/kjstillabower/matchboard/internal/circuitbreaker"
	"github.com/kjstillabower/matchboard/internal/client"
	"github.com/kjstillabower/matchboard/internal/models"
	"github.com/kjstillabower/matchboard/internal/observability"
)

const oneMatchJSON = `{"matches":[{"id":"m1","homeTeam":"Palmeiras","awayTeam":"Santos","league":"Brasileirão","dateTime":"2026-02-01T19:00:00Z","status":"SCHEDULED"}]}`

type mockCompletionClient struct {
	completion client.Completion
	err        error
	calls      atomic.Int32
	delay      time.Duration
}

func (m *mockCompletionClient) GenerateGrounded(ctx context.Context, prompt string) (client.Completion, error) {
	m.calls.Add(1)
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	return m.completion, m.err
}

func (m *mockCompletionClient) ValidateAPIKey(ctx context.Context) error {
	return m.err
}

type mockStore struct {
	mu        sync.Mutex
	rec       models.CacheRecord
	have      bool
	loadErr   error
	saveErr   error
	saves     int
	discarded int
}

func (m *mockStore) Load(ctx context.Context) (models.CacheRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return models.CacheRecord{}, false, m.loadErr
	}
	return m.rec, m.have, nil
}

func (m *mockStore) Save(ctx context.Context, rec models.CacheRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.rec, m.have = rec, true
	m.saves++
	return nil
}

func (m *mockStore) Discard(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.discarded++
	m.loadErr = nil
	m.rec, m.have = models.CacheRecord{}, false
	return nil
}

func (m *mockStore) Ping(ctx context.Context) error { return nil }
func (m *mockStore) Close() error                   { return nil }
func (m *mockStore) Name() string                   { return "mock" }

var baseTime = time.Date(2026, 1, 20, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestService(c client.CompletionClient, store cache.Store, cfg Config) (*MatchService, *fakeClock) {
	if cfg.Cooldown == 0 {
		cfg.Cooldown = DefaultCooldown
	}
	svc := NewMatchService(c, store, cfg, nil)
	clock := &fakeClock{t: baseTime}
	svc.now = clock.Now
	return svc, clock
}

func cachedRecord(age time.Duration) models.CacheRecord {
	return models.NewCacheRecord(models.Snapshot{
		Matches: []models.Match{{ID: "cached-1", HomeTeam: "Corinthians", AwayTeam: "Mirassol", DateTime: "2026-02-10T22:00:00Z", Status: models.StatusScheduled}},
		Sources: []models.GroundingSource{{Title: "ge", URI: "https://ge.globo.com"}},
	}, baseTime.Add(-age))
}

// TestGetMatches_FreshCacheNoNetwork verifies that a record younger than the
// freshness window is served without calling the provider.
func TestGetMatches_FreshCacheNoNetwork(t *testing.T) {
	mc := &mockCompletionClient{completion: client.Completion{Text: oneMatchJSON}}
	store := &mockStore{rec: cachedRecord(time.Hour), have: true}
	svc, _ := newTestService(mc, store, Config{})

	res := svc.GetMatches(context.Background(), false)

	if mc.calls.Load() != 0 {
		t.Errorf("provider calls = %d, want 0", mc.calls.Load())
	}
	if res.Provenance != models.ProvenanceCache {
		t.Errorf("Provenance = %q, want cache", res.Provenance)
	}
	if res.Warning != "" || res.Reason != "" {
		t.Errorf("fresh cache hit should carry no warning, got %q / %q", res.Warning, res.Reason)
	}
	if len(res.Matches) != 1 || res.Matches[0].ID != "cached-1" {
		t.Errorf("Matches = %+v", res.Matches)
	}
	if !res.FetchedAt.Equal(baseTime.Add(-time.Hour)) {
		t.Errorf("FetchedAt = %v, want capture time", res.FetchedAt)
	}
}

// TestGetMatches_ExpiredContextServesFreshRecord verifies a request whose
// deadline has already passed still reads the saved record.
func TestGetMatches_ExpiredContextServesFreshRecord(t *testing.T) {
	store, err := cache.NewFileStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	if err := store.Save(context.Background(), cachedRecord(time.Hour)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	mc := &mockCompletionClient{completion: client.Completion{Text: oneMatchJSON}}
	svc, _ := newTestService(mc, store, Config{})

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	res := svc.GetMatches(ctx, false)

	if mc.calls.Load() != 0 {
		t.Errorf("provider calls = %d, want 0", mc.calls.Load())
	}
	if res.Provenance != models.ProvenanceCache || res.Warning != "" {
		t.Errorf("result = %q %q, want fresh cache", res.Provenance, res.Warning)
	}
	if len(res.Matches) != 1 || res.Matches[0].ID != "cached-1" {
		t.Errorf("Matches = %+v", res.Matches)
	}
}

// TestGetMatches_CanceledContextServesStaleRecord verifies a canceled request
// skips the provider and falls back to the stale record, not placeholders.
func TestGetMatches_CanceledContextServesStaleRecord(t *testing.T) {
	store, err := cache.NewFileStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	if err := store.Save(context.Background(), cachedRecord(10*time.Hour)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	mc := &mockCompletionClient{completion: client.Completion{Text: oneMatchJSON}}
	svc, _ := newTestService(mc, store, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := svc.GetMatches(ctx, false)

	if mc.calls.Load() != 0 {
		t.Errorf("provider calls = %d, want 0", mc.calls.Load())
	}
	if res.Provenance != models.ProvenanceCache {
		t.Fatalf("Provenance = %q, want cache", res.Provenance)
	}
	if res.Reason != models.ReasonUpstream || !strings.Contains(res.Warning, "saved matches") {
		t.Errorf("result = %q / %q", res.Reason, res.Warning)
	}
}

// TestGetMatches_FutureRecordIsStale verifies a record stamped ahead of the
// local clock is refreshed instead of served as fresh.
func TestGetMatches_FutureRecordIsStale(t *testing.T) {
	mc := &mockCompletionClient{completion: client.Completion{Text: oneMatchJSON}}
	store := &mockStore{rec: cachedRecord(-2 * time.Hour), have: true}
	svc, _ := newTestService(mc, store, Config{})

	res := svc.GetMatches(context.Background(), false)

	if mc.calls.Load() != 1 {
		t.Errorf("provider calls = %d, want 1", mc.calls.Load())
	}
	if res.Provenance != models.ProvenanceAPI {
		t.Errorf("Provenance = %q, want api", res.Provenance)
	}
}

// TestGetMatches_StaleCacheFetchesLive verifies that an expired record triggers
// a live call whose result replaces the record.
func TestGetMatches_StaleCacheFetchesLive(t *testing.T) {
	mc := &mockCompletionClient{completion: client.Completion{Text: oneMatchJSON}}
	store := &mockStore{rec: cachedRecord(7 * time.Hour), have: true}
	svc, _ := newTestService(mc, store, Config{})

	res := svc.GetMatches(context.Background(), false)

	if mc.calls.Load() != 1 {
		t.Fatalf("provider calls = %d, want 1", mc.calls.Load())
	}
	if res.Provenance != models.ProvenanceAPI {
		t.Errorf("Provenance = %q, want api", res.Provenance)
	}
	if store.rec.Data.Matches[0].ID != "m1" || store.rec.Timestamp != baseTime.UnixMilli() {
		t.Errorf("stored record = %+v, want new live snapshot", store.rec)
	}
}

// TestGetMatches_ForcedRefreshBypassesFreshCache verifies that a forced
// refresh always attempts a live call when not cooling down.
func TestGetMatches_ForcedRefreshBypassesFreshCache(t *testing.T) {
	mc := &mockCompletionClient{completion: client.Completion{Text: oneMatchJSON}}
	store := &mockStore{rec: cachedRecord(time.Minute), have: true}
	svc, _ := newTestService(mc, store, Config{})

	res := svc.GetMatches(context.Background(), true)

	if mc.calls.Load() != 1 {
		t.Errorf("provider calls = %d, want 1", mc.calls.Load())
	}
	if res.Provenance != models.ProvenanceAPI {
		t.Errorf("Provenance = %q, want api", res.Provenance)
	}
}

// TestGetMatches_Cooldown verifies that a second forced refresh inside the
// cooldown makes no live call, and that one after it does.
func TestGetMatches_Cooldown(t *testing.T) {
	mc := &mockCompletionClient{completion: client.Completion{Text: oneMatchJSON}}
	store := &mockStore{}
	svc, clock := newTestService(mc, store, Config{Cooldown: time.Minute})
	ctx := context.Background()

	if res := svc.GetMatches(ctx, true); res.Provenance != models.ProvenanceAPI {
		t.Fatalf("first forced refresh Provenance = %q, want api", res.Provenance)
	}

	clock.Advance(20 * time.Second)
	res := svc.GetMatches(ctx, true)
	if mc.calls.Load() != 1 {
		t.Errorf("provider calls = %d, want 1 during cooldown", mc.calls.Load())
	}
	if res.Provenance != models.ProvenanceCache || res.Reason != models.ReasonCooldown {
		t.Errorf("cooldown result = %q/%q, want cache/cooldown", res.Provenance, res.Reason)
	}
	if !strings.Contains(res.Warning, "40s") {
		t.Errorf("Warning = %q, want remaining seconds", res.Warning)
	}
	if res.Failed() {
		t.Error("cooldown rejection should not count as a failure")
	}
	if got := svc.RefreshAvailableIn(); got != 40*time.Second {
		t.Errorf("RefreshAvailableIn() = %v, want 40s", got)
	}

	clock.Advance(41 * time.Second)
	if res := svc.GetMatches(ctx, true); res.Provenance != models.ProvenanceAPI {
		t.Errorf("after cooldown Provenance = %q, want api", res.Provenance)
	}
	if mc.calls.Load() != 2 {
		t.Errorf("provider calls = %d, want 2", mc.calls.Load())
	}
}

// TestGetMatches_CooldownWithoutCache verifies the placeholder set is served
// when a forced refresh is rejected and nothing is cached.
func TestGetMatches_CooldownWithoutCache(t *testing.T) {
	mc := &mockCompletionClient{err: fmt.Errorf("%w: HTTP 503", client.ErrUpstreamFailure)}
	svc, clock := newTestService(mc, &mockStore{}, Config{})
	ctx := context.Background()

	svc.GetMatches(ctx, true)
	clock.Advance(time.Second)
	res := svc.GetMatches(ctx, true)

	if mc.calls.Load() != 1 {
		t.Errorf("provider calls = %d, want 1", mc.calls.Load())
	}
	if res.Provenance != models.ProvenanceFallback || res.Reason != models.ReasonCooldown {
		t.Errorf("result = %q/%q, want fallback/cooldown", res.Provenance, res.Reason)
	}
	if len(res.Matches) == 0 {
		t.Error("fallback result has no matches")
	}
}

// TestGetMatches_CooldownDisabled verifies a zero cooldown never rejects.
func TestGetMatches_CooldownDisabled(t *testing.T) {
	mc := &mockCompletionClient{completion: client.Completion{Text: oneMatchJSON}}
	svc := NewMatchService(mc, &mockStore{}, Config{}, nil)

	svc.GetMatches(context.Background(), true)
	svc.GetMatches(context.Background(), true)

	if mc.calls.Load() != 2 {
		t.Errorf("provider calls = %d, want 2", mc.calls.Load())
	}
}

// TestGetMatches_SingleMatchPersisted verifies a one-match response is
// returned as api and stored with its sources.
func TestGetMatches_SingleMatchPersisted(t *testing.T) {
	sources := []models.GroundingSource{{Title: "cbf", URI: "https://www.cbf.com.br"}}
	mc := &mockCompletionClient{completion: client.Completion{Text: oneMatchJSON, Sources: sources}}
	store := &mockStore{}
	svc, _ := newTestService(mc, store, Config{})

	res := svc.GetMatches(context.Background(), false)

	if res.Provenance != models.ProvenanceAPI || res.Warning != "" {
		t.Fatalf("result = %q / %q, want api without warning", res.Provenance, res.Warning)
	}
	if len(res.Matches) != 1 || res.Matches[0].HomeTeam != "Palmeiras" {
		t.Errorf("Matches = %+v", res.Matches)
	}
	if store.saves != 1 || len(store.rec.Data.Matches) != 1 || len(store.rec.Data.Sources) != 1 {
		t.Errorf("stored record = %+v (saves=%d)", store.rec, store.saves)
	}
}

// TestGetMatches_WrappedJSONExtracted verifies prose and code fences around
// the JSON object do not prevent extraction.
func TestGetMatches_WrappedJSONExtracted(t *testing.T) {
	text := "Here are the fixtures I found:\n```json\n" + oneMatchJSON + "\n```\nLet me know if you need more."
	mc := &mockCompletionClient{completion: client.Completion{Text: text}}
	svc, _ := newTestService(mc, &mockStore{}, Config{})

	res := svc.GetMatches(context.Background(), false)

	if res.Provenance != models.ProvenanceAPI || len(res.Matches) != 1 {
		t.Errorf("result = %q with %d matches, want api with 1", res.Provenance, len(res.Matches))
	}
}

// TestGetMatches_RateLimitWithCache verifies a 429 with any cached record
// returns that record with a rate limit warning.
func TestGetMatches_RateLimitWithCache(t *testing.T) {
	mc := &mockCompletionClient{err: fmt.Errorf("%w: HTTP 429: RESOURCE_EXHAUSTED", client.ErrRateLimited)}
	store := &mockStore{rec: cachedRecord(30 * time.Hour), have: true}
	svc, _ := newTestService(mc, store, Config{})

	res := svc.GetMatches(context.Background(), false)

	if res.Provenance != models.ProvenanceCache {
		t.Errorf("Provenance = %q, want cache", res.Provenance)
	}
	if res.Reason != models.ReasonRateLimited {
		t.Errorf("Reason = %q, want rate_limited", res.Reason)
	}
	if !strings.Contains(strings.ToLower(res.Warning), "rate limit") {
		t.Errorf("Warning = %q, want mention of rate limit", res.Warning)
	}
	if !strings.Contains(res.Warning, "30 hours") {
		t.Errorf("Warning = %q, want age", res.Warning)
	}
	if store.saves != 0 {
		t.Error("failed fetch should not overwrite the record")
	}
}

// TestGetMatches_FailureWithoutCache verifies the placeholder set is served
// when the live call fails and nothing is cached.
func TestGetMatches_FailureWithoutCache(t *testing.T) {
	mc := &mockCompletionClient{err: errors.New("dial tcp: connection refused")}
	svc, _ := newTestService(mc, &mockStore{}, Config{})

	res := svc.GetMatches(context.Background(), false)

	if res.Provenance != models.ProvenanceFallback {
		t.Errorf("Provenance = %q, want fallback", res.Provenance)
	}
	if len(res.Matches) == 0 {
		t.Error("fallback result has no matches")
	}
	if res.Reason != models.ReasonUpstream || !strings.Contains(res.Warning, "both unavailable") {
		t.Errorf("Reason/Warning = %q / %q", res.Reason, res.Warning)
	}
}

// TestGetMatches_MissingCredential verifies the unavailable client short
// circuits to the failure path with a credential warning.
func TestGetMatches_MissingCredential(t *testing.T) {
	store := &mockStore{rec: cachedRecord(8 * time.Hour), have: true}
	svc, _ := newTestService(client.NewUnavailableClient(nil), store, Config{})

	res := svc.GetMatches(context.Background(), false)

	if res.Provenance != models.ProvenanceCache || res.Reason != models.ReasonCredential {
		t.Errorf("result = %q/%q, want cache/credential", res.Provenance, res.Reason)
	}
	if !strings.Contains(res.Warning, "API key") {
		t.Errorf("Warning = %q", res.Warning)
	}
}

// TestGetMatches_MalformedResponse verifies prose without JSON is reported as
// an unreadable response.
func TestGetMatches_MalformedResponse(t *testing.T) {
	mc := &mockCompletionClient{completion: client.Completion{Text: "I could not find any fixtures."}}
	svc, _ := newTestService(mc, &mockStore{}, Config{})

	res := svc.GetMatches(context.Background(), false)

	if res.Provenance != models.ProvenanceFallback || res.Reason != models.ReasonMalformed {
		t.Errorf("result = %q/%q, want fallback/malformed_response", res.Provenance, res.Reason)
	}
}

// TestGetMatches_CorruptRecordDiscarded verifies a corrupt record is removed
// and the call proceeds as if nothing were cached.
func TestGetMatches_CorruptRecordDiscarded(t *testing.T) {
	mc := &mockCompletionClient{completion: client.Completion{Text: oneMatchJSON}}
	store := &mockStore{loadErr: fmt.Errorf("%w: unexpected EOF", cache.ErrCorrupt)}
	svc, _ := newTestService(mc, store, Config{})

	res := svc.GetMatches(context.Background(), false)

	if store.discarded != 1 {
		t.Errorf("discards = %d, want 1", store.discarded)
	}
	if res.Provenance != models.ProvenanceAPI {
		t.Errorf("Provenance = %q, want api", res.Provenance)
	}
}

// TestGetMatches_StoreErrorsTolerated verifies backend read and write errors
// never surface to the caller.
func TestGetMatches_StoreErrorsTolerated(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	mc := &mockCompletionClient{completion: client.Completion{Text: oneMatchJSON}}
	store := &mockStore{loadErr: errors.New("connection refused"), saveErr: errors.New("disk full")}
	svc := NewMatchService(mc, store, Config{}, zap.New(core))

	res := svc.GetMatches(context.Background(), false)

	if res.Provenance != models.ProvenanceAPI {
		t.Errorf("Provenance = %q, want api", res.Provenance)
	}
	if store.discarded != 0 {
		t.Error("backend errors must not discard the record")
	}
	if logs.FilterMessage("cache load failed").Len() != 1 || logs.FilterMessage("cache save failed").Len() != 1 {
		t.Errorf("expected load and save warnings, got %v", logs.All())
	}
}

// TestGetMatches_OpenCircuitIsUpstream verifies an open breaker is reported
// as a provider failure.
func TestGetMatches_OpenCircuitIsUpstream(t *testing.T) {
	mc := &mockCompletionClient{err: fmt.Errorf("%w: %w", client.ErrUpstreamFailure, circuitbreaker.ErrOpen)}
	svc, _ := newTestService(mc, &mockStore{rec: cachedRecord(10 * time.Hour), have: true}, Config{})

	res := svc.GetMatches(context.Background(), false)

	if res.Reason != models.ReasonUpstream || !strings.Contains(res.Warning, "Could not connect") {
		t.Errorf("result = %q / %q", res.Reason, res.Warning)
	}
}

// TestGetMatches_SerializesCallers verifies concurrent callers queue behind
// one live call and then read the record it wrote.
func TestGetMatches_SerializesCallers(t *testing.T) {
	mc := &mockCompletionClient{completion: client.Completion{Text: oneMatchJSON}, delay: 10 * time.Millisecond}
	store := &mockStore{}
	svc, _ := newTestService(mc, store, Config{})

	var wg sync.WaitGroup
	results := make([]models.Result, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = svc.GetMatches(context.Background(), false)
		}(i)
	}
	wg.Wait()

	if mc.calls.Load() != 1 {
		t.Errorf("provider calls = %d, want 1", mc.calls.Load())
	}
	api := 0
	for _, r := range results {
		switch r.Provenance {
		case models.ProvenanceAPI:
			api++
		case models.ProvenanceCache:
		default:
			t.Errorf("unexpected provenance %q", r.Provenance)
		}
	}
	if api != 1 {
		t.Errorf("api results = %d, want 1", api)
	}
}

// TestGetMatches_RequestLogger verifies the request-scoped logger from the
// context is used.
func TestGetMatches_RequestLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	mc := &mockCompletionClient{err: client.ErrRateLimited}
	svc, _ := newTestService(mc, &mockStore{}, Config{})

	ctx := observability.WithLogger(context.Background(), zap.New(core))
	svc.GetMatches(ctx, false)

	if logs.FilterMessage("live fetch failed").Len() != 1 {
		t.Errorf("expected live fetch failure on request logger, got %v", logs.All())
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want models.Reason
	}{
		{client.ErrMissingCredential, models.ReasonCredential},
		{fmt.Errorf("x: %w", client.ErrInvalidAPIKey), models.ReasonCredential},
		{client.ErrRateLimited, models.ReasonRateLimited},
		{errors.New("googleapi: RESOURCE_EXHAUSTED"), models.ReasonRateLimited},
		{client.ErrEmptyResponse, models.ReasonMalformed},
		{errors.New("boom"), models.ReasonUpstream},
	}
	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.want {
			t.Errorf("Classify(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestPlaceholderMatches(t *testing.T) {
	got := PlaceholderMatches(baseTime)
	if len(got) == 0 {
		t.Fatal("no placeholder matches")
	}
	for _, m := range got {
		k, ok := m.Kickoff()
		if !ok || !k.After(baseTime) {
			t.Errorf("placeholder %s kickoff %q not in the future", m.ID, m.DateTime)
		}
		if m.Status != models.StatusScheduled {
			t.Errorf("placeholder %s status = %q", m.ID, m.Status)
		}
	}
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt(Schedule{})
	for _, want := range []string{"Palmeiras", "Botafogo-SP", "90 days", "Série A2", `"matches"`, "SCHEDULED"} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}

	custom := BuildPrompt(Schedule{Teams: []string{"Guarani"}, HorizonDays: 30})
	if !strings.Contains(custom, "ONLY these clubs: Guarani.") || !strings.Contains(custom, "30 days") {
		t.Errorf("custom prompt = %q", custom)
	}
}

func TestHumanizeAge(t *testing.T) {
	tests := map[time.Duration]string{
		30 * time.Second: "less than a minute",
		time.Minute:      "1 minute",
		90 * time.Minute: "1 hour",
		30 * time.Hour:   "30 hours",
		72 * time.Hour:   "3 days",
	}
	for d, want := range tests {
		if got := humanizeAge(d); got != want {
			t.Errorf("humanizeAge(%v) = %q, want %q", d, got, want)
		}
	}
}
