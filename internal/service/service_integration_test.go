//go:build integration
// +build integration

package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/kjstillabower/matchboard/internal/models"
	"github.com/kjstillabower/matchboard/internal/testhelpers"
)

// TestMatchService_LiveThenCached fetches the schedule from the provider once
// and verifies the second call is served from the saved record.
func TestMatchService_LiveThenCached(t *testing.T) {
	cfg := testhelpers.GetIntegrationConfig(t)
	svc, store, cleanup := testhelpers.SetupIntegrationService(t, cfg)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	testhelpers.ClearCache(ctx, store)

	first := svc.GetMatches(ctx, false)
	if first.Provenance != models.ProvenanceAPI {
		t.Fatalf("first provenance = %s (%s: %s), want api; quota may be exhausted", first.Provenance, first.Reason, first.Warning)
	}

	second := svc.GetMatches(ctx, false)
	if second.Provenance != models.ProvenanceCache || second.Warning != "" {
		t.Errorf("second = %s %q, want fresh cache", second.Provenance, second.Warning)
	}
	if len(second.Matches) != len(first.Matches) {
		t.Errorf("cached %d matches, live returned %d", len(second.Matches), len(first.Matches))
	}

	rec, ok, err := store.Load(ctx)
	if err != nil || !ok {
		t.Fatalf("store.Load() = ok %v, err %v", ok, err)
	}
	if time.Since(rec.CapturedAt()) > time.Minute {
		t.Errorf("record captured at %v, want just now", rec.CapturedAt())
	}
}
