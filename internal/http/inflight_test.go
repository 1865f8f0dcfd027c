package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kjstillabower/matchboard/internal/models"
)

// blockingSource holds GetMatches open until release is closed.
type blockingSource struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingSource) GetMatches(ctx context.Context, forceRefresh bool) models.Result {
	close(b.entered)
	<-b.release
	return models.Result{Provenance: models.ProvenanceAPI}
}

func (b *blockingSource) RefreshAvailableIn() time.Duration { return 0 }

// TestWaitForInFlight_WaitsForSlowRender verifies shutdown waits for a page
// render that is still waiting on the coordinator.
func TestWaitForInFlight_WaitsForSlowRender(t *testing.T) {
	src := &blockingSource{entered: make(chan struct{}), release: make(chan struct{})}
	router := newTestRouter(src, nil)

	served := make(chan struct{})
	go func() {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		close(served)
	}()
	<-src.entered

	if got := InFlightCount(); got != 1 {
		t.Errorf("InFlightCount() = %d, want 1", got)
	}

	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := WaitForInFlight(short, 5*time.Millisecond); err == nil {
		t.Error("WaitForInFlight() returned before the render finished")
	}

	close(src.release)
	done, cancelDone := context.WithTimeout(context.Background(), time.Second)
	defer cancelDone()
	if err := WaitForInFlight(done, 5*time.Millisecond); err != nil {
		t.Errorf("WaitForInFlight() error = %v after render finished", err)
	}
	<-served
}

func TestWaitForInFlight_IdleReturnsImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := WaitForInFlight(ctx, time.Hour); err != nil {
		t.Errorf("WaitForInFlight() with nothing in flight = %v, want nil", err)
	}
}
