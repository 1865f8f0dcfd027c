package http

import (
	"context"
	"sync/atomic"
	"time"
)

// inFlight counts requests passing through MetricsMiddleware so shutdown can
// wait for page renders still blocked on the provider.
var inFlight atomic.Int64

// InFlightCount returns the current number of in-flight requests.
func InFlightCount() int64 {
	return inFlight.Load()
}

// WaitForInFlight polls every checkInterval until no request is in flight or
// ctx is done.
func WaitForInFlight(ctx context.Context, checkInterval time.Duration) error {
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()
	for inFlight.Load() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
