package worker

import (
	"context"

	"golang.org/x/time/rate"
)

// Throttle bounds document reads per second. Ingestion has no network
// dependency, but on shared network filesystems an unthrottled scan can
// starve other tenants of the mount. A nil Throttle never blocks.
type Throttle struct {
	limiter *rate.Limiter
}

// NewThrottle creates a read throttle. A non-positive rate disables
// throttling entirely.
func NewThrottle(readsPerSecond float64, burst int) *Throttle {
	if readsPerSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &Throttle{limiter: rate.NewLimiter(rate.Limit(readsPerSecond), burst)}
}

// Wait blocks until a read is permitted or the context is cancelled
func (t *Throttle) Wait(ctx context.Context) error {
	if t == nil {
		return nil
	}
	return t.limiter.Wait(ctx)
}

// Allow reports whether a read is permitted without waiting
func (t *Throttle) Allow() bool {
	if t == nil {
		return true
	}
	return t.limiter.Allow()
}
