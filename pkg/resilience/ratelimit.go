package resilience

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter spaces calls at least one interval apart. The first call passes
// immediately. It is safe for use by concurrent sessions sharing one
// upstream.
type Limiter struct {
	limiter *rate.Limiter
}

// NewLimiter returns a limiter; a non-positive interval disables it.
func NewLimiter(interval time.Duration) *Limiter {
	if interval <= 0 {
		return &Limiter{}
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the caller may proceed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.limiter == nil {
		return ctx.Err()
	}
	return l.limiter.Wait(ctx)
}
