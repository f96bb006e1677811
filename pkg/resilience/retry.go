package resilience

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy retries transient failures with a linearly growing delay:
// attempt n waits n*BaseDelay before running again.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// Retryable overrides IsTransient when set.
	Retryable func(error) bool
}

// DefaultRetryPolicy returns three attempts with a two second base delay.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 2 * time.Second}
}

// linearBackOff implements backoff.BackOff with delays of base, 2*base, ...
type linearBackOff struct {
	base    time.Duration
	attempt int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return time.Duration(b.attempt) * b.base
}

func (b *linearBackOff) Reset() {
	b.attempt = 0
}

// Do runs op until it succeeds, fails permanently, or the attempts are
// used up. notify, when non-nil, is called before each wait.
func (p RetryPolicy) Do(ctx context.Context, op func() error, notify func(err error, wait time.Duration)) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsTransient
	}

	var b backoff.BackOff = &linearBackOff{base: p.BaseDelay}
	b = backoff.WithMaxRetries(b, uint64(attempts-1))
	b = backoff.WithContext(b, ctx)

	wrapped := func() error {
		err := op()
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	var n backoff.Notify
	if notify != nil {
		n = backoff.Notify(notify)
	}
	return backoff.RetryNotify(wrapped, b, n)
}
