package tracker

import (
	"context"
	"math/rand"
	"time"

	"github.com/prakashgbid/caia-sub003/pkg/errors"
)

// RetryPolicy bounds per-item retries. Only transient failures are
// retried; permanent failures surface immediately.
type RetryPolicy struct {
	// MaxAttempts is the total call budget per item, including the
	// first attempt.
	MaxAttempts int
	// BaseDelay is the first backoff delay.
	BaseDelay time.Duration
	// MaxDelay caps the exponential growth.
	MaxDelay time.Duration
	// Jitter is the random fraction applied to each delay, in [0,1].
	Jitter float64
}

// DefaultRetryPolicy is used when fields are unset.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 4,
	BaseDelay:   200 * time.Millisecond,
	MaxDelay:    10 * time.Second,
	Jitter:      0.2,
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultRetryPolicy.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultRetryPolicy.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultRetryPolicy.MaxDelay
	}
	return p
}

// delay computes the backoff before the given attempt (1-based),
// exponential with jitter.
func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.BaseDelay << uint(attempt-1)
	if d > p.MaxDelay || d <= 0 {
		d = p.MaxDelay
	}
	if p.Jitter > 0 {
		spread := float64(d) * p.Jitter
		d = time.Duration(float64(d) - spread/2 + rand.Float64()*spread)
	}
	return d
}

// Do runs fn up to MaxAttempts times, sleeping the backoff between
// transient failures. It returns the attempt count alongside the final
// error. Permanent failures and context cancellation stop immediately
// with no backoff spent.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) (int, error) {
	p = p.withDefaults()

	var err error
	for attempt := 1; ; attempt++ {
		err = fn()
		if err == nil {
			return attempt, nil
		}
		if !errors.IsTransient(err) {
			return attempt, err
		}
		if attempt >= p.MaxAttempts {
			return attempt, err
		}
		select {
		case <-time.After(p.delay(attempt)):
		case <-ctx.Done():
			return attempt, ctx.Err()
		}
	}
}
