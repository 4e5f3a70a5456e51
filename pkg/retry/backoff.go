package retry

import (
	"math"
	"math/rand"
	"time"

	"instarchive/pkg/config"
	errs "instarchive/pkg/errors"
)

// BackoffStrategy yields the wait before retry number attempt, counted
// from 1. Attempt 0 never waits.
type BackoffStrategy interface {
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff grows BaseDelay by Multiplier per attempt up to
// MaxDelay, then spreads the result by +/- JitterFactor.
type ExponentialBackoff struct {
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64
}

func (b *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	d := math.Min(
		float64(b.BaseDelay)*math.Pow(b.Multiplier, float64(attempt-1)),
		float64(b.MaxDelay),
	)
	return time.Duration(max(jitter(d, b.JitterFactor), 0))
}

func jitter(d, factor float64) float64 {
	if factor <= 0 {
		return d
	}
	return d + d*factor*(2*rand.Float64()-1)
}

// ConstantBackoff waits the same Delay before every retry.
type ConstantBackoff struct {
	Delay time.Duration
}

func (b *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return b.Delay
}

// ErrorTypeBackoff waits longer after a 429 than after other transient
// failures.
type ErrorTypeBackoff struct {
	RateLimited BackoffStrategy
	Transient   BackoffStrategy
}

// NewErrorTypeBackoff uses the configured delays for transient failures
// and a fixed, slower curve for rate limiting.
func NewErrorTypeBackoff(cfg config.RetryConfig) *ErrorTypeBackoff {
	return &ErrorTypeBackoff{
		RateLimited: &ExponentialBackoff{
			BaseDelay:    30 * time.Second,
			MaxDelay:     5 * time.Minute,
			Multiplier:   1.5,
			JitterFactor: 0.3,
		},
		Transient: &ExponentialBackoff{
			BaseDelay:    cfg.BaseDelay,
			MaxDelay:     cfg.MaxDelay,
			Multiplier:   2.0,
			JitterFactor: 0.1,
		},
	}
}

func (b *ErrorTypeBackoff) ForError(err error) BackoffStrategy {
	if errs.TypeOf(err) == errs.ErrorTypeRateLimit {
		return b.RateLimited
	}
	return b.Transient
}
