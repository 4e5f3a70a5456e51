package retry

import (
	"fmt"
	"time"

	"instarchive/pkg/config"
	errs "instarchive/pkg/errors"
	"instarchive/pkg/logger"
)

// Operation is one attempt at a request.
type Operation func() error

// OperationWithResult is an attempt that also yields a value.
type OperationWithResult[T any] func() (T, error)

// Config is the retry policy for one kind of request.
type Config struct {
	// MaxAttempts caps the attempts; 0 retries forever.
	MaxAttempts int
	Backoff     BackoffStrategy
	// ErrorBackoff, when set, picks the strategy per failure instead of Backoff.
	ErrorBackoff *ErrorTypeBackoff
	// RetryIf decides whether a failure is worth another attempt.
	RetryIf func(error) bool
	Logger  logger.Logger
	// Sleep defaults to time.Sleep.
	Sleep func(time.Duration)
}

// FromConfig builds the policy for API requests from the retry section
// of the configuration.
func FromConfig(cfg config.RetryConfig, log logger.Logger) *Config {
	b := NewErrorTypeBackoff(cfg)
	return &Config{
		MaxAttempts:  cfg.MaxAttempts,
		Backoff:      b.Transient,
		ErrorBackoff: b,
		RetryIf:      DefaultRetryIf,
		Logger:       log,
	}
}

// DefaultRetryIf retries network, rate limit and server errors.
func DefaultRetryIf(err error) bool {
	return errs.IsTransient(err)
}

func (c *Config) delay(attempt int, err error) time.Duration {
	b := c.Backoff
	if c.ErrorBackoff != nil {
		b = c.ErrorBackoff.ForError(err)
	}
	if b == nil {
		return 0
	}
	return b.NextDelay(attempt)
}

// Do runs op until it succeeds, fails permanently or runs out of
// attempts. A nil cfg uses the default retry section.
func Do(op Operation, cfg *Config) error {
	if cfg == nil {
		cfg = FromConfig(config.DefaultConfig().Retry, nil)
	}
	retryIf := cfg.RetryIf
	if retryIf == nil {
		retryIf = DefaultRetryIf
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	for attempt := 1; ; attempt++ {
		err := op()
		if err == nil {
			if attempt > 1 && cfg.Logger != nil {
				cfg.Logger.DebugWithFields("Request succeeded after retry", map[string]interface{}{
					"attempt": attempt,
				})
			}
			return nil
		}
		if !retryIf(err) {
			return err
		}

		if cfg.MaxAttempts > 0 && attempt >= cfg.MaxAttempts {
			if cfg.Logger != nil {
				cfg.Logger.WarnWithFields("Giving up on request", map[string]interface{}{
					"attempts": attempt,
					"error":    err.Error(),
				})
			}
			return fmt.Errorf("max retry attempts (%d) exceeded: %w", cfg.MaxAttempts, err)
		}

		wait := cfg.delay(attempt, err)
		if cfg.Logger != nil {
			cfg.Logger.WarnWithFields("Retrying request", map[string]interface{}{
				"attempt":  attempt,
				"error":    err.Error(),
				"delay_ms": wait.Milliseconds(),
			})
		}
		if wait > 0 {
			sleep(wait)
		}
	}
}

// DoWithResult is Do for operations that return a value.
func DoWithResult[T any](op OperationWithResult[T], cfg *Config) (T, error) {
	var result T
	err := Do(func() error {
		var opErr error
		result, opErr = op()
		return opErr
	}, cfg)
	return result, err
}
