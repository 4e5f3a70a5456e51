package retry

import (
	"errors"
	"testing"
	"time"

	"instarchive/pkg/config"
	errs "instarchive/pkg/errors"
)

func noSleep(time.Duration) {}

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.0, // No jitter for predictable testing
	}

	tests := []struct {
		attempt     int
		expected    time.Duration
		description string
	}{
		{0, 0, "No attempt"},
		{1, 100 * time.Millisecond, "First attempt"},
		{2, 200 * time.Millisecond, "Second attempt"},
		{3, 400 * time.Millisecond, "Third attempt"},
		{4, 800 * time.Millisecond, "Fourth attempt"},
		{5, 1 * time.Second, "Fifth attempt (capped at max)"},
		{6, 1 * time.Second, "Sixth attempt (still capped)"},
	}

	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			if delay := backoff.NextDelay(test.attempt); delay != test.expected {
				t.Errorf("Expected %v, got %v", test.expected, delay)
			}
		})
	}
}

func TestExponentialBackoffJitterBounds(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.3,
	}

	for i := 0; i < 50; i++ {
		delay := backoff.NextDelay(2)
		if delay < 140*time.Millisecond || delay > 260*time.Millisecond {
			t.Fatalf("Delay %v outside jitter bounds", delay)
		}
	}
}

func TestRetryWithSuccess(t *testing.T) {
	attempts := 0
	op := func() error {
		attempts++
		if attempts < 3 {
			return errs.New(errs.ErrorTypeNetwork, "temporary error")
		}
		return nil
	}

	var slept []time.Duration
	cfg := &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: 10 * time.Millisecond},
		Sleep:       func(d time.Duration) { slept = append(slept, d) },
	}

	if err := Do(op, cfg); err != nil {
		t.Errorf("Expected success after retries, got error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
	if len(slept) != 2 {
		t.Errorf("Expected 2 waits, got %d", len(slept))
	}
}

func TestRetryWithMaxAttemptsExceeded(t *testing.T) {
	attempts := 0
	cause := errs.New(errs.ErrorTypeServerError, "persistent error")
	op := func() error {
		attempts++
		return cause
	}

	waits := 0
	cfg := &Config{
		MaxAttempts: 3,
		Backoff:     &ConstantBackoff{Delay: 10 * time.Millisecond},
		Sleep:       func(time.Duration) { waits++ },
	}

	err := Do(op, cfg)
	if !errors.Is(err, cause) {
		t.Errorf("Expected wrapped cause, got %v", err)
	}
	if errs.TypeOf(err) != errs.ErrorTypeServerError {
		t.Errorf("Expected error type to survive wrapping, got %s", errs.TypeOf(err))
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
	if waits != 2 {
		t.Errorf("Expected no wait after the last attempt, got %d waits", waits)
	}
}

func TestRetryWithNonRetryableError(t *testing.T) {
	tests := []errs.ErrorType{
		errs.ErrorTypeAuth,
		errs.ErrorTypeNotFound,
		errs.ErrorTypeParsing,
	}

	for _, errorType := range tests {
		t.Run(string(errorType), func(t *testing.T) {
			attempts := 0
			want := &errs.Error{Type: errorType, Message: "nope", Code: 401}

			err := Do(func() error {
				attempts++
				return want
			}, &Config{MaxAttempts: 5, Sleep: noSleep})

			if err != want {
				t.Errorf("Expected original error, got: %v", err)
			}
			if attempts != 1 {
				t.Errorf("Expected 1 attempt, got %d", attempts)
			}
		})
	}
}

func TestRetryPlainErrorsNotRetried(t *testing.T) {
	attempts := 0
	err := Do(func() error {
		attempts++
		return errors.New("plain")
	}, &Config{MaxAttempts: 3, Sleep: noSleep})

	if err == nil || attempts != 1 {
		t.Errorf("Expected one failing attempt, got %d attempts and %v", attempts, err)
	}
}

func TestErrorTypeBackoff(t *testing.T) {
	etb := NewErrorTypeBackoff(config.RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		MaxDelay:    time.Minute,
	})

	rateLimit, ok := etb.ForError(errs.New(errs.ErrorTypeRateLimit, "slow down")).(*ExponentialBackoff)
	if !ok || rateLimit.BaseDelay != 30*time.Second {
		t.Errorf("Expected 30s base delay for rate limit errors, got %+v", rateLimit)
	}

	network, ok := etb.ForError(errs.New(errs.ErrorTypeNetwork, "reset")).(*ExponentialBackoff)
	if !ok || network.BaseDelay != 2*time.Second || network.MaxDelay != time.Minute {
		t.Errorf("Expected configured backoff for network errors, got %+v", network)
	}
}

func TestFromConfigUsesErrorBackoff(t *testing.T) {
	cfg := FromConfig(config.RetryConfig{MaxAttempts: 2, BaseDelay: time.Second, MaxDelay: time.Second}, nil)

	var slept time.Duration
	cfg.Sleep = func(d time.Duration) { slept = d }

	_ = Do(func() error { return errs.New(errs.ErrorTypeRateLimit, "429") }, cfg)

	if slept < 21*time.Second {
		t.Errorf("Expected rate limit backoff, slept %v", slept)
	}
}

func TestDoWithResult(t *testing.T) {
	attempts := 0
	op := func() (string, error) {
		attempts++
		if attempts < 2 {
			return "", errs.New(errs.ErrorTypeNetwork, "temporary error")
		}
		return "success", nil
	}

	result, err := DoWithResult(op, &Config{MaxAttempts: 3, Sleep: noSleep})
	if err != nil {
		t.Errorf("Expected success, got error: %v", err)
	}
	if result != "success" {
		t.Errorf("Expected 'success', got '%s'", result)
	}
	if attempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts)
	}
}
