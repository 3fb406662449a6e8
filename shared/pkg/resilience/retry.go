package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrRetriesExhausted marks an error returned after every attempt failed with a retryable error
var ErrRetriesExhausted = errors.New("retries exhausted")

// RetryExhaustedError carries the attempt count and the last retryable failure
type RetryExhaustedError struct {
	Attempts int
	Err      error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("max retries (%d) exceeded: %v", e.Attempts, e.Err)
}

// Unwrap exposes both the sentinel and the last failure to errors.Is
func (e *RetryExhaustedError) Unwrap() []error {
	return []error{ErrRetriesExhausted, e.Err}
}

// RetryConfig configures Retry and RetryWithResult
type RetryConfig struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffFactor   float64
	RetryableErrors func(error) bool
	// OnRetry, when set, is called before sleeping for the next attempt
	OnRetry func(attempt int, err error)
}

// DefaultRetryConfig returns sensible defaults
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:   DefaultRetryMaxAttempts,
		InitialDelay:  DefaultRetryInitialDelay,
		MaxDelay:      DefaultRetryMaxDelay,
		BackoffFactor: DefaultRetryBackoffFactor,
		RetryableErrors: func(err error) bool {
			return false
		},
	}
}

// ContentionRetryConfig returns a short, bounded policy for lock and version conflicts
func ContentionRetryConfig(maxAttempts int, retryable func(error) bool) *RetryConfig {
	if maxAttempts <= 0 {
		maxAttempts = DefaultContentionMaxAttempts
	}
	return &RetryConfig{
		MaxAttempts:     maxAttempts,
		InitialDelay:    DefaultContentionInitialDelay,
		MaxDelay:        DefaultContentionMaxDelay,
		BackoffFactor:   DefaultRetryBackoffFactor,
		RetryableErrors: retryable,
	}
}

// Retry executes a function with retry logic
func Retry(ctx context.Context, config *RetryConfig, fn func() error) error {
	_, err := RetryWithResult(ctx, config, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// RetryWithResult executes a function with retry logic and returns a result
func RetryWithResult[T any](ctx context.Context, config *RetryConfig, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	delay := config.InitialDelay
	attempts := config.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if config.RetryableErrors == nil || !config.RetryableErrors(err) {
			return zero, err
		}

		if attempt < attempts-1 {
			if config.OnRetry != nil {
				config.OnRetry(attempt+1, err)
			}

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			case <-timer.C:
			}

			delay = time.Duration(float64(delay) * config.BackoffFactor)
			if config.MaxDelay > 0 && delay > config.MaxDelay {
				delay = config.MaxDelay
			}
		}
	}

	return zero, &RetryExhaustedError{Attempts: attempts, Err: lastErr}
}
