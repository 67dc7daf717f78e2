package retry

import (
	"context"
	"fmt"
	"time"
)

// Do runs fn until it succeeds, returns a non-retryable error, or the
// attempt budget is exhausted.
func Do(ctx context.Context, config *Config, fn func() error) error {
	_, err := DoWithValue(ctx, config, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoWithValue runs fn with retry logic and returns its value.
func DoWithValue[T any](ctx context.Context, config *Config, fn func() (T, error)) (T, error) {
	var zero T
	if config == nil {
		config = DefaultConfig()
	}

	var lastErr error
	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		val, err := fn()
		if err == nil {
			return val, nil
		}
		lastErr = err

		if !config.retryable(err) {
			return zero, err
		}
		if attempt >= config.MaxAttempts {
			break
		}
		if config.OnRetry != nil {
			config.OnRetry(attempt, err)
		}

		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(config.nextDelay(attempt)):
		}
	}

	return zero, fmt.Errorf("all retry attempts exhausted after %d tries: %w", config.MaxAttempts, lastErr)
}
