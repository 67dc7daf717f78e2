package retry

import "time"

// Config controls how an operation is retried.
type Config struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// Strategy computes the delay between attempts.
	Strategy Strategy

	// RetryIf decides whether an error is worth retrying. Nil retries
	// every error.
	RetryIf func(error) bool

	// OnRetry is called before each retry with the attempt number that
	// just failed.
	OnRetry func(attempt int, err error)
}

// DefaultConfig retries three times with exponential backoff.
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: 3,
		Strategy:    DefaultExponentialBackoff(),
	}
}

// NewConfig creates a retry config.
func NewConfig(maxAttempts int, strategy Strategy) *Config {
	return &Config{MaxAttempts: maxAttempts, Strategy: strategy}
}

// WithRetryIf sets the retryable-error predicate.
func (c *Config) WithRetryIf(pred func(error) bool) *Config {
	c.RetryIf = pred
	return c
}

// WithOnRetry sets the retry callback.
func (c *Config) WithOnRetry(fn func(attempt int, err error)) *Config {
	c.OnRetry = fn
	return c
}

func (c *Config) retryable(err error) bool {
	if c.RetryIf == nil {
		return true
	}
	return c.RetryIf(err)
}

func (c *Config) nextDelay(attempt int) time.Duration {
	if c.Strategy == nil {
		return 0
	}
	return c.Strategy.NextDelay(attempt)
}
