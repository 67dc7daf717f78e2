package retry

import (
	"math"
	"math/rand"
	"time"
)

// Strategy computes the delay before the next attempt.
type Strategy interface {
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff doubles the delay on every attempt, capped at
// MaxDelay, with optional ±25% jitter.
type ExponentialBackoff struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	Jitter     bool
}

// NewExponentialBackoff creates an exponential backoff strategy.
func NewExponentialBackoff(baseDelay, maxDelay time.Duration, jitter bool) *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:  baseDelay,
		MaxDelay:   maxDelay,
		Multiplier: 2.0,
		Jitter:     jitter,
	}
}

// DefaultExponentialBackoff returns a backoff suitable for calls to the
// execution engine: 1s base, 30s cap, jittered.
func DefaultExponentialBackoff() *ExponentialBackoff {
	return NewExponentialBackoff(1*time.Second, 30*time.Second, true)
}

// NextDelay calculates the next delay using exponential backoff.
func (e *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	delay := float64(e.BaseDelay) * math.Pow(e.Multiplier, float64(attempt-1))
	if delay > float64(e.MaxDelay) {
		delay = float64(e.MaxDelay)
	}
	if e.Jitter {
		delay *= 0.75 + rand.Float64()*0.5
	}
	return time.Duration(delay)
}

// FixedDelay waits the same duration between every attempt.
type FixedDelay struct {
	Delay  time.Duration
	Jitter bool
}

// NewFixedDelay creates a fixed delay strategy.
func NewFixedDelay(delay time.Duration, jitter bool) *FixedDelay {
	return &FixedDelay{Delay: delay, Jitter: jitter}
}

// NextDelay returns the fixed delay, jittered when enabled.
func (f *FixedDelay) NextDelay(attempt int) time.Duration {
	delay := f.Delay
	if f.Jitter {
		delay = time.Duration(float64(delay) * (0.75 + rand.Float64()*0.5))
	}
	return delay
}
