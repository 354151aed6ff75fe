// Package backoff computes the delay before a failed chain run is retried.
// Strategies are stateless and safe for concurrent use.
package backoff

import (
	"math/rand/v2"
	"time"
)

// Strategy computes the delay before a retry attempt.
type Strategy interface {
	// Delay returns how long to wait before retry attempt n (1-indexed).
	// Attempt 1 is the first retry after the initial failure.
	Delay(attempt int) time.Duration
}

// Func adapts an ordinary function to the Strategy interface.
type Func func(attempt int) time.Duration

// Delay implements Strategy.
func (f Func) Delay(attempt int) time.Duration { return f(attempt) }

// None retries without waiting.
func None() Strategy {
	return Func(func(int) time.Duration { return 0 })
}

// Constant always waits interval.
func Constant(interval time.Duration) Strategy {
	return Func(func(int) time.Duration { return interval })
}

// Linear waits initial*attempt, capped at maxDelay when maxDelay > 0.
func Linear(initial, maxDelay time.Duration) Strategy {
	return Func(func(attempt int) time.Duration {
		return capped(initial*time.Duration(max(attempt, 1)), maxDelay)
	})
}

// Exponential waits initial*2^(attempt-1), capped at maxDelay when
// maxDelay > 0.
func Exponential(initial, maxDelay time.Duration) Strategy {
	return Func(func(attempt int) time.Duration {
		d := initial
		for i := 1; i < attempt; i++ {
			if maxDelay > 0 && d >= maxDelay {
				return maxDelay
			}
			if d > time.Duration(1<<62) {
				break
			}
			d *= 2
		}
		return capped(d, maxDelay)
	})
}

// Jitter spreads the delay of s uniformly over [0, s.Delay(attempt)] so
// that chains failing together do not retry together.
func Jitter(s Strategy) Strategy {
	return Func(func(attempt int) time.Duration {
		d := s.Delay(attempt)
		if d <= 0 {
			return 0
		}
		return time.Duration(rand.Int64N(int64(d) + 1)) //nolint:gosec // jitter intentionally uses non-crypto rand
	})
}

// Default is the engine's retry strategy: exponential from one second up to
// a minute, with full jitter.
func Default() Strategy {
	return Jitter(Exponential(time.Second, time.Minute))
}

func capped(d, maxDelay time.Duration) time.Duration {
	if maxDelay > 0 && d > maxDelay {
		return maxDelay
	}
	return d
}
