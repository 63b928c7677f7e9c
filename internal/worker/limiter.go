package worker

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/time/rate"
)

// ErrLimitDeadline is returned when a token cannot be obtained before the
// context deadline
var ErrLimitDeadline = errors.New("rate limit wait would exceed deadline")

// Limiter implements per-key rate limiting (one bucket per upstream agent)
type Limiter struct {
	limiters     map[string]*rate.Limiter
	mu           sync.RWMutex
	defaultRate  rate.Limit
	defaultBurst int
	disabled     bool
}

// NewLimiter creates a new rate limiter. A non-positive rate disables limiting.
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 5
	}

	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  rate.Limit(requestsPerSecond),
		defaultBurst: burst,
		disabled:     requestsPerSecond <= 0,
	}
}

// Wait blocks until a token for key is available or ctx ends
func (l *Limiter) Wait(ctx context.Context, key string) error {
	if l == nil {
		return nil
	}
	limiter := l.getLimiter(key)
	if limiter == nil {
		return nil
	}

	if err := limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		// rate.Limiter refuses up front when the deadline is too close
		return ErrLimitDeadline
	}
	return nil
}

// getLimiter returns the rate limiter for a key, nil when the key is not
// limited
func (l *Limiter) getLimiter(key string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[key]
	l.mu.RUnlock()

	if exists {
		return limiter
	}
	if l.disabled {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists := l.limiters[key]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
	l.limiters[key] = limiter

	return limiter
}

// SetRate sets a custom rate limit for a specific key. It applies even when
// the default rate is disabled; a non-positive rate removes the override.
func (l *Limiter) SetRate(key string, requestsPerSecond float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if requestsPerSecond <= 0 {
		delete(l.limiters, key)
		return
	}
	if burst <= 0 {
		burst = l.defaultBurst
	}

	l.limiters[key] = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}
