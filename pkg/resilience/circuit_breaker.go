package resilience

import (
	"errors"
	"sync"
	"time"
)

// RateLimitError represents a provider rate limit response.
type RateLimitError struct {
	Provider string
	Message  string
}

func (e RateLimitError) Error() string {
	if e.Message != "" {
		return e.Provider + ": " + e.Message
	}
	return e.Provider + ": rate limit"
}

// IsRateLimit returns true when the error is a RateLimitError.
func IsRateLimit(err error) bool {
	var rl RateLimitError
	return errors.As(err, &rl)
}

// AnyError trips the breaker on every failure, not only rate limits.
func AnyError(err error) bool { return err != nil }

type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half_open"
)

// CircuitBreaker opens after threshold consecutive tripping failures. Once
// the cooldown has passed a single probe is let through: success closes the
// breaker, a tripping failure reopens it for another cooldown.
type CircuitBreaker struct {
	mu        sync.Mutex
	state     BreakerState
	failures  int
	threshold int
	openUntil time.Time
	cooldown  time.Duration
	trips     func(error) bool
	now       func() time.Time
}

// NewCircuitBreaker trips on rate limits. Use WithTrip to widen the classifier.
func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 3
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &CircuitBreaker{
		state:     BreakerClosed,
		threshold: threshold,
		cooldown:  cooldown,
		trips:     IsRateLimit,
		now:       time.Now,
	}
}

// WithTrip replaces the failure classifier.
func (c *CircuitBreaker) WithTrip(fn func(error) bool) *CircuitBreaker {
	if fn != nil {
		c.trips = fn
	}
	return c
}

// Allow reports whether a call may proceed. In the open state the first
// caller after the cooldown becomes the half-open probe.
func (c *CircuitBreaker) Allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case BreakerOpen:
		if c.now().Before(c.openUntil) {
			return false
		}
		c.state = BreakerHalfOpen
		return true
	case BreakerHalfOpen:
		return false
	default:
		return true
	}
}

func (c *CircuitBreaker) State() BreakerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *CircuitBreaker) OnSuccess() {
	c.mu.Lock()
	c.state = BreakerClosed
	c.failures = 0
	c.mu.Unlock()
}

// OnError records a failed call. Failures the classifier ignores still prove
// the provider is reachable, so they end a half-open probe.
func (c *CircuitBreaker) OnError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.trips(err) {
		if c.state == BreakerHalfOpen {
			c.state = BreakerClosed
			c.failures = 0
		}
		return
	}
	c.failures++
	if c.state == BreakerHalfOpen || c.failures >= c.threshold {
		c.state = BreakerOpen
		c.openUntil = c.now().Add(c.cooldown)
		c.failures = 0
	}
}
