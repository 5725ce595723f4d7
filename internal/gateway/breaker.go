package gateway

import (
	"sync"
	"time"
)

// CircuitBreaker opens after a run of consecutive failures and short-circuits
// calls for a cooldown window. State is owned by the instance; construct a
// fresh breaker per guarded dependency.
type CircuitBreaker struct {
	mu                  sync.Mutex
	threshold           int
	cooldown            time.Duration
	consecutiveFailures int
	openUntil           time.Time

	now func() time.Time
}

// NewCircuitBreaker creates a breaker that opens after threshold consecutive
// failures for the given cooldown window.
func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 4
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &CircuitBreaker{
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// Allow reports whether a call may proceed. While the breaker is open the
// caller must skip the call entirely.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.now().Before(b.openUntil)
}

// RecordSuccess resets the consecutive-failure counter.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFailures = 0
}

// RecordFailure counts a failure and opens the breaker once the threshold is
// crossed.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFailures++
	if b.consecutiveFailures >= b.threshold {
		b.openUntil = b.now().Add(b.cooldown)
	}
}

// ConsecutiveFailures returns the current failure run length.
func (b *CircuitBreaker) ConsecutiveFailures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consecutiveFailures
}
