// Package circuitbreaker stops the service from hammering a cache backend
// that keeps failing. While the breaker is open every cache read is a miss
// and every cache write is dropped; the store remains authoritative.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned when the breaker rejects a call without running it.
var ErrOpen = errors.New("circuit breaker open")

// Breaker trips after threshold consecutive failures and rejects calls for
// the cooldown period. After the cooldown one probe call is let through;
// its outcome closes or re-opens the circuit.
type Breaker struct {
	threshold int
	cooldown  time.Duration

	mu        sync.Mutex
	failures  int
	openUntil time.Time
	probing   bool
}

// NewBreaker creates a closed Breaker.
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	return &Breaker{threshold: threshold, cooldown: cooldown}
}

// Do runs fn unless the circuit is open. It records fn's outcome.
func (b *Breaker) Do(fn func() error) error {
	if !b.allow() {
		return ErrOpen
	}
	err := fn()
	b.record(err == nil)
	return err
}

// Tripped reports whether the breaker is currently rejecting calls.
func (b *Breaker) Tripped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures >= b.threshold && time.Now().Before(b.openUntil)
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failures < b.threshold {
		return true
	}
	if time.Now().Before(b.openUntil) {
		return false
	}
	// Cooldown elapsed: admit a single probe until its outcome is known.
	if b.probing {
		return false
	}
	b.probing = true
	return true
}

func (b *Breaker) record(ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probing = false
	if ok {
		b.failures = 0
		b.openUntil = time.Time{}
		return
	}
	b.failures++
	if b.failures >= b.threshold {
		b.openUntil = time.Now().Add(b.cooldown)
	}
}
