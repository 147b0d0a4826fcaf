// Package ratelimit provides per-client admission control using token buckets.
package ratelimit

import (
	"math"
	"sync"
	"time"
)

// TokenBucket is a leaky-bucket counter for one client key. Tokens accumulate
// continuously up to capacity and one token is spent per admitted request.
// The invariant 0 <= tokens <= capacity holds at every observation point;
// all mutation goes through Consume, which holds the bucket lock.
type TokenBucket struct {
	mu         sync.Mutex
	capacity   float64
	tokens     float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

// NewTokenBucket creates a bucket that starts full.
func NewTokenBucket(capacity int, refillRate float64, now time.Time) *TokenBucket {
	return &TokenBucket{
		capacity:   float64(capacity),
		tokens:     float64(capacity),
		refillRate: refillRate,
		lastRefill: now,
	}
}

// Consume refills the bucket for elapsed wall time, then tries to spend one
// token. Returns whether the request is admitted and the token count after
// the call.
func (b *TokenBucket) Consume(now time.Time) (admitted bool, remaining float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens = math.Min(b.capacity, b.tokens+elapsed*b.refillRate)
	}
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		return true, b.tokens
	}
	return false, b.tokens
}

// Tokens returns the current token count without refilling.
func (b *TokenBucket) Tokens() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tokens
}

// Idle reports whether the bucket is back at full capacity, making it
// eligible for eviction.
func (b *TokenBucket) Idle(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	elapsed := now.Sub(b.lastRefill).Seconds()
	tokens := b.tokens
	if elapsed > 0 {
		tokens = math.Min(b.capacity, tokens+elapsed*b.refillRate)
	}
	return tokens >= b.capacity
}
