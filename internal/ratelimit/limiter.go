package ratelimit

import (
	"math"
	"sync"
	"time"
)

const cleanupInterval = 5 * time.Minute

// Limiter tracks one token bucket per client key (normalized client IP).
// Buckets are created on first request and evicted once fully idle, so memory
// stays bounded by the number of recently active clients.
type Limiter struct {
	mu                sync.Mutex
	requestsPerMinute int
	buckets           map[string]*TokenBucket
	lastCleanup       time.Time

	// now is swappable for tests.
	now func() time.Time
}

// New creates a limiter allowing requestsPerMinute requests per 60-second
// window per key, refilled smoothly rather than reset per fixed window.
func New(requestsPerMinute int) *Limiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	return &Limiter{
		requestsPerMinute: requestsPerMinute,
		buckets:           make(map[string]*TokenBucket),
		lastCleanup:       time.Now(),
		now:               time.Now,
	}
}

// Admit decides whether a request from the given key may proceed. On
// rejection retryAfter is the suggested wait in seconds, computed as
// 60 - floor(tokens). Rejected requests fail immediately; there is no
// queueing or blocking.
func (l *Limiter) Admit(key string) (allowed bool, retryAfter int) {
	now := l.now()
	bucket := l.bucket(key, now)

	admitted, remaining := bucket.Consume(now)
	if !admitted {
		return false, 60 - int(math.Floor(remaining))
	}

	l.maybeCleanup(now)
	return true, 0
}

// bucket returns the bucket for key, creating a full one on first sight.
func (l *Limiter) bucket(key string, now time.Time) *TokenBucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = NewTokenBucket(l.requestsPerMinute, float64(l.requestsPerMinute)/60.0, now)
		l.buckets[key] = b
	}
	return b
}

// maybeCleanup evicts fully idle buckets. Checked opportunistically on
// admission calls, at most once per cleanup interval.
func (l *Limiter) maybeCleanup(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastCleanup) < cleanupInterval {
		return
	}

	for key, b := range l.buckets {
		if b.Idle(now) {
			delete(l.buckets, key)
		}
	}
	l.lastCleanup = now
}

// Size returns the number of tracked buckets.
func (l *Limiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
