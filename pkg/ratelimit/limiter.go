// Package ratelimit throttles password attempts and code sends with one
// token bucket per key.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

type bucket struct {
	tokens   float64
	lastSeen time.Time
}

// Limiter allows Capacity requests per key in a burst, refilled evenly over
// Window.
type Limiter struct {
	capacity float64
	refill   float64 // tokens per second
	idleTTL  time.Duration
	now      func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

type Option func(*Limiter)

func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// WithIdleTTL sets how long an untouched bucket survives Sweep.
func WithIdleTTL(ttl time.Duration) Option {
	return func(l *Limiter) {
		l.idleTTL = ttl
	}
}

func NewLimiter(capacity int, window time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		capacity: float64(capacity),
		refill:   float64(capacity) / window.Seconds(),
		idleTTL:  window,
		now:      time.Now,
		buckets:  make(map[string]*bucket),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow takes a token for key. When none is left it returns false and how
// long until the next token.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.capacity, lastSeen: now}
		l.buckets[key] = b
	}
	b.tokens += now.Sub(b.lastSeen).Seconds() * l.refill
	if b.tokens > l.capacity {
		b.tokens = l.capacity
	}
	b.lastSeen = now

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	wait := time.Duration((1 - b.tokens) / l.refill * float64(time.Second))
	return false, wait
}

// Reset refills key, e.g. after a successful sign-in.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
}

// Sweep drops buckets idle for longer than the idle TTL and returns how
// many are left.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.idleTTL {
			delete(l.buckets, key)
		}
	}
	return len(l.buckets)
}

// Run sweeps every interval until ctx is done.
func (l *Limiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}
