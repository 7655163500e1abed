// Package ratelimit throttles registration submissions per client IP.
// Submission is the only unauthenticated write endpoint, so it gets its
// own limiter instead of a gateway-wide one.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"idhub/pkg/requestcontext"
)

// Result reports the outcome of one limiter check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter checks and counts one request for a key.
type Limiter interface {
	Allow(ctx context.Context, key string) (*Result, error)
}

// MemoryLimiter is a sliding-window limiter for single-process deployments.
type MemoryLimiter struct {
	mu        sync.Mutex
	limit     int
	window    time.Duration
	buckets   map[string][]time.Time
	lastSweep time.Time
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:   limit,
		window:  window,
		buckets: make(map[string][]time.Time),
	}
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := requestcontext.Now(ctx)
	cutoff := now.Add(-l.window)
	l.sweep(now, cutoff)

	kept := l.buckets[key][:0]
	for _, ts := range l.buckets[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= l.limit {
		l.buckets[key] = kept
		return &Result{
			Allowed: false,
			Limit:   l.limit,
			ResetAt: kept[0].Add(l.window),
		}, nil
	}

	kept = append(kept, now)
	l.buckets[key] = kept
	return &Result{
		Allowed:   true,
		Limit:     l.limit,
		Remaining: l.limit - len(kept),
		ResetAt:   kept[0].Add(l.window),
	}, nil
}

// sweep drops buckets whose whole window has passed, so the map does not
// hold one entry per client IP ever seen. Runs at most once per window.
func (l *MemoryLimiter) sweep(now, cutoff time.Time) {
	if now.Sub(l.lastSweep) < l.window {
		return
	}
	l.lastSweep = now
	for key, stamps := range l.buckets {
		if len(stamps) == 0 || !stamps[len(stamps)-1].After(cutoff) {
			delete(l.buckets, key)
		}
	}
}
