package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter keeps one token bucket per key. Buckets are created on first
// use with the rate and burst the caller passes; later calls for the
// same key reuse the existing bucket.
type Limiter struct {
	mu sync.Mutex
	m  map[string]*rate.Limiter
}

func New() *Limiter { return &Limiter{m: make(map[string]*rate.Limiter)} }

func (l *Limiter) bucket(key string, perSec float64, burst int) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.m[key]
	if !ok {
		b = rate.NewLimiter(rate.Limit(perSec), burst)
		l.m[key] = b
	}
	return b
}

// Allow reports whether one event may proceed for key right now.
func (l *Limiter) Allow(key string, perSec float64, burst int) bool {
	return l.bucket(key, perSec, burst).Allow()
}

// Wait blocks until one event may proceed for key or ctx is done.
func (l *Limiter) Wait(ctx context.Context, key string, perSec float64, burst int) error {
	return l.bucket(key, perSec, burst).Wait(ctx)
}
