package ratelimit

import (
	"sync"
	"time"
)

// staleAfter is how long an idle bucket survives before a sweep reclaims it.
const staleAfter = 10 * time.Minute

// sweepEvery bounds how many inserts happen between sweeps.
const sweepEvery = 256

type bucket struct {
	tokens float64
	last   time.Time
}

// Limiter is a token-bucket rate limiter keyed by caller identity. Buckets
// appear on first use and are swept once they sit idle; the key space is
// client IPs, so it cannot be allowed to grow without bound.
type Limiter struct {
	mu      sync.Mutex
	m       map[string]*bucket
	inserts int
}

func New() *Limiter { return &Limiter{m: make(map[string]*bucket)} }

// Allow consumes one token for key, refilling at refillPerSec up to capacity.
func (l *Limiter) Allow(key string, capacity, refillPerSec float64) bool {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.m[key]
	if !ok {
		l.sweepLocked(now)
		b = &bucket{tokens: capacity, last: now}
		l.m[key] = b
	}

	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens += elapsed * refillPerSec
		if b.tokens > capacity {
			b.tokens = capacity
		}
	}
	b.last = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

func (l *Limiter) sweepLocked(now time.Time) {
	l.inserts++
	if l.inserts < sweepEvery {
		return
	}
	l.inserts = 0
	for k, b := range l.m {
		if now.Sub(b.last) > staleAfter {
			delete(l.m, k)
		}
	}
}
