package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

// Rule allows Limit requests per Window, refilled continuously.
type Rule struct {
	Limit  int
	Window time.Duration
}

func (r Rule) ratePerSecond() float64 {
	return float64(r.Limit) / r.Window.Seconds()
}

// Result describes the outcome of a single Allow call.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is how long a rejected caller should wait before the next token.
func (r Result) RetryAfter(now time.Time) time.Duration {
	if r.Allowed {
		return 0
	}
	d := r.ResetAt.Sub(now)
	if d < time.Second {
		return time.Second
	}
	return d
}

// Limiter is satisfied by both the in-memory and the Redis limiter.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

type bucket struct {
	tokens   float64
	lastSeen time.Time
}

// MemoryLimiter is a per-key token bucket kept in process memory.
type MemoryLimiter struct {
	mu      sync.Mutex
	rule    Rule
	buckets map[string]*bucket
	now     func() time.Time
}

// NewMemoryLimiter creates a limiter for a single instance deployment.
func NewMemoryLimiter(rule Rule) *MemoryLimiter {
	return &MemoryLimiter{
		rule:    rule,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Allow consumes one token for key if available.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(l.rule.Limit), lastSeen: now}
		l.buckets[key] = b
	}

	rate := l.rule.ratePerSecond()
	elapsed := now.Sub(b.lastSeen).Seconds()
	b.tokens = math.Min(float64(l.rule.Limit), b.tokens+elapsed*rate)
	b.lastSeen = now

	res := Result{Limit: l.rule.Limit}
	if b.tokens >= 1 {
		b.tokens--
		res.Allowed = true
	}
	res.Remaining = int(math.Floor(b.tokens))
	res.ResetAt = now.Add(time.Duration((1 - math.Min(b.tokens, 1)) / rate * float64(time.Second)))
	return res, nil
}

// Sweep drops buckets that have been idle for longer than the window.
func (l *MemoryLimiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.rule.Window {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// fallbackLimiter uses primary and switches to secondary while primary errors.
type fallbackLimiter struct {
	primary   Limiter
	secondary Limiter
	onError   func(key string, err error)
}

// WithFallback keeps rate limiting active when the shared store is unavailable.
func WithFallback(primary, secondary Limiter, onError func(key string, err error)) Limiter {
	return &fallbackLimiter{primary: primary, secondary: secondary, onError: onError}
}

func (f *fallbackLimiter) Allow(ctx context.Context, key string) (Result, error) {
	res, err := f.primary.Allow(ctx, key)
	if err == nil {
		return res, nil
	}
	if f.onError != nil {
		f.onError(key, err)
	}
	return f.secondary.Allow(ctx, key)
}
