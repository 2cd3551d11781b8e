package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(rule Rule) (*MemoryLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	l := NewMemoryLimiter(rule)
	l.now = clock.now
	return l, clock
}

func TestMemoryLimiter_BurstThenReject(t *testing.T) {
	l, _ := newTestLimiter(Rule{Limit: 3, Window: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := l.Allow(ctx, "user:1")
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d", i+1)
	}

	res, err := l.Allow(ctx, "user:1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, 3, res.Limit)
}

func TestMemoryLimiter_Refill(t *testing.T) {
	l, clock := newTestLimiter(Rule{Limit: 2, Window: 2 * time.Second})
	ctx := context.Background()

	l.Allow(ctx, "k")
	l.Allow(ctx, "k")
	res, _ := l.Allow(ctx, "k")
	require.False(t, res.Allowed)
	assert.Equal(t, time.Second, res.RetryAfter(clock.now()))

	clock.advance(time.Second)
	res, _ = l.Allow(ctx, "k")
	assert.True(t, res.Allowed)
}

func TestMemoryLimiter_KeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(Rule{Limit: 1, Window: time.Minute})
	ctx := context.Background()

	res, _ := l.Allow(ctx, "user:1")
	assert.True(t, res.Allowed)
	res, _ = l.Allow(ctx, "user:2")
	assert.True(t, res.Allowed)
	res, _ = l.Allow(ctx, "user:1")
	assert.False(t, res.Allowed)
}

func TestMemoryLimiter_Sweep(t *testing.T) {
	l, clock := newTestLimiter(Rule{Limit: 1, Window: time.Minute})
	ctx := context.Background()

	l.Allow(ctx, "a")
	clock.advance(30 * time.Second)
	l.Allow(ctx, "b")
	clock.advance(45 * time.Second)

	assert.Equal(t, 1, l.Sweep())
	assert.Equal(t, 1, l.Len())
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (Result, error) {
	return Result{}, errors.New("connection refused")
}

func TestWithFallback_UsesSecondaryOnError(t *testing.T) {
	secondary, _ := newTestLimiter(Rule{Limit: 1, Window: time.Minute})
	var failures int
	l := WithFallback(failingLimiter{}, secondary, func(string, error) { failures++ })
	ctx := context.Background()

	res, err := l.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = l.Allow(ctx, "k")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 2, failures)
}
