package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalMatchLocker_BusyUntilReleased(t *testing.T) {
	l := NewLocalMatchLocker()

	release, err := l.Lock(context.Background(), "m1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "m1")
	assert.ErrorIs(t, err, ErrMatchBusy)

	// 다른 매치는 독립적
	other, err := l.Lock(context.Background(), "m2")
	require.NoError(t, err)
	other()

	release()
	again, err := l.Lock(context.Background(), "m1")
	require.NoError(t, err)
	again()
}

func TestLocalMatchLocker_ForgetsIdleMatches(t *testing.T) {
	l := NewLocalMatchLocker()

	release, err := l.Lock(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, 1, l.Len())

	// 타임아웃으로 포기한 대기자는 보유자의 항목을 지우지 않는다
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "m1")
	assert.ErrorIs(t, err, ErrMatchBusy)
	assert.Equal(t, 1, l.Len())

	release()
	release()
	assert.Equal(t, 0, l.Len())

	for i := 0; i < 50; i++ {
		r, err := l.Lock(context.Background(), fmt.Sprintf("m-%d", i))
		require.NoError(t, err)
		r()
	}
	assert.Equal(t, 0, l.Len())
}

func TestLocalMatchLocker_SerializesCriticalSection(t *testing.T) {
	l := NewLocalMatchLocker()
	var inside, maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Lock(context.Background(), "m1")
			if err != nil {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			if n > atomic.LoadInt32(&maxInside) {
				atomic.StoreInt32(&maxInside, n)
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInside))
}

func TestMatchService_ConcurrentReviewsApplyOnce(t *testing.T) {
	submittedAt := matchStart.Add(2 * time.Hour)
	h := newHarness(submittedAt.Add(time.Hour), nil)
	h.store.seed(withResult(singlesMatch(), "alice", 6, 4, submittedAt), fullSingles())

	var ok int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.svc.ReviewResult(context.Background(), "m1", actor("bob"), "confirm"); err == nil {
				atomic.AddInt32(&ok, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok)
	assert.Equal(t, 1, h.store.writes)
}
