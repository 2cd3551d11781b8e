package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rallyhub/rallyhub-backend/pkg/distributed"
	"go.uber.org/zap"
)

// LocalMatchLocker 단일 인스턴스용 프로세스 내 매치 락.
// 보유자와 대기자가 모두 빠지면 항목을 지운다.
type LocalMatchLocker struct {
	mu    sync.Mutex
	locks map[string]*localLock
}

type localLock struct {
	ch   chan struct{}
	refs int
}

func NewLocalMatchLocker() *LocalMatchLocker {
	return &LocalMatchLocker{locks: make(map[string]*localLock)}
}

func (l *LocalMatchLocker) Lock(ctx context.Context, matchID string) (func(), error) {
	l.mu.Lock()
	entry, ok := l.locks[matchID]
	if !ok {
		entry = &localLock{ch: make(chan struct{}, 1)}
		l.locks[matchID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-entry.ch
				l.drop(matchID, entry)
			})
		}, nil
	case <-ctx.Done():
		l.drop(matchID, entry)
		return nil, fmt.Errorf("%w: %v", ErrMatchBusy, ctx.Err())
	}
}

func (l *LocalMatchLocker) drop(matchID string, entry *localLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.refs--
	if entry.refs == 0 && l.locks[matchID] == entry {
		delete(l.locks, matchID)
	}
}

// Len 현재 추적 중인 매치 수
func (l *LocalMatchLocker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

// RedisMatchLocker 여러 인스턴스가 같은 매치를 동시에 변경하지 못하게 하는 분산 락
type RedisMatchLocker struct {
	manager       *distributed.LockManager
	ttl           time.Duration
	maxRetries    int
	retryInterval time.Duration
	logger        *zap.Logger
}

func NewRedisMatchLocker(manager *distributed.LockManager, ttl time.Duration, logger *zap.Logger) *RedisMatchLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisMatchLocker{
		manager:       manager,
		ttl:           ttl,
		maxRetries:    5,
		retryInterval: 100 * time.Millisecond,
		logger:        logger,
	}
}

func (l *RedisMatchLocker) Lock(ctx context.Context, matchID string) (func(), error) {
	lock, err := l.manager.AcquireWithRetry(ctx, matchID, l.ttl, l.maxRetries, l.retryInterval)
	if errors.Is(err, distributed.ErrLockNotAcquired) {
		return nil, ErrMatchBusy
	}
	if err != nil {
		return nil, fmt.Errorf("failed to acquire match lock: %w", err)
	}

	return func() {
		// 요청 컨텍스트가 취소되어도 락은 해제해야 한다
		if err := lock.Release(context.Background()); err != nil {
			l.logger.Warn("Failed to release match lock",
				zap.String("matchId", matchID),
				zap.Error(err))
		}
	}, nil
}
