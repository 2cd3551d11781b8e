package distributed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("lock not acquired")
	ErrLockNotHeld     = errors.New("lock not held")
)

// 자신이 잡은 락만 해제/연장
var (
	releaseScript = redis.NewScript(`
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		end
		return 0
	`)
	refreshScript = redis.NewScript(`
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("PEXPIRE", KEYS[1], ARGV[2])
		end
		return 0
	`)
)

// LockManager 리소스 단위 Redis 분산 락 (SET NX + 소유 토큰)
type LockManager struct {
	client *redis.Client
	prefix string
}

func NewLockManager(client *redis.Client, prefix string) *LockManager {
	if prefix == "" {
		prefix = "lock"
	}
	return &LockManager{
		client: client,
		prefix: prefix,
	}
}

// Lock 획득한 락 핸들
type Lock struct {
	client *redis.Client
	key    string
	token  string
}

func (m *LockManager) key(name string) string {
	return fmt.Sprintf("%s:%s", m.prefix, name)
}

// Acquire 한 번 시도. 이미 잡혀 있으면 ErrLockNotAcquired.
func (m *LockManager) Acquire(ctx context.Context, name string, ttl time.Duration) (*Lock, error) {
	key := m.key(name)
	token := uuid.New().String()

	ok, err := m.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockNotAcquired
	}

	return &Lock{client: m.client, key: key, token: token}, nil
}

// AcquireWithRetry attempts번까지 backoff 간격으로 재시도
func (m *LockManager) AcquireWithRetry(
	ctx context.Context,
	name string,
	ttl time.Duration,
	attempts int,
	backoff time.Duration,
) (*Lock, error) {
	for i := 0; i < attempts; i++ {
		lock, err := m.Acquire(ctx, name, ttl)
		if err == nil {
			return lock, nil
		}
		if !errors.Is(err, ErrLockNotAcquired) {
			return nil, err
		}

		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return nil, ErrLockNotAcquired
}

func (l *Lock) Token() string {
	return l.token
}

// Release 만료 후 다른 소유자가 잡은 락이면 ErrLockNotHeld
func (l *Lock) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// Refresh TTL 재설정
func (l *Lock) Refresh(ctx context.Context, ttl time.Duration) error {
	n, err := refreshScript.Run(ctx, l.client, []string{l.key}, l.token, ttl.Milliseconds()).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// Held 아직 이 핸들이 소유 중인지
func (l *Lock) Held(ctx context.Context) (bool, error) {
	v, err := l.client.Get(ctx, l.key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return v == l.token, nil
}
