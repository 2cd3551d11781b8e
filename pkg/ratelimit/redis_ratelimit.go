package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// 토큰 버킷 상태를 해시 하나에 저장 (tokens, ts ms)
var tokenBucketScript = redis.NewScript(`
	local limit = tonumber(ARGV[1])
	local window_ms = tonumber(ARGV[2])
	local now = tonumber(ARGV[3])

	local state = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
	local tokens = tonumber(state[1])
	local ts = tonumber(state[2])
	if tokens == nil then
		tokens = limit
		ts = now
	end

	local rate = limit / window_ms
	tokens = math.min(limit, tokens + (now - ts) * rate)

	local allowed = 0
	if tokens >= 1 then
		tokens = tokens - 1
		allowed = 1
	end

	redis.call('HSET', KEYS[1], 'tokens', tokens, 'ts', now)
	redis.call('PEXPIRE', KEYS[1], window_ms * 2)

	local wait_ms = 0
	if tokens < 1 then
		wait_ms = math.ceil((1 - tokens) / rate)
	end
	return {allowed, math.floor(tokens), wait_ms}
`)

// RedisLimiter 여러 인스턴스가 공유하는 Redis 토큰 버킷
type RedisLimiter struct {
	client *redis.Client
	prefix string
	rule   Rule
}

func NewRedisLimiter(client *redis.Client, prefix string, rule Rule) *RedisLimiter {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisLimiter{
		client: client,
		prefix: prefix,
		rule:   rule,
	}
}

// Allow 토큰 1개 소비 시도
func (r *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	now := time.Now()
	vals, err := tokenBucketScript.Run(ctx, r.client,
		[]string{fmt.Sprintf("%s:%s", r.prefix, key)},
		r.rule.Limit, r.rule.Window.Milliseconds(), now.UnixMilli(),
	).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("redis rate limit script failed: %w", err)
	}
	if len(vals) < 3 {
		return Result{}, fmt.Errorf("invalid rate limit script result")
	}

	return Result{
		Allowed:   vals[0] == 1,
		Limit:     r.rule.Limit,
		Remaining: int(vals[1]),
		ResetAt:   now.Add(time.Duration(vals[2]) * time.Millisecond),
	}, nil
}

// Reset 특정 키 초기화
func (r *RedisLimiter) Reset(ctx context.Context, key string) error {
	return r.client.Del(ctx, fmt.Sprintf("%s:%s", r.prefix, key)).Err()
}
