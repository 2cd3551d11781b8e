package distributed

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ApprovalQueue 자동 확정 예정 매치 큐.
// Sorted Set 점수가 확정 예정 시각(ms)이라 ZRANGEBYSCORE로 기한이 지난 것만 꺼낸다.
type ApprovalQueue struct {
	client      *redis.Client
	dueKey      string // Sorted Set: matchID → dueAt
	attemptsKey string // Hash: matchID → 실패 횟수
	dlqKey      string // List
	maxRetries  int
	retryDelay  time.Duration
}

// DeadLetter 재시도 한도를 넘긴 항목
type DeadLetter struct {
	MatchID  string    `json:"match_id"`
	Reason   string    `json:"reason"`
	Attempts int       `json:"attempts"`
	MovedAt  time.Time `json:"moved_at"`
}

type QueueStats struct {
	DueCount int64 `json:"due_count"`
	Pending  int64 `json:"pending"`
	DLQSize  int64 `json:"dlq_size"`
}

// 기한 지난 항목을 원자적으로 꺼낸다. 여러 인스턴스가 스윕해도 한 항목은 한 번만 나간다.
var claimDueScript = redis.NewScript(`
	local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
	for _, id in ipairs(ids) do
		redis.call('ZREM', KEYS[1], id)
	end
	return ids
`)

func NewApprovalQueue(client *redis.Client, name string, maxRetries int, retryDelay time.Duration) *ApprovalQueue {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	if retryDelay <= 0 {
		retryDelay = 30 * time.Second
	}
	return &ApprovalQueue{
		client:      client,
		dueKey:      fmt.Sprintf("queue:%s:due", name),
		attemptsKey: fmt.Sprintf("queue:%s:attempts", name),
		dlqKey:      fmt.Sprintf("queue:%s:dlq", name),
		maxRetries:  maxRetries,
		retryDelay:  retryDelay,
	}
}

// Schedule dueAt에 자동 확정 평가 예약 (이미 있으면 시각 갱신)
func (q *ApprovalQueue) Schedule(ctx context.Context, matchID string, dueAt time.Time) error {
	if err := q.client.ZAdd(ctx, q.dueKey, redis.Z{
		Score:  float64(dueAt.UnixMilli()),
		Member: matchID,
	}).Err(); err != nil {
		return fmt.Errorf("failed to schedule auto-approval: %w", err)
	}
	return nil
}

// ClaimDue now 기준 기한이 지난 매치 ID를 최대 limit개 꺼낸다
func (q *ApprovalQueue) ClaimDue(ctx context.Context, now time.Time, limit int) ([]string, error) {
	res, err := claimDueScript.Run(ctx, q.client, []string{q.dueKey}, now.UnixMilli(), limit).StringSlice()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim due matches: %w", err)
	}
	return res, nil
}

// Complete 처리 완료, 실패 기록 삭제
func (q *ApprovalQueue) Complete(ctx context.Context, matchID string) error {
	return q.client.HDel(ctx, q.attemptsKey, matchID).Err()
}

// Retry 실패한 항목을 뒤로 미뤄 다시 예약. 한도를 넘으면 DLQ로.
func (q *ApprovalQueue) Retry(ctx context.Context, matchID, reason string) error {
	attempts, err := q.client.HIncrBy(ctx, q.attemptsKey, matchID, 1).Result()
	if err != nil {
		return fmt.Errorf("failed to record attempt: %w", err)
	}

	if int(attempts) >= q.maxRetries {
		return q.moveToDLQ(ctx, matchID, reason, int(attempts))
	}

	dueAt := time.Now().Add(time.Duration(attempts) * q.retryDelay)
	return q.Schedule(ctx, matchID, dueAt)
}

func (q *ApprovalQueue) moveToDLQ(ctx context.Context, matchID, reason string, attempts int) error {
	data, err := json.Marshal(DeadLetter{
		MatchID:  matchID,
		Reason:   reason,
		Attempts: attempts,
		MovedAt:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal DLQ item: %w", err)
	}

	pipe := q.client.TxPipeline()
	pipe.LPush(ctx, q.dlqKey, data)
	pipe.HDel(ctx, q.attemptsKey, matchID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to move to DLQ: %w", err)
	}
	return nil
}

// Attempts 현재까지 실패 횟수
func (q *ApprovalQueue) Attempts(ctx context.Context, matchID string) (int, error) {
	v, err := q.client.HGet(ctx, q.attemptsKey, matchID).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(v)
}

// Size 예약된 항목 수
func (q *ApprovalQueue) Size(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, q.dueKey).Result()
}

// DLQSize DLQ 크기
func (q *ApprovalQueue) DLQSize(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.dlqKey).Result()
}

// PeekDLQ DLQ 항목 확인 (제거하지 않음)
func (q *ApprovalQueue) PeekDLQ(ctx context.Context, count int64) ([]DeadLetter, error) {
	items, err := q.client.LRange(ctx, q.dlqKey, 0, count-1).Result()
	if err != nil {
		return nil, err
	}

	out := make([]DeadLetter, 0, len(items))
	for _, item := range items {
		var dl DeadLetter
		if err := json.Unmarshal([]byte(item), &dl); err != nil {
			continue
		}
		out = append(out, dl)
	}
	return out, nil
}

// GetStats now 기준 큐 통계
func (q *ApprovalQueue) GetStats(ctx context.Context, now time.Time) (*QueueStats, error) {
	pending, err := q.Size(ctx)
	if err != nil {
		return nil, err
	}
	due, err := q.client.ZCount(ctx, q.dueKey, "-inf", strconv.FormatInt(now.UnixMilli(), 10)).Result()
	if err != nil {
		return nil, err
	}
	dlq, err := q.DLQSize(ctx)
	if err != nil {
		return nil, err
	}
	return &QueueStats{DueCount: due, Pending: pending, DLQSize: dlq}, nil
}
