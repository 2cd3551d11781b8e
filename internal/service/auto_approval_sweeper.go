package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rallyhub/rallyhub-backend/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DueQueue 자동 확정 예약 큐 (distributed.ApprovalQueue)
type DueQueue interface {
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]string, error)
	Complete(ctx context.Context, matchID string) error
	Retry(ctx context.Context, matchID, reason string) error
}

type approvalEvaluator interface {
	EvaluateAutoApproval(ctx context.Context, matchID string, now time.Time) (*models.Match, bool, error)
	DueForAutoApproval(ctx context.Context, now time.Time, limit int) ([]string, error)
}

type SweeperConfig struct {
	Interval  time.Duration
	Workers   int
	BatchSize int
}

// AutoApprovalSweeper 주기적으로 기한이 지난 결과를 자동 확정한다.
// 큐에서 꺼낸 항목과 DB에서 다시 찾은 항목을 함께 평가하므로 예약이 유실돼도 다음 주기에 처리된다.
type AutoApprovalSweeper struct {
	matches   approvalEvaluator
	queue     DueQueue
	clock     Clock
	logger    *zap.Logger
	interval  time.Duration
	workers   int
	batchSize int

	stopChan chan struct{}
	wg       sync.WaitGroup
	running  bool
	mu       sync.Mutex
}

func NewAutoApprovalSweeper(matches approvalEvaluator, queue DueQueue, clock Clock, cfg SweeperConfig, logger *zap.Logger) *AutoApprovalSweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if clock == nil {
		clock = SystemClock
	}
	if logger == nil {
		logger, _ = zap.NewProduction()
	}

	return &AutoApprovalSweeper{
		matches:   matches,
		queue:     queue,
		clock:     clock,
		logger:    logger,
		interval:  cfg.Interval,
		workers:   cfg.Workers,
		batchSize: cfg.BatchSize,
		stopChan:  make(chan struct{}),
	}
}

// Start 스윕 루프 시작
func (s *AutoApprovalSweeper) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info("Starting AutoApprovalSweeper",
		zap.Duration("interval", s.interval),
		zap.Int("workers", s.workers))

	s.wg.Add(1)
	go s.sweepLoop()
}

// Stop 진행 중인 스윕이 끝날 때까지 기다린다
func (s *AutoApprovalSweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("Stopping AutoApprovalSweeper")
	close(s.stopChan)
	s.wg.Wait()
	s.logger.Info("AutoApprovalSweeper stopped")
}

func (s *AutoApprovalSweeper) sweepLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-s.stopChan
		cancel()
	}()

	// 시작 시 한번 실행 (다운타임 동안 밀린 항목)
	s.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			s.RunOnce(ctx)
		case <-s.stopChan:
			return
		}
	}
}

// RunOnce 한 주기 실행. 자동 확정된 매치 수를 돌려준다.
func (s *AutoApprovalSweeper) RunOnce(ctx context.Context) int {
	now := s.clock.Now()
	candidates := s.collect(ctx, now)
	if len(candidates) == 0 {
		return 0
	}

	var approved atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for id, fromQueue := range candidates {
		id, fromQueue := id, fromQueue
		g.Go(func() error {
			if s.evaluate(gctx, id, now, fromQueue) {
				approved.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	n := int(approved.Load())
	s.logger.Info("Auto-approval sweep finished",
		zap.Int("candidates", len(candidates)),
		zap.Int("approved", n))
	return n
}

// collect matchID → 큐에서 꺼낸 항목인지
func (s *AutoApprovalSweeper) collect(ctx context.Context, now time.Time) map[string]bool {
	candidates := make(map[string]bool)

	if s.queue != nil {
		ids, err := s.queue.ClaimDue(ctx, now, s.batchSize)
		if err != nil {
			s.logger.Error("Failed to claim due matches from queue", zap.Error(err))
		}
		for _, id := range ids {
			candidates[id] = true
		}
	}

	ids, err := s.matches.DueForAutoApproval(ctx, now, s.batchSize)
	if err != nil {
		s.logger.Error("Failed to list due matches", zap.Error(err))
	}
	for _, id := range ids {
		if _, ok := candidates[id]; !ok {
			candidates[id] = false
		}
	}

	return candidates
}

func (s *AutoApprovalSweeper) evaluate(ctx context.Context, matchID string, now time.Time, fromQueue bool) bool {
	_, applied, err := s.matches.EvaluateAutoApproval(ctx, matchID, now)
	if err != nil {
		s.logger.Warn("Auto-approval evaluation failed",
			zap.String("matchId", matchID),
			zap.Error(err))
		if fromQueue && s.queue != nil {
			if rerr := s.queue.Retry(ctx, matchID, err.Error()); rerr != nil {
				s.logger.Error("Failed to requeue match", zap.String("matchId", matchID), zap.Error(rerr))
			}
		}
		return false
	}

	if fromQueue && s.queue != nil {
		if cerr := s.queue.Complete(ctx, matchID); cerr != nil {
			s.logger.Warn("Failed to complete queue item", zap.String("matchId", matchID), zap.Error(cerr))
		}
	}
	return applied
}
