package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rallyhub/rallyhub-backend/internal/api"
	"github.com/rallyhub/rallyhub-backend/internal/api/handlers"
	"github.com/rallyhub/rallyhub-backend/internal/config"
	"github.com/rallyhub/rallyhub-backend/internal/repository"
	"github.com/rallyhub/rallyhub-backend/internal/service"
	"github.com/rallyhub/rallyhub-backend/internal/websocket"
	"github.com/rallyhub/rallyhub-backend/pkg/database"
	"github.com/rallyhub/rallyhub-backend/pkg/distributed"
	jwtutil "github.com/rallyhub/rallyhub-backend/pkg/jwt"
	"github.com/rallyhub/rallyhub-backend/pkg/logger"
	"github.com/rallyhub/rallyhub-backend/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// 설정 로드
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 로거 초기화
	zl := logger.Init(cfg.Env, cfg.LogLevel)
	defer logger.Sync()

	logger.Info("Starting RallyHub Backend",
		"port", cfg.Port,
		"env", cfg.Env,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 데이터베이스 연결
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	logger.Info("Database connection established")

	// WebSocket Hub 시작
	hub := websocket.NewHub(zl.Named("websocket"))
	go hub.Run(ctx)

	rule := ratelimit.Rule{Limit: cfg.RateLimitRequests, Window: cfg.RateLimitWindow}
	memoryLimiter := ratelimit.NewMemoryLimiter(rule)
	go sweepLimiter(ctx, memoryLimiter, rule.Window)

	matchCfg := service.MatchServiceConfig{
		Store:                repository.NewMatchRepository(db),
		Partnerships:         repository.NewPartnershipRepository(db),
		Directory:            repository.NewProfileRepository(db),
		Events:               hub,
		Clock:                service.SystemClock,
		Location:             cfg.LeagueTimezone,
		DefaultMatchDuration: cfg.DefaultMatchDuration,
		ApprovalWindow:       cfg.AutoApprovalWindow,
		Logger:               zl.Named("match"),
	}
	deps := api.Dependencies{
		Hub:         hub,
		JWT:         jwtutil.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration),
		RateLimiter: memoryLimiter,
		Health: map[string]handlers.Pinger{
			"postgres": db.PingContext,
		},
	}
	var dueQueue service.DueQueue

	// Redis가 있으면 다중 인스턴스 모드 (분산 락, 멱등 키, 자동 확정 큐, 이벤트 버스)
	redisClient, err := connectRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Warn("Redis unavailable, running in single-instance mode", "error", err)
	} else {
		defer redisClient.Close()

		matchCfg.Locker = service.NewRedisMatchLocker(
			distributed.NewLockManager(redisClient, "lock:match"), cfg.MatchLockTTL, zl.Named("lock"))
		matchCfg.Idempotency = distributed.NewIdempotencyStore(redisClient, cfg.IdempotencyTTL)

		approvalQueue := distributed.NewApprovalQueue(redisClient, "auto-approval", 5, 30*time.Second)
		matchCfg.Scheduler = approvalQueue
		dueQueue = approvalQueue
		deps.ApprovalQueue = approvalQueue

		relay := websocket.NewRelay(
			distributed.NewEventBus(redisClient, "rallyhub:match-events", zl.Named("eventbus")), hub, zl.Named("relay"))
		matchCfg.Events = relay
		go func() {
			if err := relay.Run(ctx); err != nil {
				logger.Error("Event relay stopped", "error", err)
			}
		}()

		deps.RateLimiter = ratelimit.WithFallback(
			ratelimit.NewRedisLimiter(redisClient, "ratelimit:match", rule),
			memoryLimiter,
			func(key string, err error) {
				logger.Warn("Redis rate limiter failed, using in-memory limiter", "key", key, "error", err)
			},
		)
		deps.Health["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}

		logger.Info("Redis connection established")
	}

	matchService := service.NewMatchService(matchCfg)
	deps.Matches = matchService

	// 자동 확정 스윕 시작
	sweeper := service.NewAutoApprovalSweeper(matchService, dueQueue, service.SystemClock, service.SweeperConfig{
		Interval: cfg.AutoApprovalSweepInterval,
		Workers:  cfg.AutoApprovalWorkers,
	}, zl.Named("sweeper"))
	sweeper.Start()

	// 라우터 설정
	router := api.SetupRouter(cfg, deps)

	// 서버 설정
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 서버 시작 (고루틴)
	go func() {
		logger.Info("Server listening", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Graceful shutdown 대기
	<-ctx.Done()
	logger.Info("Shutting down server...")

	// 10초 타임아웃으로 종료
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	sweeper.Stop()

	logger.Info("Server exited")
}

func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, fmt.Errorf("REDIS_URL is empty")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// sweepLimiter 오래 쓰지 않은 버킷 정리
func sweepLimiter(ctx context.Context, limiter *ratelimit.MemoryLimiter, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := limiter.Sweep(); n > 0 {
				logger.L().Debug("Rate limit buckets swept", zap.Int("removed", n), zap.Int("remaining", limiter.Len()))
			}
		case <-ctx.Done():
			return
		}
	}
}
