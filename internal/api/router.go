package api

import (
	"github.com/gin-gonic/gin"
	"github.com/rallyhub/rallyhub-backend/internal/api/handlers"
	"github.com/rallyhub/rallyhub-backend/internal/api/middleware"
	"github.com/rallyhub/rallyhub-backend/internal/config"
	"github.com/rallyhub/rallyhub-backend/internal/websocket"
	jwtutil "github.com/rallyhub/rallyhub-backend/pkg/jwt"
	"github.com/rallyhub/rallyhub-backend/pkg/ratelimit"
)

// Dependencies 라우터가 사용하는 조립된 컴포넌트 (cmd/server에서 생성)
type Dependencies struct {
	Matches     handlers.MatchWorkflow
	Hub         *websocket.Hub
	JWT         *jwtutil.JWTManager
	RateLimiter ratelimit.Limiter
	Health      map[string]handlers.Pinger

	// nil이면 큐 조회 엔드포인트가 503을 돌려준다
	ApprovalQueue handlers.QueueInspector
}

// SetupRouter API 라우터 설정
func SetupRouter(cfg *config.Config, deps Dependencies) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// 전역 미들웨어
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	websocket.SetAllowedOrigins(cfg.CORSAllowedOrigins)

	healthHandler := handlers.NewHealthHandler(deps.Health)
	matchHandler := handlers.NewMatchHandler(deps.Matches)
	wsHandler := handlers.NewWebSocketHandler(deps.Hub)
	adminHandler := handlers.NewAdminHandler(deps.ApprovalQueue)

	auth := middleware.Auth(deps.JWT)
	var limit gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if deps.RateLimiter != nil {
		limit = middleware.RateLimit(deps.RateLimiter, nil)
	}

	// Health check
	router.GET("/health", healthHandler.Live)
	router.GET("/health/ready", healthHandler.Ready)

	// API v1
	v1 := router.Group("/api/v1")
	{
		// WebSocket endpoint
		v1.GET("/ws", auth, wsHandler.HandleWebSocket)

		// Match routes
		matches := v1.Group("/matches")
		matches.Use(auth)
		{
			matches.POST("", limit, matchHandler.CreateMatch)
			matches.GET("/:id", matchHandler.GetMatch)
			matches.GET("/:id/state", matchHandler.GetMatchState)

			matches.POST("/:id/join", limit, matchHandler.Join)
			matches.POST("/:id/invitation/accept", limit, matchHandler.AcceptInvitation)
			matches.POST("/:id/invitation/decline", limit, matchHandler.DeclineInvitation)

			matches.POST("/:id/result", limit, matchHandler.SubmitResult)
			matches.POST("/:id/result/review", limit, matchHandler.ReviewResult)
			matches.POST("/:id/walkover", limit, matchHandler.RequestWalkover)
			matches.POST("/:id/cancel", limit, matchHandler.Cancel)
		}

		// Admin routes
		admin := v1.Group("/admin")
		admin.Use(auth, middleware.RequireAdmin())
		{
			admin.POST("/matches/:id/void", matchHandler.VoidMatch)
			admin.GET("/auto-approval/queue", adminHandler.ApprovalQueue)
		}
	}

	return router
}
