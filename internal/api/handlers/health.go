package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger DB, Redis 연결 확인
type Pinger func(ctx context.Context) error

type HealthHandler struct {
	checks map[string]Pinger
}

// NewHealthHandler 이름 → 의존성 확인 함수
func NewHealthHandler(checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// Live 프로세스 생존 확인
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "rallyhub-backend",
	})
}

// Ready 의존성까지 확인
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status, overall := http.StatusOK, "ok"
	results := make(gin.H, len(h.checks))
	for name, ping := range h.checks {
		if err := ping(ctx); err != nil {
			results[name] = err.Error()
			status, overall = http.StatusServiceUnavailable, "degraded"
			continue
		}
		results[name] = "ok"
	}

	c.JSON(status, gin.H{
		"status": overall,
		"checks": results,
	})
}
