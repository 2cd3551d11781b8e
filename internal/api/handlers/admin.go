package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rallyhub/rallyhub-backend/pkg/distributed"
)

// QueueInspector *distributed.ApprovalQueue
type QueueInspector interface {
	GetStats(ctx context.Context, now time.Time) (*distributed.QueueStats, error)
	PeekDLQ(ctx context.Context, count int64) ([]distributed.DeadLetter, error)
}

type AdminHandler struct {
	queue QueueInspector
}

func NewAdminHandler(queue QueueInspector) *AdminHandler {
	return &AdminHandler{queue: queue}
}

// ApprovalQueue 자동 확정 큐 통계와 DLQ 항목
func (h *AdminHandler) ApprovalQueue(c *gin.Context) {
	if h.queue == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Auto-approval queue is not configured",
			"code":  "queue_unavailable",
		})
		return
	}

	limit, err := strconv.ParseInt(c.DefaultQuery("limit", "20"), 10, 64)
	if err != nil || limit <= 0 || limit > 100 {
		limit = 20
	}

	stats, err := h.queue.GetStats(c.Request.Context(), time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get queue stats"})
		return
	}
	dead, err := h.queue.PeekDLQ(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read dead letters"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stats":       stats,
		"deadLetters": dead,
	})
}
