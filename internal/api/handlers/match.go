package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rallyhub/rallyhub-backend/internal/api/middleware"
	"github.com/rallyhub/rallyhub-backend/internal/models"
	"github.com/rallyhub/rallyhub-backend/internal/service"
	"github.com/rallyhub/rallyhub-backend/pkg/logger"
)

// IdempotencyHeader 변경 요청 재시도 식별 헤더
const IdempotencyHeader = "Idempotency-Key"

// MatchWorkflow *service.MatchService
type MatchWorkflow interface {
	CreateMatch(ctx context.Context, creatorID string, req models.CreateMatchRequest) (*models.Match, []models.Participant, error)
	GetMatchState(ctx context.Context, matchID, actorID string) (*service.MatchState, error)
	GetMatchView(ctx context.Context, matchID, actorID string) (*service.MatchView, error)
	Join(ctx context.Context, matchID string, actor service.Actor, req models.JoinMatchRequest) ([]models.Participant, error)
	AcceptInvitation(ctx context.Context, matchID string, actor service.Actor) ([]models.Participant, error)
	DeclineInvitation(ctx context.Context, matchID string, actor service.Actor) ([]models.Participant, error)
	SubmitResult(ctx context.Context, matchID string, actor service.Actor, req models.SubmitResultRequest) (*models.Match, error)
	ReviewResult(ctx context.Context, matchID string, actor service.Actor, decision models.ReviewDecision) (*models.Match, error)
	RequestWalkover(ctx context.Context, matchID string, actor service.Actor, req models.WalkoverRequest) (*models.Match, error)
	Cancel(ctx context.Context, matchID string, actor service.Actor, req models.CancelMatchRequest) (*models.Match, error)
	VoidMatch(ctx context.Context, matchID, adminID string, req models.VoidMatchRequest) (*models.Match, error)
}

type MatchHandler struct {
	matches MatchWorkflow
}

func NewMatchHandler(matches MatchWorkflow) *MatchHandler {
	return &MatchHandler{matches: matches}
}

// CreateMatch 새 매치 생성
func (h *MatchHandler) CreateMatch(c *gin.Context) {
	var req models.CreateMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "invalid_request"})
		return
	}

	match, participants, err := h.matches.CreateMatch(c.Request.Context(), c.GetString(middleware.ContextUserID), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"match":        match,
		"participants": participants,
	})
}

// GetMatch 요청자 관점의 매치 상세 (상태, 역할, 가능한 액션, 카운트다운)
func (h *MatchHandler) GetMatch(c *gin.Context) {
	view, err := h.matches.GetMatchView(c.Request.Context(), c.Param("id"), c.GetString(middleware.ContextUserID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// GetMatchState 저장된 매치, 참가자, 요청자의 조
func (h *MatchHandler) GetMatchState(c *gin.Context) {
	st, err := h.matches.GetMatchState(c.Request.Context(), c.Param("id"), c.GetString(middleware.ContextUserID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"match":        st.Match,
		"participants": st.Participants,
		"partnership":  st.Partnership,
	})
}

// Join 매치 참가
func (h *MatchHandler) Join(c *gin.Context) {
	var req models.JoinMatchRequest
	if !bindOptional(c, &req) {
		return
	}

	participants, err := h.matches.Join(c.Request.Context(), c.Param("id"), actorOf(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"participants": participants})
}

// AcceptInvitation 초대 수락
func (h *MatchHandler) AcceptInvitation(c *gin.Context) {
	participants, err := h.matches.AcceptInvitation(c.Request.Context(), c.Param("id"), actorOf(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"participants": participants})
}

// DeclineInvitation 초대 거절
func (h *MatchHandler) DeclineInvitation(c *gin.Context) {
	participants, err := h.matches.DeclineInvitation(c.Request.Context(), c.Param("id"), actorOf(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"participants": participants})
}

// SubmitResult 결과 제출
func (h *MatchHandler) SubmitResult(c *gin.Context) {
	var req models.SubmitResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "invalid_request"})
		return
	}

	match, err := h.matches.SubmitResult(c.Request.Context(), c.Param("id"), actorOf(c), req)
	h.respondMatch(c, match, err)
}

// ReviewResult 결과 확인/분쟁
func (h *MatchHandler) ReviewResult(c *gin.Context) {
	var req models.ReviewResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "invalid_request"})
		return
	}

	match, err := h.matches.ReviewResult(c.Request.Context(), c.Param("id"), actorOf(c), req.Decision)
	h.respondMatch(c, match, err)
}

// RequestWalkover 기권승 기록
func (h *MatchHandler) RequestWalkover(c *gin.Context) {
	var req models.WalkoverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "invalid_request"})
		return
	}

	match, err := h.matches.RequestWalkover(c.Request.Context(), c.Param("id"), actorOf(c), req)
	h.respondMatch(c, match, err)
}

// Cancel 매치 취소
func (h *MatchHandler) Cancel(c *gin.Context) {
	var req models.CancelMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": bindingCode(err, "missing_reason")})
		return
	}

	match, err := h.matches.Cancel(c.Request.Context(), c.Param("id"), actorOf(c), req)
	h.respondMatch(c, match, err)
}

// VoidMatch 관리자 무효 처리
func (h *MatchHandler) VoidMatch(c *gin.Context) {
	var req models.VoidMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": bindingCode(err, "missing_reason")})
		return
	}

	match, err := h.matches.VoidMatch(c.Request.Context(), c.Param("id"), c.GetString(middleware.ContextUserID), req)
	h.respondMatch(c, match, err)
}

func (h *MatchHandler) respondMatch(c *gin.Context, match *models.Match, err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"match": match})
}

func actorOf(c *gin.Context) service.Actor {
	return service.Actor{
		UserID:         c.GetString(middleware.ContextUserID),
		IdempotencyKey: c.GetHeader(IdempotencyHeader),
	}
}

// bindOptional 빈 body 허용
func bindOptional(c *gin.Context, req interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "invalid_request"})
		return false
	}
	return true
}

// bindingCode body를 해석하지 못하면 invalid_request, 필드 검증 실패면 validationCode
func bindingCode(err error, validationCode string) string {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) ||
		errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return "invalid_request"
	}
	return validationCode
}

// respondError 서비스 에러 → HTTP 상태 + reason code
func respondError(c *gin.Context, err error) {
	status := statusOf(err)
	code := service.ErrorCode(err)

	if status == http.StatusInternalServerError {
		logger.Error("Match request failed",
			"path", c.FullPath(),
			"matchId", c.Param("id"),
			"error", err)
		c.JSON(status, gin.H{"error": "Internal server error", "code": "internal"})
		return
	}

	var re *service.RuleError
	message := err.Error()
	if errors.As(err, &re) {
		message = re.Message
	}
	c.JSON(status, gin.H{"error": message, "code": code})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, service.ErrMatchNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrMatchBusy):
		return http.StatusConflict
	case errors.Is(err, service.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, service.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, service.ErrPreconditionFailed):
		return http.StatusPreconditionFailed
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
