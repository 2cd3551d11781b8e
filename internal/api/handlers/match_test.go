package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rallyhub/rallyhub-backend/internal/api/middleware"
	"github.com/rallyhub/rallyhub-backend/internal/models"
	"github.com/rallyhub/rallyhub-backend/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubWorkflow 모든 호출에 err를 돌려주고 마지막 액터를 기록한다
type stubWorkflow struct {
	err       error
	lastActor service.Actor
	lastOp    string
}

func (s *stubWorkflow) match(op string, actor service.Actor) (*models.Match, error) {
	s.lastOp, s.lastActor = op, actor
	if s.err != nil {
		return nil, s.err
	}
	return &models.Match{ID: "m1", Status: models.MatchStatusOngoing}, nil
}

func (s *stubWorkflow) CreateMatch(_ context.Context, creatorID string, _ models.CreateMatchRequest) (*models.Match, []models.Participant, error) {
	m, err := s.match("create", service.Actor{UserID: creatorID})
	return m, nil, err
}

func (s *stubWorkflow) GetMatchState(_ context.Context, _, actorID string) (*service.MatchState, error) {
	m, err := s.match("state", service.Actor{UserID: actorID})
	if err != nil {
		return nil, err
	}
	return &service.MatchState{Match: m}, nil
}

func (s *stubWorkflow) GetMatchView(_ context.Context, _, actorID string) (*service.MatchView, error) {
	m, err := s.match("view", service.Actor{UserID: actorID})
	if err != nil {
		return nil, err
	}
	return &service.MatchView{Match: m}, nil
}

func (s *stubWorkflow) Join(_ context.Context, _ string, actor service.Actor, _ models.JoinMatchRequest) ([]models.Participant, error) {
	_, err := s.match("join", actor)
	return nil, err
}

func (s *stubWorkflow) AcceptInvitation(_ context.Context, _ string, actor service.Actor) ([]models.Participant, error) {
	_, err := s.match("accept", actor)
	return nil, err
}

func (s *stubWorkflow) DeclineInvitation(_ context.Context, _ string, actor service.Actor) ([]models.Participant, error) {
	_, err := s.match("decline", actor)
	return nil, err
}

func (s *stubWorkflow) SubmitResult(_ context.Context, _ string, actor service.Actor, _ models.SubmitResultRequest) (*models.Match, error) {
	return s.match("submit", actor)
}

func (s *stubWorkflow) ReviewResult(_ context.Context, _ string, actor service.Actor, _ models.ReviewDecision) (*models.Match, error) {
	return s.match("review", actor)
}

func (s *stubWorkflow) RequestWalkover(_ context.Context, _ string, actor service.Actor, _ models.WalkoverRequest) (*models.Match, error) {
	return s.match("walkover", actor)
}

func (s *stubWorkflow) Cancel(_ context.Context, _ string, actor service.Actor, _ models.CancelMatchRequest) (*models.Match, error) {
	return s.match("cancel", actor)
}

func (s *stubWorkflow) VoidMatch(_ context.Context, _ string, adminID string, _ models.VoidMatchRequest) (*models.Match, error) {
	return s.match("void", service.Actor{UserID: adminID})
}

func newMatchRouter(wf MatchWorkflow) *gin.Engine {
	h := NewMatchHandler(wf)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserID, "alice")
		c.Next()
	})
	r.POST("/matches", h.CreateMatch)
	r.GET("/matches/:id", h.GetMatch)
	r.GET("/matches/:id/state", h.GetMatchState)
	r.POST("/matches/:id/join", h.Join)
	r.POST("/matches/:id/result", h.SubmitResult)
	r.POST("/matches/:id/result/review", h.ReviewResult)
	r.POST("/matches/:id/walkover", h.RequestWalkover)
	r.POST("/matches/:id/cancel", h.Cancel)
	return r
}

func doJSON(r http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestMatchHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "not authorized", err: service.ErrNotReviewer, status: http.StatusForbidden, code: "cannot_review"},
		{name: "invalid state", err: service.ErrMatchTerminal, status: http.StatusConflict, code: "match_terminal"},
		{name: "precondition", err: service.ErrSlotsNotFilled, status: http.StatusPreconditionFailed, code: "slots_not_filled"},
		{name: "validation", err: service.ErrMissingScore, status: http.StatusBadRequest, code: "missing_score"},
		{name: "not found", err: service.ErrMatchNotFound, status: http.StatusNotFound, code: "match_not_found"},
		{name: "busy", err: fmt.Errorf("%w: deadline", service.ErrMatchBusy), status: http.StatusConflict, code: "match_busy"},
		{name: "infrastructure", err: fmt.Errorf("failed to update match: %w", context.DeadlineExceeded), status: http.StatusInternalServerError, code: "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newMatchRouter(&stubWorkflow{err: tt.err})
			w := doJSON(r, http.MethodPost, "/matches/m1/result", models.SubmitResultRequest{}, nil)

			assert.Equal(t, tt.status, w.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body["code"])
		})
	}
}

func TestMatchHandler_PassesActorAndIdempotencyKey(t *testing.T) {
	wf := &stubWorkflow{}
	r := newMatchRouter(wf)

	w := doJSON(r, http.MethodPost, "/matches/m1/result/review",
		models.ReviewResultRequest{Decision: models.ReviewConfirm},
		map[string]string{IdempotencyHeader: "abc"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "review", wf.lastOp)
	assert.Equal(t, service.Actor{UserID: "alice", IdempotencyKey: "abc"}, wf.lastActor)
}

func TestMatchHandler_BindingErrors(t *testing.T) {
	wf := &stubWorkflow{}
	r := newMatchRouter(wf)

	w := doJSON(r, http.MethodPost, "/matches/m1/result/review", map[string]string{}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPost, "/matches/m1/cancel", map[string]string{}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPost, "/matches/m1/walkover", map[string]string{"reason": "NO_SHOW"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Empty(t, wf.lastOp)
}

func TestMatchHandler_CancelBindingCodes(t *testing.T) {
	wf := &stubWorkflow{}
	r := newMatchRouter(wf)
	r.POST("/matches/:id/void", NewMatchHandler(wf).VoidMatch)

	tests := []struct {
		name string
		path string
		body string
		code string
	}{
		{"cancel malformed body", "/matches/m1/cancel", `{"reason":`, "invalid_request"},
		{"cancel wrong type", "/matches/m1/cancel", `{"reason": 5}`, "invalid_request"},
		{"cancel empty body", "/matches/m1/cancel", ``, "invalid_request"},
		{"cancel without reason", "/matches/m1/cancel", `{"comment": "rain"}`, "missing_reason"},
		{"void malformed body", "/matches/m1/void", `not json`, "invalid_request"},
		{"void without reason", "/matches/m1/void", `{}`, "missing_reason"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			require.Equal(t, http.StatusBadRequest, w.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body["code"])
		})
	}
	assert.Empty(t, wf.lastOp)
}

func TestMatchHandler_JoinWithoutBody(t *testing.T) {
	wf := &stubWorkflow{}
	r := newMatchRouter(wf)

	req := httptest.NewRequest(http.MethodPost, "/matches/m1/join", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "join", wf.lastOp)
}

func TestMatchHandler_Reads(t *testing.T) {
	r := newMatchRouter(&stubWorkflow{})

	w := doJSON(r, http.MethodGet, "/matches/m1", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"permissions"`)

	w = doJSON(r, http.MethodGet, "/matches/m1/state", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"participants"`)
}

func TestHealthHandler_Ready(t *testing.T) {
	h := NewHealthHandler(map[string]Pinger{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return fmt.Errorf("connection refused") },
	})
	r := gin.New()
	r.GET("/live", h.Live)
	r.GET("/ready", h.Ready)

	w := doJSON(r, http.MethodGet, "/live", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodGet, "/ready", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}
