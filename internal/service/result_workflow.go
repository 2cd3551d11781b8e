package service

import (
	"strings"
	"time"

	"github.com/rallyhub/rallyhub-backend/internal/models"
)

// WorkflowState 결과 판정 상태 머신의 상태
type WorkflowState string

const (
	StateScheduled            WorkflowState = "Scheduled"
	StateAwaitingConfirmation WorkflowState = "AwaitingConfirmation"
	StateDisputed             WorkflowState = "Disputed"
	StateUnfinished           WorkflowState = "Unfinished"
	StateCompleted            WorkflowState = "Completed"
	StateCancelled            WorkflowState = "Cancelled"
	StateVoid                 WorkflowState = "Void"
	StateDraft                WorkflowState = "Draft"
)

// StateOf 저장된 상태 + 분쟁 플래그로 상태 머신 상태 결정
func StateOf(match *models.Match) WorkflowState {
	switch Canonical(match.Status) {
	case models.MatchStatusOngoing:
		if match.IsDisputed {
			return StateDisputed
		}
		return StateAwaitingConfirmation
	case models.MatchStatusUnfinished:
		return StateUnfinished
	case models.MatchStatusCompleted:
		return StateCompleted
	case models.MatchStatusCancelled:
		return StateCancelled
	case models.MatchStatusVoid:
		return StateVoid
	case models.MatchStatusDraft:
		return StateDraft
	}
	return StateScheduled
}

func (s WorkflowState) Terminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateVoid
}

type Event string

const (
	EventSubmit      Event = "submit"
	EventConfirm     Event = "confirm"
	EventDispute     Event = "dispute"
	EventAutoApprove Event = "auto_approve"
	EventCancel      Event = "cancel"
	EventWalkover    Event = "walkover"
	EventVoid        Event = "void"
)

type transition struct {
	allowed bool
	reject  *RuleError
}

func allow() transition               { return transition{allowed: true} }
func forbid(err *RuleError) transition { return transition{reject: err} }

// transitionTable 모든 상태×이벤트 조합에 대한 명시적 결정
var transitionTable = map[WorkflowState]map[Event]transition{
	StateScheduled: {
		EventSubmit:      allow(),
		EventConfirm:     forbid(ErrNoPendingResult),
		EventDispute:     forbid(ErrNoPendingResult),
		EventAutoApprove: forbid(ErrNoPendingResult),
		EventCancel:      allow(),
		EventWalkover:    allow(),
		EventVoid:        allow(),
	},
	StateAwaitingConfirmation: {
		EventSubmit:      allow(),
		EventConfirm:     allow(),
		EventDispute:     allow(),
		EventAutoApprove: allow(),
		EventCancel:      forbid(ErrNotScheduled),
		EventWalkover:    allow(),
		EventVoid:        allow(),
	},
	StateDisputed: {
		EventSubmit:      forbid(ErrResultDisputed),
		EventConfirm:     forbid(ErrResultDisputed),
		EventDispute:     forbid(ErrResultDisputed),
		EventAutoApprove: forbid(ErrResultDisputed),
		EventCancel:      forbid(ErrNotScheduled),
		EventWalkover:    allow(),
		EventVoid:        allow(),
	},
	StateUnfinished: {
		EventSubmit:      allow(),
		EventConfirm:     forbid(ErrNoPendingResult),
		EventDispute:     forbid(ErrNoPendingResult),
		EventAutoApprove: forbid(ErrNoPendingResult),
		EventCancel:      forbid(ErrNotScheduled),
		EventWalkover:    allow(),
		EventVoid:        allow(),
	},
	StateDraft: {
		EventSubmit:      forbid(ErrTransitionDenied),
		EventConfirm:     forbid(ErrTransitionDenied),
		EventDispute:     forbid(ErrTransitionDenied),
		EventAutoApprove: forbid(ErrTransitionDenied),
		EventCancel:      forbid(ErrNotScheduled),
		EventWalkover:    forbid(ErrTransitionDenied),
		EventVoid:        allow(),
	},
}

// checkTransition 종료 상태는 어떤 이벤트로도 빠져나갈 수 없다
func checkTransition(state WorkflowState, event Event) error {
	if state.Terminal() {
		return ErrMatchTerminal
	}
	t, ok := transitionTable[state][event]
	if !ok {
		return ErrTransitionDenied
	}
	if !t.allowed {
		return t.reject
	}
	return nil
}

// TransitionContext 액터가 요청한 트랜지션의 입력
type TransitionContext struct {
	Match        *models.Match
	Participants []models.Participant
	Partnership  *models.Partnership
	ActorID      string
	Now          time.Time
}

func (tc TransitionContext) roles() RoleFacts {
	return ResolveRoles(tc.Match, tc.Participants, tc.Partnership, tc.ActorID)
}

type Score struct {
	Team1 *int
	Team2 *int
}

func (s Score) validate() error {
	if s.Team1 == nil || s.Team2 == nil {
		return ErrMissingScore
	}
	if *s.Team1 < 0 || *s.Team2 < 0 {
		return ErrNegativeScore
	}
	return nil
}

type SubmitFlags struct {
	IsUnfinished bool
	IsCasualPlay bool
}

// ResultWorkflow 점수 제출, 확인, 분쟁, 자동 확정을 관장하는 상태 머신.
// 모든 메서드는 입력 매치를 변경하지 않고 새 후보 매치를 반환한다.
type ResultWorkflow struct {
	resolver       *StatusResolver
	guard          *CancellationGuard
	approvalWindow time.Duration
}

func NewResultWorkflow(resolver *StatusResolver, guard *CancellationGuard, approvalWindow time.Duration) *ResultWorkflow {
	if approvalWindow <= 0 {
		approvalWindow = AutoApprovalWindow
	}
	return &ResultWorkflow{
		resolver:       resolver,
		guard:          guard,
		approvalWindow: approvalWindow,
	}
}

// Submit 결과 제출
func (w *ResultWorkflow) Submit(tc TransitionContext, score Score, flags SubmitFlags) (*models.Match, error) {
	if err := score.validate(); err != nil {
		return nil, err
	}

	m := tc.Match
	state := StateOf(m)
	if state == StateCompleted && sameSubmission(m, tc.ActorID, score) {
		return nil, ErrAlreadyProcessed
	}
	if err := checkTransition(state, EventSubmit); err != nil {
		return nil, err
	}

	actor, ok := findParticipant(tc.Participants, tc.ActorID)
	if !ok || actor.InvitationStatus != models.InvitationAccepted || !actor.Seated() {
		return nil, ErrNotParticipant
	}

	fill := ComputeFill(m.MatchType, tc.Participants)
	switch state {
	case StateScheduled:
		if err := readyForResult(fill); err != nil {
			return nil, err
		}
		if !w.resolver.TimeReached(m, tc.Now) {
			return nil, ErrTimeNotReached
		}
	case StateUnfinished:
		if sameSubmission(m, tc.ActorID, score) && m.ResultIsUnfinished == flags.IsUnfinished {
			return nil, ErrAlreadyProcessed
		}
		// 이미 시작된 매치이므로 시작 시각은 다시 확인하지 않는다
		if err := readyForResult(fill); err != nil {
			return nil, err
		}
	case StateAwaitingConfirmation:
		if sameSubmission(m, tc.ActorID, score) && m.ResultIsUnfinished == flags.IsUnfinished {
			return nil, ErrAlreadyProcessed
		}
		if !m.ResultIsUnfinished {
			return nil, ErrResultPending
		}
	}

	next := m.Clone()
	next.Team1Score = intPtr(*score.Team1)
	next.Team2Score = intPtr(*score.Team2)
	next.ResultSubmittedByID = strPtr(tc.ActorID)
	next.ResultSubmittedAt = timePtr(tc.Now)
	next.ResultIsUnfinished = flags.IsUnfinished
	next.IsCasualPlay = flags.IsCasualPlay
	next.IsDisputed = false
	next.DisputedByID = nil
	next.ConfirmedByID = nil
	next.UpdatedAt = tc.Now
	if flags.IsUnfinished && !flags.IsCasualPlay {
		next.Status = models.MatchStatusUnfinished
	} else {
		next.Status = models.MatchStatusOngoing
	}
	return next, nil
}

// Confirm 상대 측 검토자의 결과 확인
func (w *ResultWorkflow) Confirm(tc TransitionContext) (*models.Match, error) {
	m := tc.Match
	state := StateOf(m)
	if state == StateCompleted && m.ConfirmedByID != nil && *m.ConfirmedByID == tc.ActorID {
		return nil, ErrAlreadyProcessed
	}
	if err := checkTransition(state, EventConfirm); err != nil {
		return nil, err
	}
	if !tc.roles().CanReviewResult {
		return nil, ErrNotReviewer
	}

	next := complete(m, tc.Now)
	next.ConfirmedByID = strPtr(tc.ActorID)
	return next, nil
}

// Dispute 상대 측 검토자의 이의 제기. 점수는 감사 목적으로 유지한다.
func (w *ResultWorkflow) Dispute(tc TransitionContext) (*models.Match, error) {
	m := tc.Match
	state := StateOf(m)
	if state == StateDisputed && m.DisputedByID != nil && *m.DisputedByID == tc.ActorID {
		return nil, ErrAlreadyProcessed
	}
	if err := checkTransition(state, EventDispute); err != nil {
		return nil, err
	}
	if !tc.roles().CanReviewResult {
		return nil, ErrNotReviewer
	}

	next := m.Clone()
	next.IsDisputed = true
	next.DisputedByID = strPtr(tc.ActorID)
	next.UpdatedAt = tc.Now
	return next, nil
}

// AutoApprove 시스템이 호출. 제출 후 승인 창이 지나도록 검토가 없으면 확정한다.
func (w *ResultWorkflow) AutoApprove(match *models.Match, now time.Time) (*models.Match, error) {
	if err := checkTransition(StateOf(match), EventAutoApprove); err != nil {
		return nil, err
	}
	if !match.HasResult() {
		return nil, ErrNoPendingResult
	}
	if !approvalDue(*match.ResultSubmittedAt, now, w.approvalWindow) {
		return nil, ErrApprovalNotDue
	}

	next := complete(match, now)
	next.AutoApproved = true
	return next, nil
}

// Countdown 이 워크플로의 승인 창 기준 남은 시간
func (w *ResultWorkflow) Countdown(match *models.Match, now time.Time) *Countdown {
	if StateOf(match) != StateAwaitingConfirmation || !match.HasResult() {
		return nil
	}
	c := countdownWithin(*match.ResultSubmittedAt, now, w.approvalWindow)
	return &c
}

// Cancel 예정된 매치 취소
func (w *ResultWorkflow) Cancel(tc TransitionContext, reason string, comment *string) (*models.Match, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, ErrMissingReason
	}
	m := tc.Match
	if err := checkTransition(StateOf(m), EventCancel); err != nil {
		return nil, err
	}
	if err := w.guard.Check(m, tc.Participants, tc.ActorID, tc.Now); err != nil {
		return nil, err
	}

	next := m.Clone()
	next.Status = models.MatchStatusCancelled
	next.CancelledByID = strPtr(tc.ActorID)
	next.CancellationReason = strPtr(strings.TrimSpace(reason))
	next.CancellationComment = comment
	next.UpdatedAt = tc.Now
	return next, nil
}

// Void 관리자 무효 처리 (액터 단위 규칙 밖)
func (w *ResultWorkflow) Void(match *models.Match, adminID, reason string, now time.Time) (*models.Match, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, ErrMissingReason
	}
	if err := checkTransition(StateOf(match), EventVoid); err != nil {
		return nil, err
	}

	next := match.Clone()
	next.Status = models.MatchStatusVoid
	next.IsDisputed = false
	next.CancelledByID = strPtr(adminID)
	next.CancellationReason = strPtr(strings.TrimSpace(reason))
	next.UpdatedAt = now
	return next, nil
}

func readyForResult(fill FillState) error {
	if !fill.AllFilled() {
		return ErrSlotsNotFilled
	}
	if !fill.AllAccepted() {
		return ErrInvitationsPending
	}
	return nil
}

func complete(match *models.Match, now time.Time) *models.Match {
	next := match.Clone()
	next.Status = models.MatchStatusCompleted
	next.IsDisputed = false
	next.CompletedAt = timePtr(now)
	next.UpdatedAt = now
	next.WinningTeam = winningTeam(match.Team1Score, match.Team2Score)
	return next
}

func sameSubmission(match *models.Match, actorID string, score Score) bool {
	return match.ResultSubmittedByID != nil && *match.ResultSubmittedByID == actorID &&
		equalScore(match.Team1Score, score.Team1) && equalScore(match.Team2Score, score.Team2)
}

func equalScore(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func winningTeam(team1, team2 *int) *models.Team {
	if team1 == nil || team2 == nil || *team1 == *team2 {
		return nil
	}
	t := models.Team1
	if *team2 > *team1 {
		t = models.Team2
	}
	return &t
}

func intPtr(v int) *int              { return &v }
func strPtr(v string) *string        { return &v }
func timePtr(v time.Time) *time.Time { return &v }
