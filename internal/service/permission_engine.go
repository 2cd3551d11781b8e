package service

import (
	"time"

	"github.com/rallyhub/rallyhub-backend/internal/models"
)

type Action string

const (
	ActionJoin               Action = "JOIN"
	ActionAcceptInvite       Action = "ACCEPT_INVITE"
	ActionSubmitResult       Action = "SUBMIT_RESULT"
	ActionReviewResult       Action = "REVIEW_RESULT"
	ActionConfirmResult      Action = "CONFIRM_RESULT"
	ActionDisputeResult      Action = "DISPUTE_RESULT"
	ActionContinueUnfinished Action = "CONTINUE_UNFINISHED"
	ActionCancel             Action = "CANCEL"
	ActionRequestWalkover    Action = "REQUEST_WALKOVER"
	ActionViewOnly           Action = "VIEW_ONLY"
)

type ActionSet []Action

func (s ActionSet) Has(a Action) bool {
	for _, x := range s {
		if x == a {
			return true
		}
	}
	return false
}

// Hint 클라이언트 표시용 문구 키
type Hint string

const (
	HintRespondToInvite         Hint = "respond_to_invitation"
	HintContinueUnfinished      Hint = "continue_unfinished"
	HintCompleted               Hint = "completed"
	HintClosed                  Hint = "closed"
	HintDisputed                Hint = "disputed"
	HintReviewResult            Hint = "review_result"
	HintAwaitingConfirmation    Hint = "awaiting_confirmation"
	HintUpdatePartialResult     Hint = "update_partial_result"
	HintSubmitResult            Hint = "submit_result"
	HintCancellable             Hint = "cancellable"
	HintWaitingForConfirmations Hint = "waiting_for_confirmations"
	HintWaitingForOpponent      Hint = "waiting_for_opponent"
	HintJoin                    Hint = "join"
	HintMatchFull               Hint = "match_full"
	HintTimePassed              Hint = "time_passed"
	HintNotEligible             Hint = "not_eligible"
	HintNone                    Hint = "none"
)

// Decision 액터에게 허용된 액션 집합
type Decision struct {
	Actions  ActionSet `json:"actions"`
	Hint     Hint      `json:"hint"`
	Disabled bool      `json:"disabled"`
	Rule     string    `json:"rule"`
}

func (d Decision) Allows(a Action) bool {
	return d.Actions.Has(a)
}

// permissionFacts 규칙 평가에 필요한 사실을 한 번에 계산해 둔다
type permissionFacts struct {
	status      models.MatchStatus
	disputed    bool
	roles       RoleFacts
	fill        FillState
	timeReached bool
	seated      bool
	partial     bool
	canCancel   bool
	joinable    bool
	openSlots   bool
}

type permissionRule struct {
	name   string
	when   func(f permissionFacts) bool
	decide func(f permissionFacts) Decision
}

func fixed(hint Hint, disabled bool, actions ...Action) func(permissionFacts) Decision {
	return func(permissionFacts) Decision {
		return Decision{Actions: actions, Hint: hint, Disabled: disabled}
	}
}

// permissionRules 우선순위 순서. 처음 일치하는 규칙이 결정한다.
var permissionRules = []permissionRule{
	{
		name: "pending_invitation",
		when: func(f permissionFacts) bool {
			return f.roles.HasPendingInvitation && !f.status.IsTerminal()
		},
		decide: fixed(HintRespondToInvite, false, ActionAcceptInvite),
	},
	{
		name: "continue_unfinished",
		when: func(f permissionFacts) bool {
			return f.status == models.MatchStatusUnfinished && f.roles.IsParticipant
		},
		decide: fixed(HintContinueUnfinished, false, ActionContinueUnfinished),
	},
	{
		name: "completed",
		when: func(f permissionFacts) bool {
			return f.status == models.MatchStatusCompleted
		},
		decide: fixed(HintCompleted, false, ActionViewOnly),
	},
	{
		name: "closed",
		when: func(f permissionFacts) bool {
			return f.status == models.MatchStatusCancelled ||
				f.status == models.MatchStatusVoid ||
				f.status == models.MatchStatusDraft
		},
		decide: fixed(HintClosed, true, ActionViewOnly),
	},
	{
		name: "disputed",
		when: func(f permissionFacts) bool {
			return f.status == models.MatchStatusOngoing && f.disputed
		},
		decide: fixed(HintDisputed, true, ActionViewOnly),
	},
	{
		// 캐주얼 미완료 결과는 확정 전까지 다시 제출해 덮어쓸 수 있다
		name: "partial_result_pending",
		when: func(f permissionFacts) bool {
			return f.status == models.MatchStatusOngoing && !f.disputed && f.partial && f.seated
		},
		decide: func(f permissionFacts) Decision {
			if f.roles.CanReviewResult {
				return Decision{
					Actions: ActionSet{ActionSubmitResult, ActionReviewResult, ActionConfirmResult, ActionDisputeResult},
					Hint:    HintReviewResult,
				}
			}
			return Decision{Actions: ActionSet{ActionSubmitResult}, Hint: HintUpdatePartialResult}
		},
	},
	{
		name: "review_result",
		when: func(f permissionFacts) bool {
			return f.status == models.MatchStatusOngoing && f.roles.CanReviewResult
		},
		decide: fixed(HintReviewResult, false, ActionReviewResult, ActionConfirmResult, ActionDisputeResult),
	},
	{
		name: "awaiting_confirmation",
		when: func(f permissionFacts) bool {
			return f.status == models.MatchStatusOngoing && f.roles.IsResultSubmitter
		},
		decide: fixed(HintAwaitingConfirmation, true, ActionViewOnly),
	},
	{
		name: "submit_result",
		when: func(f permissionFacts) bool {
			return f.status == models.MatchStatusScheduled &&
				f.fill.AllFilled() &&
				f.fill.AllAccepted() &&
				f.timeReached &&
				f.roles.IsParticipant
		},
		decide: fixed(HintSubmitResult, false, ActionSubmitResult, ActionRequestWalkover),
	},
	{
		name: "cancel",
		when: func(f permissionFacts) bool {
			return f.canCancel
		},
		decide: fixed(HintCancellable, false, ActionCancel),
	},
	{
		name: "waiting_for_confirmations",
		when: func(f permissionFacts) bool {
			return (f.roles.IsParticipant || f.roles.IsCreator) && f.fill.AllFilled() && !f.fill.AllAccepted()
		},
		decide: fixed(HintWaitingForConfirmations, true, ActionViewOnly),
	},
	{
		name: "waiting_for_opponent",
		when: func(f permissionFacts) bool {
			return (f.roles.IsParticipant || f.roles.IsCreator) && !f.fill.AllFilled() && !f.timeReached
		},
		decide: fixed(HintWaitingForOpponent, true, ActionViewOnly),
	},
	{
		name: "non_participant",
		when: func(f permissionFacts) bool {
			return !f.roles.IsParticipant
		},
		decide: func(f permissionFacts) Decision {
			switch {
			case f.status != models.MatchStatusScheduled:
				return Decision{Actions: ActionSet{ActionViewOnly}, Hint: HintNone, Disabled: true}
			case !f.openSlots:
				return Decision{Actions: ActionSet{ActionViewOnly}, Hint: HintMatchFull, Disabled: true}
			case f.timeReached:
				return Decision{Actions: ActionSet{ActionViewOnly}, Hint: HintTimePassed, Disabled: true}
			case !f.joinable:
				return Decision{Actions: ActionSet{ActionViewOnly}, Hint: HintNotEligible, Disabled: true}
			}
			return Decision{Actions: ActionSet{ActionJoin}, Hint: HintJoin}
		},
	},
}

// PermissionEngine 상태 + 역할 사실을 액션 집합으로 변환
type PermissionEngine struct {
	resolver *StatusResolver
	guard    *CancellationGuard
}

func NewPermissionEngine(resolver *StatusResolver, guard *CancellationGuard) *PermissionEngine {
	return &PermissionEngine{
		resolver: resolver,
		guard:    guard,
	}
}

// AvailableActions partnership은 액터의 조 (없으면 nil)
func (e *PermissionEngine) AvailableActions(
	match *models.Match,
	participants []models.Participant,
	partnership *models.Partnership,
	actorID string,
	now time.Time,
) Decision {
	f := e.facts(match, participants, partnership, actorID, now)
	for _, rule := range permissionRules {
		if rule.when(f) {
			d := rule.decide(f)
			d.Rule = rule.name
			return d
		}
	}
	return Decision{Actions: ActionSet{ActionViewOnly}, Hint: HintNone, Disabled: true, Rule: "default"}
}

func (e *PermissionEngine) facts(
	match *models.Match,
	participants []models.Participant,
	partnership *models.Partnership,
	actorID string,
	now time.Time,
) permissionFacts {
	fill := ComputeFill(match.MatchType, participants)
	actor, ok := findParticipant(participants, actorID)
	return permissionFacts{
		status:      Canonical(match.Status),
		disputed:    match.IsDisputed,
		roles:       ResolveRoles(match, participants, partnership, actorID),
		fill:        fill,
		timeReached: e.resolver.TimeReached(match, now),
		seated:      ok && actor.Seated() && actor.InvitationStatus == models.InvitationAccepted,
		partial:     match.HasResult() && match.ResultIsUnfinished,
		canCancel:   e.guard.CanCancel(match, participants, actorID, now),
		joinable:    JoinEligible(match, partnership),
		openSlots:   hasRoomToJoin(match, participants, partnership),
	}
}

// JoinEligible 단식은 항상, 복식은 친선 매치이거나 활성 조가 있어야 참가 가능
func JoinEligible(match *models.Match, partnership *models.Partnership) bool {
	if match.MatchType != models.MatchTypeDoubles {
		return true
	}
	return match.IsFriendly || (partnership != nil && partnership.IsActive)
}

// hasRoomToJoin 조 단위 참가는 한 팀에 두 자리가 비어 있어야 한다
func hasRoomToJoin(match *models.Match, participants []models.Participant, partnership *models.Partnership) bool {
	fill := ComputeFill(match.MatchType, participants)
	if fill.OpenSlots() == 0 {
		return false
	}
	if match.MatchType != models.MatchTypeDoubles || partnership == nil || !partnership.IsActive {
		return true
	}
	_, ok := teamWithRoom(match.MatchType, participants, 2)
	return ok
}

// teamWithRoom need 만큼 비어 있는 팀 (team1 우선)
func teamWithRoom(matchType models.MatchType, participants []models.Participant, need int) (models.Team, bool) {
	perTeam := matchType.RequiredSlots() / 2
	seated := map[models.Team]int{}
	for _, p := range participants {
		if p.Seated() {
			seated[p.Team]++
		}
	}
	for _, team := range []models.Team{models.Team1, models.Team2} {
		if perTeam-seated[team] >= need {
			return team, true
		}
	}
	return models.TeamUnassigned, false
}
