package service

import "errors"

// Rejection kinds. Every rule rejection unwraps to exactly one of these.
var (
	ErrNotAuthorized      = errors.New("not authorized")
	ErrInvalidState       = errors.New("invalid state")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrValidation         = errors.New("validation error")
)

// Common service errors
var (
	ErrMatchNotFound = errors.New("match not found")
	ErrMatchBusy     = errors.New("match is being updated by another request")
)

// RuleError 규칙 위반으로 인한 거절 (Code는 클라이언트에 그대로 노출)
type RuleError struct {
	Kind    error
	Code    string
	Message string
}

func (e *RuleError) Error() string {
	return e.Kind.Error() + ": " + e.Message
}

func (e *RuleError) Unwrap() error {
	return e.Kind
}

func newRuleError(kind error, code, message string) *RuleError {
	return &RuleError{Kind: kind, Code: code, Message: message}
}

// ErrorCode 에러에서 reason code 추출
func ErrorCode(err error) string {
	var re *RuleError
	if errors.As(err, &re) {
		return re.Code
	}
	switch {
	case errors.Is(err, ErrMatchNotFound):
		return "match_not_found"
	case errors.Is(err, ErrMatchBusy):
		return "match_busy"
	}
	return ""
}

// Authorization
var (
	ErrNotParticipant      = newRuleError(ErrNotAuthorized, "not_participant", "actor is not a participant of this match")
	ErrNotReviewer         = newRuleError(ErrNotAuthorized, "cannot_review", "actor cannot review this result")
	ErrCancelNotAllowed    = newRuleError(ErrNotAuthorized, "cannot_cancel", "actor cannot cancel this match")
	ErrNoPendingInvitation = newRuleError(ErrNotAuthorized, "no_pending_invitation", "actor has no pending invitation")
)

// State
var (
	ErrAlreadyProcessed = newRuleError(ErrInvalidState, "already_processed", "this request has already been processed")
	ErrMatchTerminal    = newRuleError(ErrInvalidState, "match_terminal", "match is already in a terminal state")
	ErrResultPending    = newRuleError(ErrInvalidState, "result_pending", "match already has a pending result")
	ErrResultDisputed   = newRuleError(ErrInvalidState, "result_disputed", "match result is under dispute")
	ErrNoPendingResult  = newRuleError(ErrInvalidState, "no_pending_result", "match has no result awaiting confirmation")
	ErrNotScheduled     = newRuleError(ErrInvalidState, "not_scheduled", "match is not scheduled")
	ErrStaleVersion     = newRuleError(ErrInvalidState, "stale_version", "match changed concurrently, re-fetch and retry")
	ErrAlreadyJoined    = newRuleError(ErrInvalidState, "already_joined", "actor already participates in this match")
	ErrTransitionDenied = newRuleError(ErrInvalidState, "transition_not_allowed", "transition does not exist from the current state")
)

// Preconditions
var (
	ErrSlotsNotFilled     = newRuleError(ErrPreconditionFailed, "slots_not_filled", "not all required slots are filled")
	ErrInvitationsPending = newRuleError(ErrPreconditionFailed, "invitations_pending", "not all participants have accepted")
	ErrTimeNotReached     = newRuleError(ErrPreconditionFailed, "time_not_reached", "match start time has not been reached")
	ErrMatchFull          = newRuleError(ErrPreconditionFailed, "match_full", "no open slots remain")
	ErrPartnershipMissing = newRuleError(ErrPreconditionFailed, "partnership_required", "doubles requires an active partnership")
	ErrApprovalNotDue     = newRuleError(ErrPreconditionFailed, "approval_not_due", "auto-approval window has not elapsed")
	ErrSeatsRequired      = newRuleError(ErrPreconditionFailed, "seats_required", "both sides must be seated for a walkover")
	ErrJoinClosed         = newRuleError(ErrPreconditionFailed, "time_passed", "match start time has passed")
)

// Validation
var (
	ErrMissingScore          = newRuleError(ErrValidation, "missing_score", "both team scores are required")
	ErrNegativeScore         = newRuleError(ErrValidation, "negative_score", "scores must not be negative")
	ErrUnknownWalkoverReason = newRuleError(ErrValidation, "unknown_walkover_reason", "walkover reason is not recognised")
	ErrUnknownDecision       = newRuleError(ErrValidation, "unknown_decision", "review decision must be confirm or dispute")
	ErrMissingReason         = newRuleError(ErrValidation, "missing_reason", "a reason is required")
	ErrInvalidMatchType      = newRuleError(ErrValidation, "invalid_match_type", "match type must be SINGLES or DOUBLES")
	ErrInvalidDefaulter      = newRuleError(ErrValidation, "invalid_defaulting_player", "defaulting player is not seated in this match")
	ErrInvalidPartner        = newRuleError(ErrValidation, "invalid_partner", "partner does not match the actor's partnership")
	ErrMissingMatchDate      = newRuleError(ErrValidation, "missing_match_date", "match date is required")
)
