package service

import (
	"github.com/rallyhub/rallyhub-backend/internal/models"
)

// WalkoverHandler 기권 처리. 확인 단계 없이 바로 완료 상태로 간다 (분쟁 창 없음).
type WalkoverHandler struct{}

func NewWalkoverHandler() *WalkoverHandler {
	return &WalkoverHandler{}
}

// Record defaultingUserID 측이 기권, 반대편이 승리
func (h *WalkoverHandler) Record(
	tc TransitionContext,
	defaultingUserID string,
	reason models.WalkoverReason,
	reasonDetail *string,
) (*models.Match, error) {
	if !reason.Valid() {
		return nil, ErrUnknownWalkoverReason
	}

	m := tc.Match
	if err := checkTransition(StateOf(m), EventWalkover); err != nil {
		return nil, err
	}

	actor, ok := findParticipant(tc.Participants, tc.ActorID)
	if !ok || !actor.Seated() || actor.InvitationStatus != models.InvitationAccepted {
		return nil, ErrNotParticipant
	}
	if !ComputeFill(m.MatchType, tc.Participants).AllFilled() {
		return nil, ErrSeatsRequired
	}

	defaulter, ok := findParticipant(tc.Participants, defaultingUserID)
	if !ok || !defaulter.Seated() {
		return nil, ErrInvalidDefaulter
	}
	winningSide := defaulter.Team.Opponent()
	winner, ok := sideRepresentative(tc.Participants, winningSide)
	if !ok {
		return nil, ErrSeatsRequired
	}

	next := complete(m, tc.Now)
	next.WinningTeam = &winningSide
	next.IsWalkover = true
	next.WalkoverReason = &reason
	next.Walkover = &models.Walkover{
		DefaultingPlayerID: defaultingUserID,
		WinningPlayerID:    winner,
		ReasonDetail:       reasonDetail,
	}
	next.DisputedByID = nil
	return next, nil
}

// sideRepresentative 팀 대표 (조 파트너보다 직접 참가한 선수 우선)
func sideRepresentative(participants []models.Participant, team models.Team) (string, bool) {
	fallback := ""
	for _, p := range participants {
		if !p.Seated() || p.Team != team {
			continue
		}
		if p.Role != models.ParticipantRolePartner {
			return p.UserID, true
		}
		if fallback == "" {
			fallback = p.UserID
		}
	}
	return fallback, fallback != ""
}
