package service

import (
	"time"

	"github.com/rallyhub/rallyhub-backend/internal/models"
)

// CancellationGuard 매치 취소 가능 여부 판단
type CancellationGuard struct {
	resolver *StatusResolver
}

func NewCancellationGuard(resolver *StatusResolver) *CancellationGuard {
	return &CancellationGuard{resolver: resolver}
}

func (g *CancellationGuard) CanCancel(match *models.Match, participants []models.Participant, actorID string, now time.Time) bool {
	return g.Check(match, participants, actorID, now) == nil
}

// Check 취소 불가 사유 반환 (nil이면 취소 가능)
func (g *CancellationGuard) Check(match *models.Match, participants []models.Participant, actorID string, now time.Time) error {
	if Canonical(match.Status) != models.MatchStatusScheduled {
		return ErrNotScheduled
	}

	fill := ComputeFill(match.MatchType, participants)
	started := g.resolver.TimeReached(match, now)
	isCreator := actorID != "" && actorID == match.CreatedByID

	// 상대 없이 시작 시각이 지난 매치는 생성자가 정리할 수 있어야 한다
	if started && !fill.AllFilled() && isCreator {
		return nil
	}
	// 이미 시작된 매치는 결과/기권 흐름으로만 종료
	if started && fill.AllFilled() {
		return ErrCancelNotAllowed
	}

	p, ok := findParticipant(participants, actorID)
	isParticipant := ok && p.InvitationStatus != models.InvitationDeclined
	if isParticipant || isCreator {
		return nil
	}
	return ErrCancelNotAllowed
}
