package service

import (
	"context"
	"time"

	"github.com/rallyhub/rallyhub-backend/internal/models"
)

// Clock 시간 소스
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock 실제 시계
var SystemClock Clock = systemClock{}

// MatchStore 매치, 참가자 레코드의 권위 있는 저장소.
// UpdateMatch/SaveParticipants는 match.Version이 저장된 값과 같을 때만 쓰고,
// 성공하면 match.Version을 증가시킨다. 다르면 repository.ErrVersionConflict.
type MatchStore interface {
	CreateMatch(ctx context.Context, match *models.Match, participants []models.Participant) error
	GetMatch(ctx context.Context, id string) (*models.Match, error)
	ListParticipants(ctx context.Context, matchID string) ([]models.Participant, error)
	UpdateMatch(ctx context.Context, match *models.Match) error
	SaveParticipants(ctx context.Context, match *models.Match, participants []models.Participant) error
	ListDueForAutoApproval(ctx context.Context, submittedBefore time.Time, limit int) ([]string, error)
}

// PartnershipLookup 시즌별 복식 조 조회 (없으면 nil, nil)
type PartnershipLookup interface {
	FindActivePartnership(ctx context.Context, seasonID, userID string) (*models.Partnership, error)
}

// ParticipantDirectory userID → 표시 이름/이미지
type ParticipantDirectory interface {
	LookupProfiles(ctx context.Context, userIDs []string) (map[string]models.PlayerProfile, error)
}

// EventPublisher 클라이언트 재조회 힌트 발행
type EventPublisher interface {
	PublishMatchEvent(ctx context.Context, event models.MatchEvent) error
}

// MatchLocker 매치 단위 상호 배제. 경합 시 ErrMatchBusy.
type MatchLocker interface {
	Lock(ctx context.Context, matchID string) (release func(), err error)
}

// IdempotencyGuard 멱등 키 선점. 이미 선점된 키면 false.
type IdempotencyGuard interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// ApprovalScheduler 자동 확정 예정 시각 등록
type ApprovalScheduler interface {
	Schedule(ctx context.Context, matchID string, dueAt time.Time) error
}

type noopPublisher struct{}

func (noopPublisher) PublishMatchEvent(context.Context, models.MatchEvent) error { return nil }
