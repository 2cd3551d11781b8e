package models

import "time"

type MatchEventType string

const (
	EventMatchUpdated           MatchEventType = "match_updated"
	EventMatchParticipantJoined MatchEventType = "match_participant_joined"
)

// MatchEvent 클라이언트 재조회를 유도하는 무효화 힌트 (트랜지션 근거로 쓰지 않음)
type MatchEvent struct {
	Type         MatchEventType `json:"type"`
	MatchID      string         `json:"matchId"`
	Status       MatchStatus    `json:"status"`
	ActorID      string         `json:"actorId,omitempty"`
	RecipientIDs []string       `json:"recipientIds,omitempty"`
	Version      int            `json:"version"`
	OccurredAt   time.Time      `json:"occurredAt"`
}
