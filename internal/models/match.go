package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type MatchType string

const (
	MatchTypeSingles MatchType = "SINGLES"
	MatchTypeDoubles MatchType = "DOUBLES"
)

// RequiredSlots 매치 유형별 필요 인원
func (t MatchType) RequiredSlots() int {
	if t == MatchTypeDoubles {
		return 4
	}
	return 2
}

func (t MatchType) Valid() bool {
	return t == MatchTypeSingles || t == MatchTypeDoubles
}

type MatchStatus string

const (
	MatchStatusScheduled  MatchStatus = "SCHEDULED"
	MatchStatusOngoing    MatchStatus = "ONGOING"
	MatchStatusUnfinished MatchStatus = "UNFINISHED"
	MatchStatusCompleted  MatchStatus = "COMPLETED"
	MatchStatusFinished   MatchStatus = "FINISHED" // 구버전 레코드용 COMPLETED 동의어
	MatchStatusCancelled  MatchStatus = "CANCELLED"
	MatchStatusDraft      MatchStatus = "DRAFT"
	MatchStatusVoid       MatchStatus = "VOID"
)

// IsTerminal 종료 상태 여부 (FINISHED 포함)
func (s MatchStatus) IsTerminal() bool {
	switch s {
	case MatchStatusCompleted, MatchStatusFinished, MatchStatusCancelled, MatchStatusVoid:
		return true
	}
	return false
}

type WalkoverReason string

const (
	WalkoverNoShow            WalkoverReason = "NO_SHOW"
	WalkoverLateCancellation  WalkoverReason = "LATE_CANCELLATION"
	WalkoverInjury            WalkoverReason = "INJURY"
	WalkoverPersonalEmergency WalkoverReason = "PERSONAL_EMERGENCY"
	WalkoverOther             WalkoverReason = "OTHER"
)

func (r WalkoverReason) Valid() bool {
	switch r {
	case WalkoverNoShow, WalkoverLateCancellation, WalkoverInjury, WalkoverPersonalEmergency, WalkoverOther:
		return true
	}
	return false
}

type Walkover struct {
	DefaultingPlayerID string  `json:"defaultingPlayerId"`
	WinningPlayerID    string  `json:"winningPlayerId"`
	ReasonDetail       *string `json:"reasonDetail,omitempty"`
}

// Value JSONB 컬럼으로 저장
func (w Walkover) Value() (driver.Value, error) {
	return json.Marshal(w)
}

func (w *Walkover) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, w)
	case string:
		return json.Unmarshal([]byte(v), w)
	}
	return fmt.Errorf("cannot scan %T into Walkover", src)
}

type Match struct {
	ID                string      `json:"id" db:"id"`
	MatchType         MatchType   `json:"matchType" db:"match_type"`
	CreatedByID       string      `json:"createdById" db:"created_by_id"`
	SeasonID          *string     `json:"seasonId,omitempty" db:"season_id"`
	Status            MatchStatus `json:"status" db:"status"`
	IsFriendly        bool        `json:"isFriendly" db:"is_friendly"`
	GenderRestriction *string     `json:"genderRestriction,omitempty" db:"gender_restriction"`
	SkillLevels       []string    `json:"skillLevels,omitempty" db:"skill_levels"`

	MatchDate *time.Time `json:"matchDate,omitempty" db:"match_date"`
	// 구버전 클라이언트가 남긴 날짜/시간 문자열 (MatchDate가 없을 때만 사용)
	Date     *string `json:"date,omitempty" db:"legacy_date"`
	Time     *string `json:"time,omitempty" db:"legacy_time"`
	Duration *string `json:"duration,omitempty" db:"legacy_duration"`

	Team1Score          *int       `json:"team1Score,omitempty" db:"team1_score"`
	Team2Score          *int       `json:"team2Score,omitempty" db:"team2_score"`
	ResultSubmittedByID *string    `json:"resultSubmittedById,omitempty" db:"result_submitted_by_id"`
	ResultSubmittedAt   *time.Time `json:"resultSubmittedAt,omitempty" db:"result_submitted_at"`
	ResultIsUnfinished  bool       `json:"resultIsUnfinished" db:"result_is_unfinished"`
	IsCasualPlay        bool       `json:"isCasualPlay" db:"is_casual_play"`
	IsDisputed          bool       `json:"isDisputed" db:"is_disputed"`
	DisputedByID        *string    `json:"disputedById,omitempty" db:"disputed_by_id"`
	ConfirmedByID       *string    `json:"confirmedById,omitempty" db:"confirmed_by_id"`
	AutoApproved        bool       `json:"autoApproved" db:"auto_approved"`
	WinningTeam         *Team      `json:"winningTeam,omitempty" db:"winning_team"`

	IsWalkover     bool            `json:"isWalkover" db:"is_walkover"`
	WalkoverReason *WalkoverReason `json:"walkoverReason,omitempty" db:"walkover_reason"`
	Walkover       *Walkover       `json:"walkover,omitempty" db:"walkover"`

	CancelledByID       *string `json:"cancelledById,omitempty" db:"cancelled_by_id"`
	CancellationReason  *string `json:"cancellationReason,omitempty" db:"cancellation_reason"`
	CancellationComment *string `json:"cancellationComment,omitempty" db:"cancellation_comment"`

	CompletedAt *time.Time `json:"completedAt,omitempty" db:"completed_at"`
	Version     int        `json:"version" db:"version"`
	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time  `json:"updatedAt" db:"updated_at"`
}

// HasResult 제출된 결과가 있는지
func (m *Match) HasResult() bool {
	return m.ResultSubmittedByID != nil && m.ResultSubmittedAt != nil
}

// Clone 트랜지션 후보용 깊은 복사
func (m *Match) Clone() *Match {
	c := *m
	c.SkillLevels = append([]string(nil), m.SkillLevels...)
	if m.Walkover != nil {
		w := *m.Walkover
		c.Walkover = &w
	}
	return &c
}

type CreateMatchRequest struct {
	MatchType         MatchType `json:"matchType" binding:"required"`
	MatchDate         time.Time `json:"matchDate" binding:"required"`
	SeasonID          *string   `json:"seasonId"`
	IsFriendly        bool      `json:"isFriendly"`
	GenderRestriction *string   `json:"genderRestriction"`
	SkillLevels       []string  `json:"skillLevels"`
}

type JoinMatchRequest struct {
	PartnerID *string `json:"partnerId"`
}

type SubmitResultRequest struct {
	Team1Score   *int `json:"team1Score"`
	Team2Score   *int `json:"team2Score"`
	IsUnfinished bool `json:"isUnfinished"`
	IsCasualPlay bool `json:"isCasualPlay"`
}

type ReviewDecision string

const (
	ReviewConfirm ReviewDecision = "confirm"
	ReviewDispute ReviewDecision = "dispute"
)

type ReviewResultRequest struct {
	Decision ReviewDecision `json:"decision" binding:"required"`
}

type WalkoverRequest struct {
	DefaultingUserID string         `json:"defaultingUserId" binding:"required"`
	Reason           WalkoverReason `json:"reason" binding:"required"`
	ReasonDetail     *string        `json:"reasonDetail"`
}

type CancelMatchRequest struct {
	Reason  string  `json:"reason" binding:"required"`
	Comment *string `json:"comment"`
}

type VoidMatchRequest struct {
	Reason string `json:"reason" binding:"required"`
}
