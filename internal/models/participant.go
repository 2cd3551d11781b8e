package models

import "time"

type Team string

const (
	Team1          Team = "team1"
	Team2          Team = "team2"
	TeamUnassigned Team = "unassigned"
)

// Opponent 반대편 팀
func (t Team) Opponent() Team {
	switch t {
	case Team1:
		return Team2
	case Team2:
		return Team1
	}
	return TeamUnassigned
}

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "PENDING"
	InvitationAccepted InvitationStatus = "ACCEPTED"
	InvitationDeclined InvitationStatus = "DECLINED"
)

type ParticipantRole string

const (
	ParticipantRoleCreator ParticipantRole = "CREATOR"
	ParticipantRolePlayer  ParticipantRole = "PLAYER"
	ParticipantRolePartner ParticipantRole = "PARTNER"
)

type Participant struct {
	MatchID          string           `json:"matchId" db:"match_id"`
	UserID           string           `json:"userId" db:"user_id"`
	Team             Team             `json:"team" db:"team"`
	InvitationStatus InvitationStatus `json:"invitationStatus" db:"invitation_status"`
	Role             ParticipantRole  `json:"role" db:"role"`
	JoinedAt         time.Time        `json:"joinedAt" db:"joined_at"`

	// ParticipantDirectory에서 채워지는 표시용 정보
	Profile *PlayerProfile `json:"profile,omitempty" db:"-"`
}

// Seated 슬롯을 차지하고 있는 참가자인지 (팀 배정 + 거절하지 않음)
func (p Participant) Seated() bool {
	return p.Team != TeamUnassigned && p.Team != "" && p.InvitationStatus != InvitationDeclined
}

// Partnership 복식 2인 조 (시즌 단위)
type Partnership struct {
	ID        string    `json:"id" db:"id"`
	SeasonID  string    `json:"seasonId" db:"season_id"`
	CaptainID string    `json:"captainId" db:"captain_id"`
	PartnerID string    `json:"partnerId" db:"partner_id"`
	IsActive  bool      `json:"isActive" db:"is_active"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// Includes 해당 유저가 이 조에 속하는지
func (p *Partnership) Includes(userID string) bool {
	if p == nil || userID == "" {
		return false
	}
	return p.CaptainID == userID || p.PartnerID == userID
}

// Teammate 조 안의 다른 한 명
func (p *Partnership) Teammate(userID string) string {
	if p == nil {
		return ""
	}
	switch userID {
	case p.CaptainID:
		return p.PartnerID
	case p.PartnerID:
		return p.CaptainID
	}
	return ""
}

// PlayerProfile 참가자 표시 정보 (외부 유저 서비스 소유)
type PlayerProfile struct {
	UserID      string  `json:"userId" db:"id"`
	DisplayName string  `json:"displayName" db:"full_name"`
	ImageURL    *string `json:"imageUrl,omitempty" db:"avatar_url"`
}
