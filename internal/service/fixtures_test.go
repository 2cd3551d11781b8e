package service

import (
	"time"

	"github.com/rallyhub/rallyhub-backend/internal/models"
)

var matchStart = time.Date(2024, 6, 1, 18, 0, 0, 0, time.UTC)

func newResolver() *StatusResolver {
	return NewStatusResolver(time.UTC, DefaultMatchDuration)
}

func singlesMatch() *models.Match {
	return &models.Match{
		ID:          "m1",
		MatchType:   models.MatchTypeSingles,
		CreatedByID: "alice",
		Status:      models.MatchStatusScheduled,
		MatchDate:   timePtr(matchStart),
		CreatedAt:   matchStart.Add(-72 * time.Hour),
	}
}

func doublesMatch() *models.Match {
	m := singlesMatch()
	m.MatchType = models.MatchTypeDoubles
	m.SeasonID = strPtr("s1")
	return m
}

func participant(userID string, team models.Team, status models.InvitationStatus, role models.ParticipantRole) models.Participant {
	return models.Participant{
		MatchID:          "m1",
		UserID:           userID,
		Team:             team,
		InvitationStatus: status,
		Role:             role,
		JoinedAt:         matchStart.Add(-48 * time.Hour),
	}
}

func fullSingles() []models.Participant {
	return []models.Participant{
		participant("alice", models.Team1, models.InvitationAccepted, models.ParticipantRoleCreator),
		participant("bob", models.Team2, models.InvitationAccepted, models.ParticipantRolePlayer),
	}
}

// alice/amy 조 vs bob/ben 조
func fullDoubles() []models.Participant {
	return []models.Participant{
		participant("alice", models.Team1, models.InvitationAccepted, models.ParticipantRoleCreator),
		participant("amy", models.Team1, models.InvitationAccepted, models.ParticipantRolePartner),
		participant("bob", models.Team2, models.InvitationAccepted, models.ParticipantRolePlayer),
		participant("ben", models.Team2, models.InvitationAccepted, models.ParticipantRolePartner),
	}
}

func partnershipAliceAmy() *models.Partnership {
	return &models.Partnership{ID: "pa", SeasonID: "s1", CaptainID: "alice", PartnerID: "amy", IsActive: true}
}

func partnershipBobBen() *models.Partnership {
	return &models.Partnership{ID: "pb", SeasonID: "s1", CaptainID: "bob", PartnerID: "ben", IsActive: true}
}

// withResult 제출된 결과가 확인을 기다리는 상태
func withResult(m *models.Match, submitter string, team1, team2 int, at time.Time) *models.Match {
	m.Status = models.MatchStatusOngoing
	m.Team1Score = intPtr(team1)
	m.Team2Score = intPtr(team2)
	m.ResultSubmittedByID = strPtr(submitter)
	m.ResultSubmittedAt = timePtr(at)
	return m
}
