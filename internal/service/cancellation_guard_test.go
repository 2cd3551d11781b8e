package service

import (
	"testing"
	"time"

	"github.com/rallyhub/rallyhub-backend/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestCancellationGuard_Check(t *testing.T) {
	guard := NewCancellationGuard(newResolver())
	before := matchStart.Add(-time.Hour)
	after := matchStart.Add(time.Hour)
	creatorOnly := []models.Participant{fullSingles()[0]}

	tests := []struct {
		name         string
		status       models.MatchStatus
		participants []models.Participant
		actor        string
		now          time.Time
		expected     error
	}{
		{name: "participant before start", status: models.MatchStatusScheduled, participants: fullSingles(), actor: "bob", now: before},
		{name: "creator before start", status: models.MatchStatusScheduled, participants: fullSingles(), actor: "alice", now: before},
		{name: "stranger before start", status: models.MatchStatusScheduled, participants: fullSingles(), actor: "carol", now: before, expected: ErrCancelNotAllowed},
		{name: "orphaned match after start by creator", status: models.MatchStatusScheduled, participants: creatorOnly, actor: "alice", now: after},
		{name: "orphaned match after start by stranger", status: models.MatchStatusScheduled, participants: creatorOnly, actor: "carol", now: after, expected: ErrCancelNotAllowed},
		{name: "filled match after start", status: models.MatchStatusScheduled, participants: fullSingles(), actor: "alice", now: after, expected: ErrCancelNotAllowed},
		{name: "ongoing match", status: models.MatchStatusOngoing, participants: fullSingles(), actor: "alice", now: before, expected: ErrNotScheduled},
		{name: "cancelled match", status: models.MatchStatusCancelled, participants: fullSingles(), actor: "alice", now: before, expected: ErrNotScheduled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := singlesMatch()
			m.Status = tt.status

			err := guard.Check(m, tt.participants, tt.actor, tt.now)
			if tt.expected == nil {
				assert.NoError(t, err)
				assert.True(t, guard.CanCancel(m, tt.participants, tt.actor, tt.now))
			} else {
				assert.ErrorIs(t, err, tt.expected)
				assert.False(t, guard.CanCancel(m, tt.participants, tt.actor, tt.now))
			}
		})
	}
}

func TestCancellationGuard_DeclinedParticipantCannotCancel(t *testing.T) {
	guard := NewCancellationGuard(newResolver())
	ps := fullSingles()
	ps[1].InvitationStatus = models.InvitationDeclined

	err := guard.Check(singlesMatch(), ps, "bob", matchStart.Add(-time.Hour))
	assert.ErrorIs(t, err, ErrNotAuthorized)
}
