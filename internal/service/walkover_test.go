package service

import (
	"testing"
	"time"

	"github.com/rallyhub/rallyhub-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalkoverHandler_Record(t *testing.T) {
	h := NewWalkoverHandler()
	now := matchStart.Add(30 * time.Minute)

	next, err := h.Record(TransitionContext{
		Match:        singlesMatch(),
		Participants: fullSingles(),
		ActorID:      "alice",
		Now:          now,
	}, "bob", models.WalkoverNoShow, strPtr("did not arrive"))
	require.NoError(t, err)

	assert.Equal(t, models.MatchStatusCompleted, next.Status)
	assert.True(t, next.IsWalkover)
	assert.Equal(t, models.WalkoverNoShow, *next.WalkoverReason)
	assert.Equal(t, models.Team1, *next.WinningTeam)
	require.NotNil(t, next.Walkover)
	assert.Equal(t, "bob", next.Walkover.DefaultingPlayerID)
	assert.Equal(t, "alice", next.Walkover.WinningPlayerID)
	assert.Equal(t, "did not arrive", *next.Walkover.ReasonDetail)
}

func TestWalkoverHandler_ClearsDispute(t *testing.T) {
	h := NewWalkoverHandler()
	m := withResult(singlesMatch(), "alice", 6, 4, matchStart.Add(time.Hour))
	m.IsDisputed = true
	m.DisputedByID = strPtr("bob")

	next, err := h.Record(TransitionContext{Match: m, Participants: fullSingles(), ActorID: "alice", Now: matchStart.Add(3 * time.Hour)},
		"bob", models.WalkoverPersonalEmergency, nil)
	require.NoError(t, err)

	assert.Equal(t, models.MatchStatusCompleted, next.Status)
	assert.False(t, next.IsDisputed)
	assert.Nil(t, next.DisputedByID)
}

func TestWalkoverHandler_DoublesWinnerIsDirectEntrant(t *testing.T) {
	h := NewWalkoverHandler()

	next, err := h.Record(TransitionContext{Match: doublesMatch(), Participants: fullDoubles(), ActorID: "bob", Now: matchStart},
		"amy", models.WalkoverInjury, nil)
	require.NoError(t, err)

	assert.Equal(t, models.Team2, *next.WinningTeam)
	assert.Equal(t, "bob", next.Walkover.WinningPlayerID)
}

func TestWalkoverHandler_Rejections(t *testing.T) {
	h := NewWalkoverHandler()
	now := matchStart.Add(time.Hour)
	completed := singlesMatch()
	completed.Status = models.MatchStatusCompleted

	tests := []struct {
		name         string
		match        *models.Match
		participants []models.Participant
		actor        string
		defaulter    string
		reason       models.WalkoverReason
		expected     error
	}{
		{name: "unknown reason", match: singlesMatch(), participants: fullSingles(), actor: "alice", defaulter: "bob", reason: "BORED", expected: ErrUnknownWalkoverReason},
		{name: "terminal match", match: completed, participants: fullSingles(), actor: "alice", defaulter: "bob", reason: models.WalkoverNoShow, expected: ErrMatchTerminal},
		{name: "stranger", match: singlesMatch(), participants: fullSingles(), actor: "carol", defaulter: "bob", reason: models.WalkoverNoShow, expected: ErrNotParticipant},
		{name: "empty opposing side", match: singlesMatch(), participants: fullSingles()[:1], actor: "alice", defaulter: "bob", reason: models.WalkoverNoShow, expected: ErrSeatsRequired},
		{name: "defaulter not seated", match: singlesMatch(), participants: fullSingles(), actor: "alice", defaulter: "carol", reason: models.WalkoverNoShow, expected: ErrInvalidDefaulter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Record(TransitionContext{Match: tt.match, Participants: tt.participants, ActorID: tt.actor, Now: now},
				tt.defaulter, tt.reason, nil)
			assert.ErrorIs(t, err, tt.expected)
		})
	}
}
