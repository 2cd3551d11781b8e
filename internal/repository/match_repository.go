package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rallyhub/rallyhub-backend/internal/models"
	"github.com/rallyhub/rallyhub-backend/pkg/database"
)

// ErrVersionConflict 읽은 이후 다른 요청이 매치를 먼저 변경함
var ErrVersionConflict = errors.New("match version conflict")

type MatchRepository struct {
	db *database.DB
}

func NewMatchRepository(db *database.DB) *MatchRepository {
	return &MatchRepository{db: db}
}

const matchColumns = `
	id, match_type, created_by_id, season_id, status, is_friendly,
	gender_restriction, skill_levels, match_date,
	legacy_date, legacy_time, legacy_duration,
	team1_score, team2_score, result_submitted_by_id, result_submitted_at,
	result_is_unfinished, is_casual_play, is_disputed, disputed_by_id,
	confirmed_by_id, auto_approved, winning_team,
	is_walkover, walkover_reason, walkover,
	cancelled_by_id, cancellation_reason, cancellation_comment,
	completed_at, version, created_at, updated_at
`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMatch(row rowScanner) (*models.Match, error) {
	m := &models.Match{}
	err := row.Scan(
		&m.ID,
		&m.MatchType,
		&m.CreatedByID,
		&m.SeasonID,
		&m.Status,
		&m.IsFriendly,
		&m.GenderRestriction,
		pq.Array(&m.SkillLevels),
		&m.MatchDate,
		&m.Date,
		&m.Time,
		&m.Duration,
		&m.Team1Score,
		&m.Team2Score,
		&m.ResultSubmittedByID,
		&m.ResultSubmittedAt,
		&m.ResultIsUnfinished,
		&m.IsCasualPlay,
		&m.IsDisputed,
		&m.DisputedByID,
		&m.ConfirmedByID,
		&m.AutoApproved,
		&m.WinningTeam,
		&m.IsWalkover,
		&m.WalkoverReason,
		&m.Walkover,
		&m.CancelledByID,
		&m.CancellationReason,
		&m.CancellationComment,
		&m.CompletedAt,
		&m.Version,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// CreateMatch 매치와 초기 참가자를 한 트랜잭션으로 생성
func (r *MatchRepository) CreateMatch(ctx context.Context, match *models.Match, participants []models.Participant) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO matches (
				id, match_type, created_by_id, season_id, status, is_friendly,
				gender_restriction, skill_levels, match_date,
				legacy_date, legacy_time, legacy_duration,
				version, created_at, updated_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		`
		_, err := tx.ExecContext(ctx, query,
			match.ID,
			match.MatchType,
			match.CreatedByID,
			match.SeasonID,
			match.Status,
			match.IsFriendly,
			match.GenderRestriction,
			pq.Array(match.SkillLevels),
			match.MatchDate,
			match.Date,
			match.Time,
			match.Duration,
			match.Version,
			match.CreatedAt,
			match.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert match: %w", err)
		}

		return upsertParticipants(ctx, tx, participants)
	})
}

// GetMatch ID로 매치 조회 (없으면 nil, nil)
func (r *MatchRepository) GetMatch(ctx context.Context, id string) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`

	match, err := scanMatch(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find match: %w", err)
	}
	return match, nil
}

// UpdateMatch 버전이 일치할 때만 갱신하고 성공하면 match.Version을 올린다
func (r *MatchRepository) UpdateMatch(ctx context.Context, match *models.Match) error {
	query := `
		UPDATE matches
		SET status = $3,
		    team1_score = $4,
		    team2_score = $5,
		    result_submitted_by_id = $6,
		    result_submitted_at = $7,
		    result_is_unfinished = $8,
		    is_casual_play = $9,
		    is_disputed = $10,
		    disputed_by_id = $11,
		    confirmed_by_id = $12,
		    auto_approved = $13,
		    winning_team = $14,
		    is_walkover = $15,
		    walkover_reason = $16,
		    walkover = $17,
		    cancelled_by_id = $18,
		    cancellation_reason = $19,
		    cancellation_comment = $20,
		    completed_at = $21,
		    updated_at = $22,
		    version = version + 1
		WHERE id = $1 AND version = $2
	`

	res, err := r.db.ExecContext(ctx, query,
		match.ID,
		match.Version,
		match.Status,
		match.Team1Score,
		match.Team2Score,
		match.ResultSubmittedByID,
		match.ResultSubmittedAt,
		match.ResultIsUnfinished,
		match.IsCasualPlay,
		match.IsDisputed,
		match.DisputedByID,
		match.ConfirmedByID,
		match.AutoApproved,
		match.WinningTeam,
		match.IsWalkover,
		match.WalkoverReason,
		match.Walkover,
		match.CancelledByID,
		match.CancellationReason,
		match.CancellationComment,
		match.CompletedAt,
		match.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update match: %w", err)
	}

	if err := expectOneRow(res); err != nil {
		return err
	}
	match.Version++
	return nil
}

// SaveParticipants 참가자 변경과 매치 버전 증가를 한 트랜잭션으로 처리
func (r *MatchRepository) SaveParticipants(ctx context.Context, match *models.Match, participants []models.Participant) error {
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE matches
			SET version = version + 1, updated_at = $3
			WHERE id = $1 AND version = $2
		`, match.ID, match.Version, match.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to bump match version: %w", err)
		}
		if err := expectOneRow(res); err != nil {
			return err
		}

		return upsertParticipants(ctx, tx, participants)
	})
	if err != nil {
		return err
	}

	match.Version++
	return nil
}

// ListParticipants 매치 참가자 목록 (참가 순)
func (r *MatchRepository) ListParticipants(ctx context.Context, matchID string) ([]models.Participant, error) {
	query := `
		SELECT match_id, user_id, team, invitation_status, role, joined_at
		FROM match_participants
		WHERE match_id = $1
		ORDER BY joined_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query participants: %w", err)
	}
	defer rows.Close()

	participants := []models.Participant{}
	for rows.Next() {
		var p models.Participant
		if err := rows.Scan(&p.MatchID, &p.UserID, &p.Team, &p.InvitationStatus, &p.Role, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, p)
	}

	return participants, rows.Err()
}

// ListDueForAutoApproval 분쟁 없이 결과 대기 중이고 submittedBefore 이전에 제출된 매치
func (r *MatchRepository) ListDueForAutoApproval(ctx context.Context, submittedBefore time.Time, limit int) ([]string, error) {
	query := `
		SELECT id
		FROM matches
		WHERE status = $1
		  AND is_disputed = FALSE
		  AND result_submitted_at IS NOT NULL
		  AND result_submitted_at <= $2
		ORDER BY result_submitted_at ASC
		LIMIT $3
	`

	rows, err := r.db.QueryContext(ctx, query, models.MatchStatusOngoing, submittedBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query due matches: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan match id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func upsertParticipants(ctx context.Context, q database.Queryer, participants []models.Participant) error {
	query := `
		INSERT INTO match_participants (match_id, user_id, team, invitation_status, role, joined_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (match_id, user_id) DO UPDATE
		SET team = EXCLUDED.team,
		    invitation_status = EXCLUDED.invitation_status,
		    role = EXCLUDED.role
	`

	for _, p := range participants {
		if _, err := q.ExecContext(ctx, query, p.MatchID, p.UserID, p.Team, p.InvitationStatus, p.Role, p.JoinedAt); err != nil {
			return fmt.Errorf("failed to save participant %s: %w", p.UserID, err)
		}
	}
	return nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrVersionConflict
	}
	return nil
}
