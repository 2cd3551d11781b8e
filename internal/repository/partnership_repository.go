package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rallyhub/rallyhub-backend/internal/models"
	"github.com/rallyhub/rallyhub-backend/pkg/database"
)

type PartnershipRepository struct {
	db *database.DB
}

func NewPartnershipRepository(db *database.DB) *PartnershipRepository {
	return &PartnershipRepository{db: db}
}

// FindActivePartnership 시즌 내 유저의 활성 조 (없으면 nil, nil)
func (r *PartnershipRepository) FindActivePartnership(ctx context.Context, seasonID, userID string) (*models.Partnership, error) {
	query := `
		SELECT id, season_id, captain_id, partner_id, is_active, created_at
		FROM partnerships
		WHERE season_id = $1
		  AND is_active = TRUE
		  AND (captain_id = $2 OR partner_id = $2)
		LIMIT 1
	`

	p := &models.Partnership{}
	err := r.db.QueryRowContext(ctx, query, seasonID, userID).Scan(
		&p.ID,
		&p.SeasonID,
		&p.CaptainID,
		&p.PartnerID,
		&p.IsActive,
		&p.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to find partnership: %w", err)
	}

	return p, nil
}
