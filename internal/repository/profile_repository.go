package repository

import (
	"context"
	"fmt"

	"github.com/lib/pq"
	"github.com/rallyhub/rallyhub-backend/internal/models"
	"github.com/rallyhub/rallyhub-backend/pkg/database"
)

// ProfileRepository 유저 서비스가 소유한 users 테이블 읽기 전용 조회
type ProfileRepository struct {
	db *database.DB
}

func NewProfileRepository(db *database.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// LookupProfiles userID → 표시 정보
func (r *ProfileRepository) LookupProfiles(ctx context.Context, userIDs []string) (map[string]models.PlayerProfile, error) {
	profiles := make(map[string]models.PlayerProfile, len(userIDs))
	if len(userIDs) == 0 {
		return profiles, nil
	}

	query := `
		SELECT id, full_name, avatar_url
		FROM users
		WHERE id = ANY($1)
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(userIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p models.PlayerProfile
		if err := rows.Scan(&p.UserID, &p.DisplayName, &p.ImageURL); err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles[p.UserID] = p
	}

	return profiles, rows.Err()
}
