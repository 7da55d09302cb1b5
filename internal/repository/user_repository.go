package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gocrm-io/gocrm-ce/internal/models"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id, username, email, full_name, role, default_team_id, is_active, created_at
		FROM users
		WHERE id = $1`

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.FullName,
		&user.Role,
		&user.DefaultTeamID,
		&user.IsActive,
		&user.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// GetTeamUserIDs lists the member ids of a team, for group account ownership.
func (r *UserRepository) GetTeamUserIDs(ctx context.Context, teamID string) ([]string, error) {
	query := `SELECT user_id FROM team_users WHERE team_id = $1 ORDER BY user_id`

	rows, err := r.db.QueryContext(ctx, query, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to query team users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan team user: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}
