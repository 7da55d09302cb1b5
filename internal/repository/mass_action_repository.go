package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gocrm-io/gocrm-ce/internal/models"
)

type MassActionRepository struct {
	db *sql.DB
}

func NewMassActionRepository(db *sql.DB) *MassActionRepository {
	return &MassActionRepository{db: db}
}

// Create persists a new record in Queued state with a zero processed count.
func (r *MassActionRepository) Create(ctx context.Context, record *models.MassActionRecord) (string, error) {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	record.Status = models.MassActionStatusQueued
	record.ProcessedCount = 0

	query := `
		INSERT INTO mass_actions (
			id, entity_type, action, params, data, status, processed_count,
			notify_on_finish, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	now := time.Now()
	_, err := r.db.ExecContext(ctx, query,
		record.ID,
		record.EntityType,
		record.Action,
		record.Params,
		record.Data,
		record.Status,
		record.ProcessedCount,
		record.NotifyOnFinish,
		record.CreatedBy,
		now,
		now,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create mass action record: %w", err)
	}

	return record.ID, nil
}

func (r *MassActionRepository) GetByID(ctx context.Context, id string) (*models.MassActionRecord, error) {
	query := `
		SELECT id, entity_type, action, params, data, status, processed_count,
			notify_on_finish, created_by, created_at, updated_at
		FROM mass_actions
		WHERE id = $1`

	record := &models.MassActionRecord{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&record.ID,
		&record.EntityType,
		&record.Action,
		&record.Params,
		&record.Data,
		&record.Status,
		&record.ProcessedCount,
		&record.NotifyOnFinish,
		&record.CreatedBy,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get mass action record: %w", err)
	}

	return record, nil
}

// ClaimNextQueued atomically moves the oldest Queued record into Running and
// returns it. Returns ErrNotFound when nothing is queued. The single UPDATE
// keeps concurrent workers from claiming the same record twice.
func (r *MassActionRepository) ClaimNextQueued(ctx context.Context) (*models.MassActionRecord, error) {
	query := `
		UPDATE mass_actions
		SET status = $1, updated_at = $2
		WHERE id = (
			SELECT id FROM mass_actions
			WHERE status = $3
			ORDER BY created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, entity_type, action, params, data, status, processed_count,
			notify_on_finish, created_by, created_at, updated_at`

	record := &models.MassActionRecord{}
	err := r.db.QueryRowContext(ctx, query,
		models.MassActionStatusRunning, time.Now(), models.MassActionStatusQueued,
	).Scan(
		&record.ID,
		&record.EntityType,
		&record.Action,
		&record.Params,
		&record.Data,
		&record.Status,
		&record.ProcessedCount,
		&record.NotifyOnFinish,
		&record.CreatedBy,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim queued mass action: %w", err)
	}

	return record, nil
}

// Finish moves a record into a terminal state with its final processed count.
func (r *MassActionRepository) Finish(ctx context.Context, id string, status string, processedCount int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE mass_actions SET status = $1, processed_count = $2, updated_at = $3 WHERE id = $4`,
		status, processedCount, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to finish mass action: %w", err)
	}
	return nil
}

// UpdateProcessedCount records progress while a record is Running.
func (r *MassActionRepository) UpdateProcessedCount(ctx context.Context, id string, processedCount int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE mass_actions SET processed_count = $1, updated_at = $2 WHERE id = $3`,
		processedCount, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update processed count: %w", err)
	}
	return nil
}

// SetNotifyOnFinish subscribes the creator to a completion notification.
func (r *MassActionRepository) SetNotifyOnFinish(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE mass_actions SET notify_on_finish = true, updated_at = $1 WHERE id = $2`,
		time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set notify on finish: %w", err)
	}
	return nil
}
