package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gocrm-io/gocrm-ce/internal/models"
)

type QueueItemRepository struct {
	db *sql.DB
}

func NewQueueItemRepository(db *sql.DB) *QueueItemRepository {
	return &QueueItemRepository{db: db}
}

func (r *QueueItemRepository) GetByID(ctx context.Context, id string) (*models.QueueItem, error) {
	query := `
		SELECT id, mass_email_id, target_type, target_id, email_address, status, is_test, created_at
		FROM email_queue_items
		WHERE id = $1`

	item := &models.QueueItem{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&item.ID,
		&item.MassEmailID,
		&item.TargetType,
		&item.TargetID,
		&item.EmailAddress,
		&item.Status,
		&item.IsTest,
		&item.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get queue item: %w", err)
	}

	return item, nil
}

type MassEmailRepository struct {
	db *sql.DB
}

func NewMassEmailRepository(db *sql.DB) *MassEmailRepository {
	return &MassEmailRepository{db: db}
}

func (r *MassEmailRepository) GetByID(ctx context.Context, id string) (*models.MassEmail, error) {
	query := `SELECT id, campaign_id, name, status, created_at FROM mass_emails WHERE id = $1`

	me := &models.MassEmail{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&me.ID,
		&me.CampaignID,
		&me.Name,
		&me.Status,
		&me.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get mass email: %w", err)
	}

	return me, nil
}

type CampaignLogRepository struct {
	db *sql.DB
}

func NewCampaignLogRepository(db *sql.DB) *CampaignLogRepository {
	return &CampaignLogRepository{db: db}
}

func (r *CampaignLogRepository) Insert(ctx context.Context, record *models.CampaignLogRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.ActionDate.IsZero() {
		record.ActionDate = time.Now()
	}
	query := `
		INSERT INTO campaign_log_records (
			id, campaign_id, action, queue_item_id, target_type, target_id,
			email_address, data, is_test, action_date
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.ExecContext(ctx, query,
		record.ID,
		record.CampaignID,
		record.Action,
		record.QueueItemID,
		record.TargetType,
		record.TargetID,
		record.EmailAddress,
		record.Data,
		record.IsTest,
		record.ActionDate,
	)
	if err != nil {
		return fmt.Errorf("failed to insert campaign log record: %w", err)
	}
	return nil
}
