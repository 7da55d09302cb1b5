package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gocrm-io/gocrm-ce/internal/models"
)

type EmailRepository struct {
	db *sql.DB
}

func NewEmailRepository(db *sql.DB) *EmailRepository {
	return &EmailRepository{db: db}
}

func (r *EmailRepository) Insert(ctx context.Context, email *models.Email) (string, error) {
	if email.ID == "" {
		email.ID = uuid.New().String()
	}
	query := `
		INSERT INTO emails (
			id, message_id, account_id, from_address, to_addresses, subject, body,
			is_html, is_auto_reply, skip_auto_reply, parent_type, parent_id,
			assigned_user_id, team_id, received_at, fetched_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err := r.db.ExecContext(ctx, query,
		email.ID,
		email.MessageID,
		email.AccountID,
		email.FromAddress,
		email.ToAddresses,
		email.Subject,
		email.Body,
		email.IsHTML,
		email.IsAutoReply,
		email.SkipAutoReply,
		email.ParentType,
		email.ParentID,
		email.AssignedUserID,
		email.TeamID,
		email.ReceivedAt,
		email.FetchedAt,
		time.Now(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert email: %w", err)
	}

	return email.ID, nil
}

// ExistsByMessageID reports whether an email with the given Message-ID was
// already persisted for the account; fetch cycles use it for deduplication.
func (r *EmailRepository) ExistsByMessageID(ctx context.Context, accountID, messageID string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM emails WHERE account_id = $1 AND message_id = $2`,
		accountID, messageID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check email existence: %w", err)
	}
	return true, nil
}
