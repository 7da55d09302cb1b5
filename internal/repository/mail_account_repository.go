package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gocrm-io/gocrm-ce/internal/models"
)

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("record not found")

const mailAccountColumns = `id, kind, name, email_address, host, port, security, username,
		password_encrypted, monitored_folders, fetch_since, fetch_data, portion_limit,
		keep_fetched_unread, assigned_user_id, team_id, is_active,
		created_at, created_by, updated_at, updated_by`

type MailAccountRepository struct {
	db *sql.DB
}

func NewMailAccountRepository(db *sql.DB) *MailAccountRepository {
	return &MailAccountRepository{db: db}
}

func (r *MailAccountRepository) Create(ctx context.Context, account *models.MailAccount) (string, error) {
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	query := `
		INSERT INTO mail_accounts (
			id, kind, name, email_address, host, port, security, username,
			password_encrypted, monitored_folders, fetch_since, portion_limit,
			keep_fetched_unread, assigned_user_id, team_id, is_active,
			created_at, created_by, updated_at, updated_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

	now := time.Now()
	_, err := r.db.ExecContext(ctx, query,
		account.ID,
		account.Kind,
		account.Name,
		account.EmailAddress,
		account.Host,
		account.Port,
		account.Security,
		account.Username,
		account.PasswordEncrypted,
		account.MonitoredFolders,
		account.FetchSince,
		account.PortionLimit,
		account.KeepFetchedUnread,
		account.AssignedUserID,
		account.TeamID,
		account.IsActive,
		now,
		account.CreatedBy,
		now,
		account.UpdatedBy,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create mail account: %w", err)
	}

	return account.ID, nil
}

func (r *MailAccountRepository) GetByID(ctx context.Context, id string) (*models.MailAccount, error) {
	query := `SELECT ` + mailAccountColumns + ` FROM mail_accounts WHERE id = $1`

	account := &models.MailAccount{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&account.ID,
		&account.Kind,
		&account.Name,
		&account.EmailAddress,
		&account.Host,
		&account.Port,
		&account.Security,
		&account.Username,
		&account.PasswordEncrypted,
		&account.MonitoredFolders,
		&account.FetchSince,
		&account.FetchData,
		&account.PortionLimit,
		&account.KeepFetchedUnread,
		&account.AssignedUserID,
		&account.TeamID,
		&account.IsActive,
		&account.CreatedAt,
		&account.CreatedBy,
		&account.UpdatedAt,
		&account.UpdatedBy,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get mail account: %w", err)
	}

	return account, nil
}

// GetActiveAccounts lists accounts eligible for fetch polling.
func (r *MailAccountRepository) GetActiveAccounts(ctx context.Context) ([]*models.MailAccount, error) {
	query := `SELECT ` + mailAccountColumns + `
		FROM mail_accounts
		WHERE is_active = true
		ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query active mail accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.MailAccount
	for rows.Next() {
		account := &models.MailAccount{}
		err := rows.Scan(
			&account.ID,
			&account.Kind,
			&account.Name,
			&account.EmailAddress,
			&account.Host,
			&account.Port,
			&account.Security,
			&account.Username,
			&account.PasswordEncrypted,
			&account.MonitoredFolders,
			&account.FetchSince,
			&account.FetchData,
			&account.PortionLimit,
			&account.KeepFetchedUnread,
			&account.AssignedUserID,
			&account.TeamID,
			&account.IsActive,
			&account.CreatedAt,
			&account.CreatedBy,
			&account.UpdatedAt,
			&account.UpdatedBy,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mail account: %w", err)
		}
		accounts = append(accounts, account)
	}

	return accounts, rows.Err()
}

// List returns every stored account, newest first.
func (r *MailAccountRepository) List(ctx context.Context) ([]*models.MailAccount, error) {
	query := `SELECT ` + mailAccountColumns + `
		FROM mail_accounts
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list mail accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.MailAccount
	for rows.Next() {
		account := &models.MailAccount{}
		err := rows.Scan(
			&account.ID,
			&account.Kind,
			&account.Name,
			&account.EmailAddress,
			&account.Host,
			&account.Port,
			&account.Security,
			&account.Username,
			&account.PasswordEncrypted,
			&account.MonitoredFolders,
			&account.FetchSince,
			&account.FetchData,
			&account.PortionLimit,
			&account.KeepFetchedUnread,
			&account.AssignedUserID,
			&account.TeamID,
			&account.IsActive,
			&account.CreatedAt,
			&account.CreatedBy,
			&account.UpdatedAt,
			&account.UpdatedBy,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mail account: %w", err)
		}
		accounts = append(accounts, account)
	}

	return accounts, rows.Err()
}

// Update rewrites the editable fields of an account. The fetch cursor is
// managed separately through UpdateFetchData.
func (r *MailAccountRepository) Update(ctx context.Context, account *models.MailAccount) error {
	query := `
		UPDATE mail_accounts SET
			name = $1, email_address = $2, host = $3, port = $4, security = $5,
			username = $6, password_encrypted = $7, monitored_folders = $8,
			fetch_since = $9, portion_limit = $10, keep_fetched_unread = $11,
			assigned_user_id = $12, team_id = $13, is_active = $14,
			updated_at = $15, updated_by = $16
		WHERE id = $17`

	result, err := r.db.ExecContext(ctx, query,
		account.Name,
		account.EmailAddress,
		account.Host,
		account.Port,
		account.Security,
		account.Username,
		account.PasswordEncrypted,
		account.MonitoredFolders,
		account.FetchSince,
		account.PortionLimit,
		account.KeepFetchedUnread,
		account.AssignedUserID,
		account.TeamID,
		account.IsActive,
		time.Now(),
		account.UpdatedBy,
		account.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update mail account: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update mail account: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MailAccountRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM mail_accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete mail account: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete mail account: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateFetchData persists the fetch cursor. When notify is false the write is
// silent: updated_at is left untouched so the cursor bump never surfaces as a
// user-facing modification event.
func (r *MailAccountRepository) UpdateFetchData(ctx context.Context, id string, fetchData string, notify bool) error {
	var err error
	if notify {
		_, err = r.db.ExecContext(ctx,
			`UPDATE mail_accounts SET fetch_data = $1, updated_at = $2 WHERE id = $3`,
			fetchData, time.Now(), id)
	} else {
		_, err = r.db.ExecContext(ctx,
			`UPDATE mail_accounts SET fetch_data = $1 WHERE id = $2`,
			fetchData, id)
	}
	if err != nil {
		return fmt.Errorf("failed to update fetch data: %w", err)
	}
	return nil
}
