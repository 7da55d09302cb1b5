package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gocrm-io/gocrm-ce/internal/models"
)

type EmailAddressRepository struct {
	db *sql.DB
}

func NewEmailAddressRepository(db *sql.DB) *EmailAddressRepository {
	return &EmailAddressRepository{db: db}
}

func (r *EmailAddressRepository) GetByAddress(ctx context.Context, address string) (*models.EmailAddress, error) {
	query := `
		SELECT id, address, invalid, opted_out, created_at
		FROM email_addresses
		WHERE LOWER(address) = $1`

	rec := &models.EmailAddress{}
	err := r.db.QueryRowContext(ctx, query, strings.ToLower(address)).Scan(
		&rec.ID,
		&rec.Address,
		&rec.Invalid,
		&rec.OptedOut,
		&rec.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get email address: %w", err)
	}

	return rec, nil
}

// GetOwner resolves the CRM entity an address belongs to, preferring the
// entity holding it as primary. Used to link inbound email to a parent record.
func (r *EmailAddressRepository) GetOwner(ctx context.Context, address string) (entityType, entityID string, err error) {
	query := `
		SELECT l.entity_type, l.entity_id
		FROM entity_email_addresses l
		JOIN email_addresses a ON a.id = l.email_address_id
		WHERE LOWER(a.address) = $1
		ORDER BY l.is_primary DESC
		LIMIT 1`

	err = r.db.QueryRowContext(ctx, query, strings.ToLower(address)).Scan(&entityType, &entityID)
	if err == sql.ErrNoRows {
		return "", "", ErrNotFound
	}
	if err != nil {
		return "", "", fmt.Errorf("failed to resolve address owner: %w", err)
	}
	return entityType, entityID, nil
}

// MarkInvalid flags an address so future campaign sends exclude it.
func (r *EmailAddressRepository) MarkInvalid(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE email_addresses SET invalid = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark email address invalid: %w", err)
	}
	return nil
}
