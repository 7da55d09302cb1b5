package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// entityTables maps entity types to their backing tables. Lookups outside
// this table are rejected rather than interpolated into SQL.
var entityTables = map[string]string{
	"Contact":     "contacts",
	"Lead":        "leads",
	"Account":     "accounts",
	"Case":        "cases",
	"Opportunity": "opportunities",
	"User":        "users",
}

// EntityRef is a resolved (type, id) pair pointing at an existing record.
type EntityRef struct {
	Type string
	ID   string
}

// EntityRefRepository resolves polymorphic (entityType, id) links such as
// queue-item targets and email parents.
type EntityRefRepository struct {
	db *sql.DB
}

func NewEntityRefRepository(db *sql.DB) *EntityRefRepository {
	return &EntityRefRepository{db: db}
}

// KnownEntityType reports whether the entity type has a backing table.
func KnownEntityType(entityType string) bool {
	_, ok := entityTables[entityType]
	return ok
}

// Resolve returns a ref when the record exists, ErrNotFound when it does not.
func (r *EntityRefRepository) Resolve(ctx context.Context, entityType, id string) (*EntityRef, error) {
	table, ok := entityTables[entityType]
	if !ok {
		return nil, fmt.Errorf("unknown entity type %s", entityType)
	}

	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM `+table+` WHERE id = $1`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s %s: %w", entityType, id, err)
	}

	return &EntityRef{Type: entityType, ID: id}, nil
}
