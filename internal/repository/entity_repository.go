package repository

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// columnPattern restricts dynamic column names to plain identifiers; anything
// else is rejected before it reaches SQL.
var columnPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// EntityRepository performs generic record operations across the known entity
// tables. Bulk actions use it so one implementation serves every entity type.
type EntityRepository struct {
	db *sql.DB
}

func NewEntityRepository(db *sql.DB) *EntityRepository {
	return &EntityRepository{db: db}
}

// UpdateFields sets the given columns on one record.
func (r *EntityRepository) UpdateFields(ctx context.Context, entityType, id string, fields map[string]any) error {
	table, ok := entityTables[entityType]
	if !ok {
		return fmt.Errorf("unknown entity type %s", entityType)
	}
	if len(fields) == 0 {
		return nil
	}

	columns := make([]string, 0, len(fields))
	for column := range fields {
		if !columnPattern.MatchString(column) {
			return fmt.Errorf("invalid column name %q", column)
		}
		columns = append(columns, column)
	}
	sort.Strings(columns)

	assignments := make([]string, 0, len(columns)+1)
	args := make([]any, 0, len(columns)+2)
	for i, column := range columns {
		assignments = append(assignments, fmt.Sprintf("%s = $%d", column, i+1))
		args = append(args, fields[column])
	}
	assignments = append(assignments, fmt.Sprintf("updated_at = $%d", len(columns)+1))
	args = append(args, time.Now(), id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d",
		table, strings.Join(assignments, ", "), len(columns)+2)
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update %s %s: %w", entityType, id, err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes one record.
func (r *EntityRepository) Delete(ctx context.Context, entityType, id string) error {
	table, ok := entityTables[entityType]
	if !ok {
		return fmt.Errorf("unknown entity type %s", entityType)
	}
	result, err := r.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", entityType, id, err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListIDsByFilter resolves a select-all filter to concrete record ids. The
// filter is a flat map of column equality conditions; an empty filter selects
// every record of the type.
func (r *EntityRepository) ListIDsByFilter(ctx context.Context, entityType string, filter map[string]any) ([]string, error) {
	table, ok := entityTables[entityType]
	if !ok {
		return nil, fmt.Errorf("unknown entity type %s", entityType)
	}

	columns := make([]string, 0, len(filter))
	for column := range filter {
		if !columnPattern.MatchString(column) {
			return nil, fmt.Errorf("invalid column name %q", column)
		}
		columns = append(columns, column)
	}
	sort.Strings(columns)

	query := `SELECT id FROM ` + table
	args := make([]any, 0, len(columns))
	if len(columns) > 0 {
		conditions := make([]string, 0, len(columns))
		for i, column := range columns {
			conditions = append(conditions, fmt.Sprintf("%s = $%d", column, i+1))
			args = append(args, filter[column])
		}
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to filter %s records: %w", entityType, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan %s id: %w", entityType, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Follow subscribes a user to a record's activity stream.
func (r *EntityRepository) Follow(ctx context.Context, entityType, id, userID string) error {
	if !KnownEntityType(entityType) {
		return fmt.Errorf("unknown entity type %s", entityType)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO subscriptions (id, entity_type, entity_id, user_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (entity_type, entity_id, user_id) DO NOTHING`,
		uuid.New().String(), entityType, id, userID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to follow %s %s: %w", entityType, id, err)
	}
	return nil
}

// Unfollow removes a user's subscription to a record.
func (r *EntityRepository) Unfollow(ctx context.Context, entityType, id, userID string) error {
	if !KnownEntityType(entityType) {
		return fmt.Errorf("unknown entity type %s", entityType)
	}
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM subscriptions
		WHERE entity_type = $1 AND entity_id = $2 AND user_id = $3`,
		entityType, id, userID)
	if err != nil {
		return fmt.Errorf("failed to unfollow %s %s: %w", entityType, id, err)
	}
	return nil
}
