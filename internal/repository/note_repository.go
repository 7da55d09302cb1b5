package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gocrm-io/gocrm-ce/internal/models"
)

type NoteRepository struct {
	db *sql.DB
}

func NewNoteRepository(db *sql.DB) *NoteRepository {
	return &NoteRepository{db: db}
}

func (r *NoteRepository) Insert(ctx context.Context, note *models.Note) (string, error) {
	if note.ID == "" {
		note.ID = uuid.New().String()
	}
	query := `
		INSERT INTO notes (id, type, parent_type, parent_id, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(ctx, query,
		note.ID,
		note.Type,
		note.ParentType,
		note.ParentID,
		note.Data,
		time.Now(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert note: %w", err)
	}

	return note.ID, nil
}
