package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/gocrm-io/gocrm-ce/internal/models"
)

type noteStore interface {
	Insert(ctx context.Context, note *models.Note) (string, error)
}

// Service posts activity-stream notes against parent records.
type Service struct {
	notes  noteStore
	logger *log.Logger
}

func NewService(notes noteStore, logger *log.Logger) *Service {
	return &Service{notes: notes, logger: logger}
}

// NoteEmailReceived attaches an "email received" note to the email's parent
// record. The note carries a small snapshot so the stream renders without a
// join against the emails table.
func (s *Service) NoteEmailReceived(ctx context.Context, parentType, parentID string, email *models.Email) error {
	snapshot, err := json.Marshal(map[string]string{
		"emailId":   email.ID,
		"emailName": email.Subject,
	})
	if err != nil {
		return fmt.Errorf("failed to encode note data: %w", err)
	}
	note := &models.Note{
		Type:       models.NoteTypeEmailReceived,
		ParentType: parentType,
		ParentID:   parentID,
		Data:       string(snapshot),
	}
	if _, err := s.notes.Insert(ctx, note); err != nil {
		return fmt.Errorf("failed to post email-received note: %w", err)
	}
	if s.logger != nil {
		s.logger.Printf("stream: posted email-received note parent=%s/%s email=%s", parentType, parentID, email.ID)
	}
	return nil
}
