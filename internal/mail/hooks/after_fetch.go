package hooks

import (
	"context"
	"errors"
	"log"

	"github.com/gocrm-io/gocrm-ce/internal/mail/connector"
	"github.com/gocrm-io/gocrm-ce/internal/models"
	"github.com/gocrm-io/gocrm-ce/internal/repository"
)

type parentResolver interface {
	Resolve(ctx context.Context, entityType, id string) (*repository.EntityRef, error)
}

type streamNotifier interface {
	NoteEmailReceived(ctx context.Context, parentType, parentID string, email *models.Email) error
}

// AfterFetch runs once per message after successful persistence. A newly
// fetched email with a resolvable parent record produces an activity-stream
// note; everything else is a no-op.
type AfterFetch struct {
	parents parentResolver
	stream  streamNotifier
	logger  *log.Logger
}

func NewAfterFetch(parents parentResolver, stream streamNotifier, logger *log.Logger) *AfterFetch {
	return &AfterFetch{parents: parents, stream: stream, logger: logger}
}

// Process emits the notification side effect. Errors are logged and dropped;
// a failed note must not abort persistence of subsequent messages.
func (h *AfterFetch) Process(ctx context.Context, account connector.Account, email *models.Email) {
	if !email.IsFetched() {
		return
	}
	if email.ParentType == nil || email.ParentID == nil {
		return
	}

	parent, err := h.parents.Resolve(ctx, *email.ParentType, *email.ParentID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			h.logf("after-fetch: account %s: parent lookup failed: %v", account.ID(), err)
		}
		return
	}

	if err := h.stream.NoteEmailReceived(ctx, parent.Type, parent.ID, email); err != nil {
		h.logf("after-fetch: account %s: stream note failed: %v", account.ID(), err)
	}
}

func (h *AfterFetch) logf(format string, args ...any) {
	if h == nil || h.logger == nil {
		return
	}
	h.logger.Printf(format, args...)
}
