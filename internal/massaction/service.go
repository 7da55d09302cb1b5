package massaction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/gocrm-io/gocrm-ce/internal/models"
	"github.com/gocrm-io/gocrm-ce/internal/repository"
)

// ErrForbidden is returned for every access failure. It deliberately carries
// no detail: the caller learns nothing about why access was denied or whether
// the record exists.
var ErrForbidden = errors.New("forbidden")

type recordStore interface {
	Create(ctx context.Context, record *models.MassActionRecord) (string, error)
	GetByID(ctx context.Context, id string) (*models.MassActionRecord, error)
	SetNotifyOnFinish(ctx context.Context, id string) error
}

type scopeChecker interface {
	CheckScope(role, entityType string) bool
}

// jobKicker nudges the background worker so a freshly queued record is picked
// up before the next cron tick. Best-effort.
type jobKicker interface {
	Kick()
}

// Actor identifies the requesting user.
type Actor struct {
	UserID string
	Role   string
}

// SubmitResult is the outcome of Submit: an id for deferred execution, an
// action result for synchronous execution.
type SubmitResult struct {
	ID     string  `json:"id,omitempty"`
	Result *Result `json:"result,omitempty"`
}

// StatusData is the only view of a record's progress exposed to its creator.
type StatusData struct {
	Status         string `json:"status"`
	ProcessedCount int    `json:"processedCount"`
}

// Service validates, schedules and executes bulk actions.
type Service struct {
	registry *Registry
	records  recordStore
	acl      scopeChecker
	kicker   jobKicker
	logger   *log.Logger
}

func NewService(registry *Registry, records recordStore, acl scopeChecker, kicker jobKicker, logger *log.Logger) *Service {
	return &Service{
		registry: registry,
		records:  records,
		acl:      acl,
		kicker:   kicker,
		logger:   logger,
	}
}

// Submit runs or schedules a bulk action. With idle=true the work is deferred:
// a queued record is persisted and only its id returned. Otherwise the action
// executes synchronously.
func (s *Service) Submit(ctx context.Context, actor Actor, entityType, actionName string, params Params, data json.RawMessage, idle bool) (*SubmitResult, error) {
	if !s.acl.CheckScope(actor.Role, entityType) {
		return nil, ErrForbidden
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	if idle {
		return s.schedule(ctx, actor, entityType, actionName, params, data)
	}
	return s.execute(ctx, entityType, actionName, params, data)
}

func (s *Service) schedule(ctx context.Context, actor Actor, entityType, actionName string, params Params, data json.RawMessage) (*SubmitResult, error) {
	if actor.Role == models.RolePortal {
		return nil, ErrForbidden
	}
	// fail early rather than queueing a record no worker can run
	if _, err := s.registry.Resolve(actionName, entityType); err != nil {
		return nil, err
	}

	encoded, err := params.Encode()
	if err != nil {
		return nil, err
	}
	payload := "{}"
	if len(data) > 0 {
		payload = string(data)
	}

	record := &models.MassActionRecord{
		EntityType: entityType,
		Action:     actionName,
		Params:     encoded,
		Data:       payload,
		CreatedBy:  actor.UserID,
	}
	id, err := s.records.Create(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule mass action: %w", err)
	}
	if s.kicker != nil {
		s.kicker.Kick()
	}
	s.logf("massaction: queued %s/%s as %s for user %s", entityType, actionName, id, actor.UserID)
	return &SubmitResult{ID: id}, nil
}

func (s *Service) execute(ctx context.Context, entityType, actionName string, params Params, data json.RawMessage) (*SubmitResult, error) {
	action, err := s.registry.Resolve(actionName, entityType)
	if err != nil {
		return nil, err
	}
	result, err := action.Process(ctx, entityType, params, data, nil)
	if err != nil {
		return nil, err
	}
	// The caller never provided explicit ids, so echoing resolved ids back
	// would misrepresent what it asked for.
	if params.IsFilter() {
		result.IDs = nil
	}
	return &SubmitResult{Result: result}, nil
}

// GetStatusData reports progress of a deferred action to its creator. Anyone
// else gets ErrForbidden, whether or not the record exists.
func (s *Service) GetStatusData(ctx context.Context, actor Actor, id string) (*StatusData, error) {
	record, err := s.loadOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return &StatusData{Status: record.Status, ProcessedCount: record.ProcessedCount}, nil
}

// Subscribe flags the record so its creator is notified on completion.
func (s *Service) Subscribe(ctx context.Context, actor Actor, id string) error {
	record, err := s.loadOwned(ctx, actor, id)
	if err != nil {
		return err
	}
	if record.IsTerminal() {
		return nil
	}
	return s.records.SetNotifyOnFinish(ctx, id)
}

func (s *Service) loadOwned(ctx context.Context, actor Actor, id string) (*models.MassActionRecord, error) {
	record, err := s.records.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrForbidden
		}
		return nil, err
	}
	if record.CreatedBy != actor.UserID {
		return nil, ErrForbidden
	}
	return record, nil
}

func (s *Service) logf(format string, args ...any) {
	if s == nil || s.logger == nil {
		return
	}
	s.logger.Printf(format, args...)
}
