package massaction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/gocrm-io/gocrm-ce/internal/repository"
)

// Built-in action names.
const (
	ActionUpdate   = "update"
	ActionDelete   = "delete"
	ActionFollow   = "follow"
	ActionUnfollow = "unfollow"
)

type entityStore interface {
	UpdateFields(ctx context.Context, entityType, id string, fields map[string]any) error
	Delete(ctx context.Context, entityType, id string) error
	ListIDsByFilter(ctx context.Context, entityType string, filter map[string]any) ([]string, error)
	Follow(ctx context.Context, entityType, id, userID string) error
	Unfollow(ctx context.Context, entityType, id, userID string) error
}

// resolveIDs expands a selection to concrete record ids.
func resolveIDs(ctx context.Context, store entityStore, entityType string, params Params) ([]string, error) {
	if !params.IsFilter() {
		return params.IDs, nil
	}
	filter := map[string]any{}
	if len(params.Filter) > 0 {
		if err := json.Unmarshal(params.Filter, &filter); err != nil {
			return nil, fmt.Errorf("failed to decode filter: %w", err)
		}
	}
	return store.ListIDsByFilter(ctx, entityType, filter)
}

// UpdateAction applies a field map to every selected record. Records deleted
// since selection are skipped, not errors.
type UpdateAction struct {
	store  entityStore
	logger *log.Logger
}

func NewUpdateAction(store entityStore, logger *log.Logger) *UpdateAction {
	return &UpdateAction{store: store, logger: logger}
}

func (a *UpdateAction) Name() string { return ActionUpdate }

func (a *UpdateAction) Process(ctx context.Context, entityType string, params Params, data json.RawMessage, progress ProgressFunc) (*Result, error) {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode update payload: %w", err)
	}
	if len(fields) == 0 {
		return nil, errors.New("update action requires at least one field")
	}

	ids, err := resolveIDs(ctx, a.store, entityType, params)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for _, id := range ids {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if err := a.store.UpdateFields(ctx, entityType, id, fields); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			return result, err
		}
		result.Count++
		result.IDs = append(result.IDs, id)
		if progress != nil {
			progress(result.Count)
		}
	}
	return result, nil
}

// DeleteAction removes every selected record.
type DeleteAction struct {
	store  entityStore
	logger *log.Logger
}

func NewDeleteAction(store entityStore, logger *log.Logger) *DeleteAction {
	return &DeleteAction{store: store, logger: logger}
}

func (a *DeleteAction) Name() string { return ActionDelete }

func (a *DeleteAction) Process(ctx context.Context, entityType string, params Params, _ json.RawMessage, progress ProgressFunc) (*Result, error) {
	ids, err := resolveIDs(ctx, a.store, entityType, params)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for _, id := range ids {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if err := a.store.Delete(ctx, entityType, id); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			return result, err
		}
		result.Count++
		result.IDs = append(result.IDs, id)
		if progress != nil {
			progress(result.Count)
		}
	}
	return result, nil
}

// followPayload carries the subscribing user for follow/unfollow actions.
type followPayload struct {
	UserID string `json:"userId"`
}

// FollowAction subscribes a user to every selected record.
type FollowAction struct {
	store entityStore
}

func NewFollowAction(store entityStore) *FollowAction {
	return &FollowAction{store: store}
}

func (a *FollowAction) Name() string { return ActionFollow }

func (a *FollowAction) Process(ctx context.Context, entityType string, params Params, data json.RawMessage, progress ProgressFunc) (*Result, error) {
	payload, err := decodeFollowPayload(data)
	if err != nil {
		return nil, err
	}
	ids, err := resolveIDs(ctx, a.store, entityType, params)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for _, id := range ids {
		if err := a.store.Follow(ctx, entityType, id, payload.UserID); err != nil {
			return result, err
		}
		result.Count++
		result.IDs = append(result.IDs, id)
		if progress != nil {
			progress(result.Count)
		}
	}
	return result, nil
}

// UnfollowAction removes a user's subscription from every selected record.
type UnfollowAction struct {
	store entityStore
}

func NewUnfollowAction(store entityStore) *UnfollowAction {
	return &UnfollowAction{store: store}
}

func (a *UnfollowAction) Name() string { return ActionUnfollow }

func (a *UnfollowAction) Process(ctx context.Context, entityType string, params Params, data json.RawMessage, progress ProgressFunc) (*Result, error) {
	payload, err := decodeFollowPayload(data)
	if err != nil {
		return nil, err
	}
	ids, err := resolveIDs(ctx, a.store, entityType, params)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for _, id := range ids {
		if err := a.store.Unfollow(ctx, entityType, id, payload.UserID); err != nil {
			return result, err
		}
		result.Count++
		result.IDs = append(result.IDs, id)
		if progress != nil {
			progress(result.Count)
		}
	}
	return result, nil
}

func decodeFollowPayload(data json.RawMessage) (followPayload, error) {
	var payload followPayload
	if len(data) > 0 {
		if err := json.Unmarshal(data, &payload); err != nil {
			return followPayload{}, fmt.Errorf("failed to decode follow payload: %w", err)
		}
	}
	if payload.UserID == "" {
		return followPayload{}, errors.New("follow action requires a userId")
	}
	return payload, nil
}

// DefaultRegistry wires the built-in actions for the standard CRM entity
// types.
func DefaultRegistry(store entityStore, logger *log.Logger) *Registry {
	entityTypes := []string{"Contact", "Lead", "Account", "Case", "Opportunity"}
	registry := NewRegistry()
	registry.Register(NewUpdateAction(store, logger), entityTypes...)
	registry.Register(NewDeleteAction(store, logger), entityTypes...)
	registry.Register(NewFollowAction(store), entityTypes...)
	registry.Register(NewUnfollowAction(store), entityTypes...)
	return registry
}
