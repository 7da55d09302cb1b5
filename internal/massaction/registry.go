package massaction

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Result is what an action reports back. IDs lists the affected records; the
// service strips it when the caller selected by filter.
type Result struct {
	Count int      `json:"count"`
	IDs   []string `json:"ids,omitempty"`
}

// ProgressFunc receives the running count of processed records. Actions call
// it as they go; a nil callback means the caller does not track progress.
type ProgressFunc func(processed int)

// Action is one pluggable bulk operation.
type Action interface {
	Name() string
	Process(ctx context.Context, entityType string, params Params, data json.RawMessage, progress ProgressFunc) (*Result, error)
}

// Registry maps (action name, entity type) to an implementation. It is built
// explicitly at startup; there is no runtime discovery.
type Registry struct {
	mu      sync.RWMutex
	actions map[string]Action
}

func NewRegistry() *Registry {
	return &Registry{actions: make(map[string]Action)}
}

// Register binds an action to the given entity types.
func (r *Registry) Register(action Action, entityTypes ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entityType := range entityTypes {
		r.actions[registryKey(action.Name(), entityType)] = action
	}
}

// Resolve finds the implementation for an action on an entity type.
func (r *Registry) Resolve(name, entityType string) (Action, error) {
	r.mu.RLock()
	action, ok := r.actions[registryKey(name, entityType)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no action %q registered for %s", name, entityType)
	}
	return action, nil
}

func registryKey(name, entityType string) string {
	return name + "|" + entityType
}
