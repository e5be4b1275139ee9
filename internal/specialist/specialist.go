// Package specialist defines the contract content-generation workers must
// satisfy and the registry the scheduler dispatches through.
package specialist

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vmont3/veramkt-sub001/domain"
)

// Specialist is the uniform execution contract for content workers.
// Execute must be idempotent-safe to retry under local containment.
type Specialist interface {
	Execute(ctx context.Context, taskType domain.TaskType, data json.RawMessage) (json.RawMessage, error)
}

// Registry maps capability identifiers to specialists.
type Registry struct {
	specialists map[string]Specialist
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{specialists: make(map[string]Specialist)}
}

// Register binds a specialist to a capability identifier.
func (r *Registry) Register(capability string, sp Specialist) {
	r.specialists[capability] = sp
}

// Resolve returns the specialist for a capability.
func (r *Registry) Resolve(capability string) (Specialist, error) {
	sp, ok := r.specialists[capability]
	if !ok {
		return nil, fmt.Errorf("unsupported capability %q", capability)
	}
	return sp, nil
}
