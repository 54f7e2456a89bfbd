// File: internal/scheduler/registry.go
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/marketpulse/orchestrator/internal/models"
	"github.com/marketpulse/orchestrator/pkg/utils"
)

// HandlerFunc executes one task attempt and returns the result payload
// persisted on the task. Returning an error marks the attempt failed.
type HandlerFunc func(ctx context.Context, task *models.Task) (map[string]interface{}, error)

// Registry maps task types to their handlers. The set is fixed at startup:
// scheduling a task whose type has no registered handler is a configuration
// error, not a runtime fallback.
type Registry struct {
	mu       sync.RWMutex
	handlers map[models.TaskType]HandlerFunc
}

// NewRegistry creates an empty handler registry
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[models.TaskType]HandlerFunc),
	}
}

// Register binds a handler to a task type, replacing any previous binding.
func (r *Registry) Register(taskType models.TaskType, handler HandlerFunc) error {
	if !models.IsValidTaskType(taskType) {
		return utils.NewAppError(utils.ErrCodeConfiguration,
			fmt.Sprintf("Unknown task type: %s", taskType), "")
	}
	if handler == nil {
		return utils.NewAppError(utils.ErrCodeConfiguration,
			fmt.Sprintf("Nil handler for task type: %s", taskType), "")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[taskType] = handler
	return nil
}

// Resolve returns the handler for a task type.
func (r *Registry) Resolve(taskType models.TaskType) (HandlerFunc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handler, ok := r.handlers[taskType]
	if !ok {
		return nil, utils.NewAppError(utils.ErrCodeConfiguration,
			fmt.Sprintf("No handler registered for task type: %s", taskType), "")
	}
	return handler, nil
}

// Types returns the registered task types in stable order.
func (r *Registry) Types() []models.TaskType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]models.TaskType, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
