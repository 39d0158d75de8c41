package runtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/tcmartin/flowexec/pkg/models"
)

// ExecutorRegistry maps node kinds to the executors that handle them.
type ExecutorRegistry struct {
	mu        sync.RWMutex
	executors map[string]NodeExecutor
	fallback  NodeExecutor
}

// NewExecutorRegistry creates an empty registry.
func NewExecutorRegistry() *ExecutorRegistry {
	return &ExecutorRegistry{
		executors: make(map[string]NodeExecutor),
	}
}

// Register adds or replaces the executor for a node kind.
func (r *ExecutorRegistry) Register(kind string, executor NodeExecutor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[kind] = executor
}

// SetFallback sets the executor used for kinds with no registration.
func (r *ExecutorRegistry) SetFallback(executor NodeExecutor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = executor
}

// Get returns the executor for a kind, falling back to the default.
func (r *ExecutorRegistry) Get(kind string) (NodeExecutor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if ex, ok := r.executors[kind]; ok {
		return ex, true
	}
	if r.fallback != nil {
		return r.fallback, true
	}
	return nil, false
}

// Execute dispatches the node to its executor. An unregistered kind is a
// node failure, not a run abort.
func (r *ExecutorRegistry) Execute(ctx context.Context, node models.Node, runCtx models.RunContext) (Result, error) {
	executor, ok := r.Get(node.Kind)
	if !ok {
		return Result{}, fmt.Errorf("no executor registered for node kind %q", node.Kind)
	}
	return executor.Execute(ctx, node, runCtx)
}
