// Package runtime provides the workflow execution engine.
package runtime

import (
	"context"

	"github.com/tcmartin/flowexec/pkg/models"
)

// NodeExecutor runs a single node's logic. The engine calls Execute once
// per node per run and imposes no per-node timeout; retries, if any, are
// the caller's concern. Implementations handle one node kind (an API
// call, a message send, a data transform) and are opaque to the engine.
type NodeExecutor interface {
	// Execute runs the node and returns its output, or an error if the
	// node failed. The call may block on I/O; the engine never holds a
	// lock across it.
	Execute(ctx context.Context, node models.Node, runCtx models.RunContext) (Result, error)
}

// Result is a successful node execution's output.
type Result struct {
	// Output produced by the node, recorded on its NodeState
	Output map[string]interface{}
}

// ExecutorFunc adapts a function to the NodeExecutor interface.
type ExecutorFunc func(ctx context.Context, node models.Node, runCtx models.RunContext) (Result, error)

// Execute implements NodeExecutor.
func (f ExecutorFunc) Execute(ctx context.Context, node models.Node, runCtx models.RunContext) (Result, error) {
	return f(ctx, node, runCtx)
}
