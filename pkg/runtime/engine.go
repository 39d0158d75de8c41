package runtime

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tcmartin/flowexec/pkg/graph"
	"github.com/tcmartin/flowexec/pkg/models"
	"github.com/tcmartin/flowexec/pkg/storage"
)

// Errors returned by the engine
var (
	ErrRunNotFound = errors.New("run not found")
)

// runState wraps a live run with the engine's bookkeeping. The cancel
// flag is observed by the driving loop between node steps; an in-flight
// node call is always allowed to finish naturally.
type runState struct {
	run       *models.Run
	cancelled bool
	deadline  time.Time // zero if the run has no timeout
}

// Engine orchestrates workflow runs. Each run executes on its own
// goroutine; within a run, nodes start strictly in the scheduler's order,
// one at a time. The engine's mutex is never held across an executor
// call so one run's I/O never blocks another run or a status read.
type Engine struct {
	executors *ExecutorRegistry
	history   storage.HistoryStore

	mu   sync.RWMutex
	runs map[string]*runState
}

// NewEngine creates an engine backed by the given executor registry and
// history store.
func NewEngine(executors *ExecutorRegistry, history storage.HistoryStore) *Engine {
	return &Engine{
		executors: executors,
		history:   history,
		runs:      make(map[string]*runState),
	}
}

// Start validates the graph, computes the execution order, creates the
// run and returns its ID immediately; execution proceeds asynchronously.
// A validation failure means the run is never created.
func (e *Engine) Start(g models.Graph, workflowID string, runCtx models.RunContext) (string, error) {
	if err := graph.Validate(g); err != nil {
		return "", err
	}

	order, degraded := graph.OrderWithReport(g.Nodes, g.Edges)
	runCtx = runCtx.Normalize()
	now := time.Now()

	run := &models.Run{
		ID:         uuid.New().String(),
		WorkflowID: workflowID,
		Status:     models.RunInitializing,
		StartTime:  now,
		NodeStates: make(map[string]*models.NodeState, len(g.Nodes)),
		Context:    runCtx,
	}
	for _, n := range g.Nodes {
		run.NodeStates[n.ID] = &models.NodeState{Status: models.NodePending}
	}

	appendLog(run, models.LogInfo, "execution started", "")
	if degraded {
		appendLog(run, models.LogWarning, "graph contains a cycle or dangling dependency; order was force-broken", "")
	}

	rs := &runState{run: run}
	if runCtx.Timeout > 0 {
		rs.deadline = now.Add(runCtx.Timeout)
	}

	nodes := make(map[string]models.Node, len(g.Nodes))
	for _, n := range g.Nodes {
		nodes[n.ID] = n
	}

	e.mu.Lock()
	e.runs[run.ID] = rs
	e.mu.Unlock()

	go e.drive(run.ID, nodes, order)

	return run.ID, nil
}

// Status returns a consistent snapshot of the run, live or terminal.
func (e *Engine) Status(runID string) (models.Run, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rs, ok := e.runs[runID]
	if !ok {
		return models.Run{}, ErrRunNotFound
	}
	return rs.run.Clone(), nil
}

// Cancel requests cancellation of a run. It is idempotent and returns
// true if the run existed and was not already terminal. Cancellation is
// cooperative: the driving loop observes it between node steps.
func (e *Engine) Cancel(runID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	rs, ok := e.runs[runID]
	if !ok || rs.run.Status.Terminal() {
		return false
	}
	if !rs.cancelled {
		rs.cancelled = true
		appendLog(rs.run, models.LogInfo, "cancellation requested", "")
	}
	return true
}

// History returns terminal runs for a workflow, newest first.
func (e *Engine) History(workflowID string, query storage.HistoryQuery) ([]models.HistoryEntry, error) {
	return e.history.GetHistory(workflowID, query)
}

// drive is the per-run loop. It is the run's single writer: every state
// mutation happens under the engine mutex, and the mutex is released
// around the executor call, the sole suspension point.
func (e *Engine) drive(runID string, nodes map[string]models.Node, order []string) {
	for _, nodeID := range order {
		e.mu.Lock()
		rs := e.runs[runID]

		if rs.cancelled {
			entry := e.stopRun(rs, "run cancelled")
			e.mu.Unlock()
			e.record(entry)
			return
		}
		if !rs.deadline.IsZero() && time.Now().After(rs.deadline) {
			appendLog(rs.run, models.LogWarning, "run timeout exceeded", "")
			entry := e.stopRun(rs, "run timed out")
			e.mu.Unlock()
			e.record(entry)
			return
		}

		if rs.run.Status == models.RunInitializing {
			rs.run.Status = models.RunRunning
		}

		node := nodes[nodeID]
		ns := rs.run.NodeStates[nodeID]
		started := time.Now()
		ns.Status = models.NodeRunning
		ns.StartedAt = &started
		rs.run.CurrentNodeID = nodeID
		appendLog(rs.run, models.LogInfo, "node started", nodeID)
		runCtx := rs.run.Context
		e.mu.Unlock()

		result, err := e.executors.Execute(context.Background(), node, runCtx)

		e.mu.Lock()
		ended := time.Now()
		ns.EndedAt = &ended
		if err != nil {
			ns.Status = models.NodeFailed
			ns.Error = err.Error()
			appendLog(rs.run, models.LogError, "node failed: "+err.Error(), nodeID)
		} else {
			ns.Status = models.NodeCompleted
			ns.Output = result.Output
			appendLog(rs.run, models.LogInfo, "node completed", nodeID)
		}
		rs.run.CurrentNodeID = ""
		rs.run.Progress = progress(rs.run)
		e.mu.Unlock()
	}

	// A cancel or deadline crossing that arrived while the final node was
	// in flight has not been observed yet; it still wins over completion.
	e.mu.Lock()
	rs := e.runs[runID]

	if rs.cancelled {
		entry := e.stopRun(rs, "run cancelled")
		e.mu.Unlock()
		e.record(entry)
		return
	}
	if !rs.deadline.IsZero() && time.Now().After(rs.deadline) {
		appendLog(rs.run, models.LogWarning, "run timeout exceeded", "")
		entry := e.stopRun(rs, "run timed out")
		e.mu.Unlock()
		e.record(entry)
		return
	}

	status := models.RunCompleted
	for _, ns := range rs.run.NodeStates {
		if ns.Status == models.NodeFailed {
			status = models.RunFailed
			break
		}
	}
	entry := e.finalize(rs, status)
	e.mu.Unlock()

	e.record(entry)
}

// stopRun skips every node still pending and finalizes the run as
// cancelled. Callers hold the engine mutex; the in-flight node, if any,
// already finished its bookkeeping before this is reached.
func (e *Engine) stopRun(rs *runState, message string) models.HistoryEntry {
	for nodeID, ns := range rs.run.NodeStates {
		if ns.Status == models.NodePending {
			ns.Status = models.NodeSkipped
			appendLog(rs.run, models.LogInfo, "node skipped", nodeID)
		}
	}
	appendLog(rs.run, models.LogInfo, message, "")
	return e.finalize(rs, models.RunCancelled)
}

// finalize moves a run to its terminal status and projects the history
// entry. Callers hold the engine mutex.
func (e *Engine) finalize(rs *runState, status models.RunStatus) models.HistoryEntry {
	now := time.Now()
	run := rs.run
	run.Status = status
	run.EndTime = &now
	run.CurrentNodeID = ""
	run.Progress = progress(run)
	appendLog(run, models.LogInfo, "execution finished with status "+string(status), "")

	entry := models.HistoryEntry{
		ExecutionID:   run.ID,
		WorkflowID:    run.WorkflowID,
		Status:        status,
		StartTime:     run.StartTime,
		EndTime:       now,
		ExecutionTime: now.Sub(run.StartTime),
		NodeCount:     len(run.NodeStates),
	}
	for _, ns := range run.NodeStates {
		switch ns.Status {
		case models.NodeCompleted:
			entry.SuccessCount++
		case models.NodeFailed:
			entry.FailureCount++
			if entry.Error == "" {
				entry.Error = ns.Error
			}
		}
	}
	return entry
}

// record writes the history entry outside the engine mutex.
func (e *Engine) record(entry models.HistoryEntry) {
	if err := e.history.SaveHistory(entry); err != nil {
		log.Printf("failed to save history entry for execution %s: %v", entry.ExecutionID, err)
	}
}

// progress is the share of nodes in a terminal state, 0-100.
func progress(run *models.Run) float64 {
	if len(run.NodeStates) == 0 {
		return 0
	}
	terminal := 0
	for _, ns := range run.NodeStates {
		if ns.Status.Terminal() {
			terminal++
		}
	}
	return float64(terminal) / float64(len(run.NodeStates)) * 100
}

// appendLog attaches a log entry to a run. Callers hold the engine mutex
// (or own the run exclusively, as Start does before publishing it).
func appendLog(run *models.Run, level, message, nodeID string) {
	run.Logs = append(run.Logs, models.LogEntry{
		Timestamp: time.Now(),
		Level:     level,
		Message:   message,
		NodeID:    nodeID,
	})
}
