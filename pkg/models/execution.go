package models

import "time"

// RunStatus represents the lifecycle state of a run.
type RunStatus string

// Run statuses
const (
	RunInitializing RunStatus = "initializing"
	RunRunning      RunStatus = "running"
	RunCompleted    RunStatus = "completed"
	RunFailed       RunStatus = "failed"
	RunCancelled    RunStatus = "cancelled"
)

// Terminal reports whether the status is a final one.
func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunFailed || s == RunCancelled
}

// NodeStatus represents the lifecycle state of a single node within a run.
type NodeStatus string

// Node statuses
const (
	NodePending   NodeStatus = "pending"
	NodeRunning   NodeStatus = "running"
	NodeCompleted NodeStatus = "completed"
	NodeFailed    NodeStatus = "failed"
	NodeSkipped   NodeStatus = "skipped"
)

// Terminal reports whether the status is a final one.
func (s NodeStatus) Terminal() bool {
	return s == NodeCompleted || s == NodeFailed || s == NodeSkipped
}

// NodeState tracks one node's execution within a run. A terminal status is
// never overwritten.
type NodeState struct {
	// Status of the node
	Status NodeStatus `json:"status"`

	// StartedAt is when the node began executing
	StartedAt *time.Time `json:"started_at,omitempty"`

	// EndedAt is when the node reached a terminal status
	EndedAt *time.Time `json:"ended_at,omitempty"`

	// Output produced by the executor on success
	Output map[string]interface{} `json:"output,omitempty"`

	// Error message if the node failed
	Error string `json:"error,omitempty"`
}

// LogEntry is one append-only log line attached to a run.
type LogEntry struct {
	// Timestamp of the log entry
	Timestamp time.Time `json:"timestamp"`

	// Level of the log entry
	Level string `json:"level"` // "info", "warning", "error", "debug"

	// Message is the log message
	Message string `json:"message"`

	// NodeID is the node that produced the entry, if any
	NodeID string `json:"node_id,omitempty"`
}

// Log levels
const (
	LogInfo    = "info"
	LogWarning = "warning"
	LogError   = "error"
	LogDebug   = "debug"
)

// RunContext carries optional trigger metadata and input into a run.
// Absent fields default to a manual, normal-priority run with no timeout.
type RunContext struct {
	// TriggerType records what started the run: "manual", "schedule",
	// "webhook" or "event"
	TriggerType string `json:"trigger_type,omitempty"`

	// Priority of the run
	Priority string `json:"priority,omitempty"`

	// Timeout is an optional run-level deadline; zero means none
	Timeout time.Duration `json:"timeout,omitempty"`

	// Input passed through to every node executor
	Input map[string]interface{} `json:"input,omitempty"`
}

// Trigger types and defaults for absent RunContext fields
const (
	TriggerManual   = "manual"
	TriggerSchedule = "schedule"
	TriggerWebhook  = "webhook"
	TriggerEvent    = "event"

	PriorityNormal = "normal"
)

// Normalize fills absent context fields with their defaults.
func (c RunContext) Normalize() RunContext {
	if c.TriggerType == "" {
		c.TriggerType = TriggerManual
	}
	if c.Priority == "" {
		c.Priority = PriorityNormal
	}
	return c
}

// Run is one execution instance of a workflow graph. It is created by the
// engine, mutated only by the engine's driving loop while live, and
// immutable once terminal.
type Run struct {
	// ID of the execution
	ID string `json:"id"`

	// WorkflowID is the ID of the workflow being executed
	WorkflowID string `json:"workflow_id"`

	// Status of the run
	Status RunStatus `json:"status"`

	// Progress of the run (0-100%)
	Progress float64 `json:"progress"`

	// StartTime is when the run was created
	StartTime time.Time `json:"start_time"`

	// EndTime is when the run reached a terminal status
	EndTime *time.Time `json:"end_time,omitempty"`

	// CurrentNodeID is the node currently executing, if any
	CurrentNodeID string `json:"current_node_id,omitempty"`

	// NodeStates holds per-node execution state keyed by node ID
	NodeStates map[string]*NodeState `json:"nodes"`

	// Logs is the append-only run log
	Logs []LogEntry `json:"logs"`

	// Context is the trigger metadata and input the run started with
	Context RunContext `json:"context"`
}

// Clone returns a deep copy of the run. The status path hands clones to
// callers so readers never observe a torn write from the driving loop.
func (r *Run) Clone() Run {
	out := *r
	if r.EndTime != nil {
		t := *r.EndTime
		out.EndTime = &t
	}
	out.NodeStates = make(map[string]*NodeState, len(r.NodeStates))
	for id, ns := range r.NodeStates {
		c := *ns
		if ns.StartedAt != nil {
			t := *ns.StartedAt
			c.StartedAt = &t
		}
		if ns.EndedAt != nil {
			t := *ns.EndedAt
			c.EndedAt = &t
		}
		if ns.Output != nil {
			c.Output = make(map[string]interface{}, len(ns.Output))
			for k, v := range ns.Output {
				c.Output[k] = v
			}
		}
		out.NodeStates[id] = &c
	}
	out.Logs = make([]LogEntry, len(r.Logs))
	copy(out.Logs, r.Logs)
	if r.Context.Input != nil {
		out.Context.Input = make(map[string]interface{}, len(r.Context.Input))
		for k, v := range r.Context.Input {
			out.Context.Input[k] = v
		}
	}
	return out
}

// HistoryEntry is the immutable summary of a terminal run.
type HistoryEntry struct {
	// ExecutionID of the run
	ExecutionID string `json:"execution_id"`

	// WorkflowID the run belonged to
	WorkflowID string `json:"workflow_id"`

	// Status the run ended with
	Status RunStatus `json:"status"`

	// StartTime of the run
	StartTime time.Time `json:"start_time"`

	// EndTime of the run
	EndTime time.Time `json:"end_time"`

	// ExecutionTime is the total wall-clock duration
	ExecutionTime time.Duration `json:"execution_time"`

	// NodeCount is the total number of nodes in the graph
	NodeCount int `json:"node_count"`

	// SuccessCount is the number of completed nodes
	SuccessCount int `json:"success_count"`

	// FailureCount is the number of failed nodes
	FailureCount int `json:"failure_count"`

	// Error summarizing the failure, if any
	Error string `json:"error,omitempty"`
}
