package models

import "time"

// TriggerKind identifies which registry a trigger belongs to.
type TriggerKind string

// Trigger kinds
const (
	TriggerKindSchedule TriggerKind = "schedule"
	TriggerKindWebhook  TriggerKind = "webhook"
	TriggerKindEvent    TriggerKind = "event"
)

// ScheduleTrigger starts new runs when the clock crosses NextExecution.
// Triggers are created at registration and stay active until explicitly
// removed; they never auto-expire.
type ScheduleTrigger struct {
	// ID of the trigger
	ID string `json:"id"`

	// WorkflowID the trigger starts
	WorkflowID string `json:"workflow_id"`

	// Frequency of the schedule: "daily", "weekly", "monthly" or "custom"
	Frequency string `json:"frequency"`

	// Time of day in "HH:MM" (24h) for daily/weekly/monthly schedules
	Time string `json:"time,omitempty"`

	// Timezone is an IANA zone name, defaulting to UTC
	Timezone string `json:"timezone,omitempty"`

	// DaysOfWeek for weekly schedules (0 = Sunday)
	DaysOfWeek []int `json:"days_of_week,omitempty"`

	// DaysOfMonth for monthly schedules (1-31)
	DaysOfMonth []int `json:"days_of_month,omitempty"`

	// CronExpression for custom schedules
	CronExpression string `json:"cron_expression,omitempty"`

	// NextExecution is the next time the trigger fires
	NextExecution time.Time `json:"next_execution"`

	// CreatedAt is when the trigger was registered
	CreatedAt time.Time `json:"created_at"`
}

// WebhookTrigger starts new runs on a matching inbound HTTP request.
type WebhookTrigger struct {
	// ID of the trigger
	ID string `json:"id"`

	// WorkflowID the trigger starts
	WorkflowID string `json:"workflow_id"`

	// Method the inbound request must use
	Method string `json:"method"`

	// Path the trigger is served on
	Path string `json:"path"`

	// URL is the full inbound URL, returned at registration
	URL string `json:"url,omitempty"`

	// Secret the inbound request must present
	Secret string `json:"secret"`

	// CreatedAt is when the trigger was registered
	CreatedAt time.Time `json:"created_at"`
}

// EventTrigger starts new runs when an internal bus event matches its
// filter. Filter matching is simple field equality.
type EventTrigger struct {
	// ID of the trigger
	ID string `json:"id"`

	// WorkflowID the trigger starts
	WorkflowID string `json:"workflow_id"`

	// EventType the trigger listens for
	EventType string `json:"event_type"`

	// Filter is a set of field/value pairs the event must carry
	Filter map[string]interface{} `json:"filter,omitempty"`

	// CreatedAt is when the trigger was registered
	CreatedAt time.Time `json:"created_at"`
}

// Event is a message on the internal event bus.
type Event struct {
	// Type of the event
	Type string `json:"type"`

	// Timestamp of the event
	Timestamp time.Time `json:"timestamp"`

	// Fields carries event payload used for trigger filter matching
	Fields map[string]interface{} `json:"fields,omitempty"`
}
