// Package triggers registers schedule, webhook and event triggers and
// starts engine runs when they fire. Triggers hold no execution state of
// their own; they are "when X, call start" adapters.
package triggers

import (
	"errors"

	"github.com/tcmartin/flowexec/pkg/models"
)

// Errors returned by the trigger manager and stores
var (
	ErrTriggerNotFound = errors.New("trigger not found")
	ErrSecretMismatch  = errors.New("webhook secret mismatch")
	ErrMethodMismatch  = errors.New("webhook method mismatch")
)

// Starter is the engine surface the trigger manager needs.
type Starter interface {
	Start(g models.Graph, workflowID string, runCtx models.RunContext) (string, error)
}

// GraphSource supplies the last-known graph for a workflow.
type GraphSource interface {
	Get(workflowID string) (models.Graph, error)
}

// Store persists trigger registrations. Registrations survive as long as
// the backend does; the manager loads them at construction.
type Store interface {
	// SaveSchedule persists a schedule trigger (insert or update)
	SaveSchedule(t models.ScheduleTrigger) error

	// SaveWebhook persists a webhook trigger
	SaveWebhook(t models.WebhookTrigger) error

	// SaveEvent persists an event trigger
	SaveEvent(t models.EventTrigger) error

	// ListSchedules returns all schedule triggers
	ListSchedules() ([]models.ScheduleTrigger, error)

	// ListWebhooks returns all webhook triggers
	ListWebhooks() ([]models.WebhookTrigger, error)

	// ListEvents returns all event triggers
	ListEvents() ([]models.EventTrigger, error)

	// DeleteTrigger removes a trigger of any kind by ID
	DeleteTrigger(id string) (bool, error)

	// Close cleans up resources
	Close() error
}

// TriggerSet is every trigger registered for one workflow.
type TriggerSet struct {
	Schedules []models.ScheduleTrigger `json:"schedules"`
	Webhooks  []models.WebhookTrigger  `json:"webhooks"`
	Events    []models.EventTrigger    `json:"events"`
}
