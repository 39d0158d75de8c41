package triggers

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tcmartin/flowexec/pkg/models"
)

// tickInterval is how often the schedule loop compares stored
// next-execution times against the clock.
const tickInterval = time.Second

// Manager owns the three trigger registries. Schedule triggers fire from
// a clock-watching loop, webhook triggers from HandleWebhook, event
// triggers from bus subscriptions; all three resolve the workflow's
// last-known graph and call the engine's Start.
type Manager struct {
	store   Store
	graphs  GraphSource
	engine  Starter
	baseURL string

	mu        sync.RWMutex
	schedules map[string]*models.ScheduleTrigger
	webhooks  map[string]*models.WebhookTrigger
	events    map[string]*models.EventTrigger

	stop     chan struct{}
	stopOnce sync.Once
}

// NewManager builds a manager, loading existing registrations from the
// store and subscribing to the event bus. baseURL is used to render
// webhook URLs in registration responses.
func NewManager(store Store, graphs GraphSource, engine Starter, bus *EventBus, baseURL string) (*Manager, error) {
	m := &Manager{
		store:     store,
		graphs:    graphs,
		engine:    engine,
		baseURL:   strings.TrimRight(baseURL, "/"),
		schedules: make(map[string]*models.ScheduleTrigger),
		webhooks:  make(map[string]*models.WebhookTrigger),
		events:    make(map[string]*models.EventTrigger),
		stop:      make(chan struct{}),
	}

	if err := m.load(); err != nil {
		return nil, err
	}
	if bus != nil {
		bus.Subscribe(m.handleEvent)
	}
	return m, nil
}

func (m *Manager) load() error {
	schedules, err := m.store.ListSchedules()
	if err != nil {
		return fmt.Errorf("failed to load schedule triggers: %w", err)
	}
	for i := range schedules {
		m.schedules[schedules[i].ID] = &schedules[i]
	}

	webhooks, err := m.store.ListWebhooks()
	if err != nil {
		return fmt.Errorf("failed to load webhook triggers: %w", err)
	}
	for i := range webhooks {
		m.webhooks[webhooks[i].ID] = &webhooks[i]
	}

	events, err := m.store.ListEvents()
	if err != nil {
		return fmt.Errorf("failed to load event triggers: %w", err)
	}
	for i := range events {
		m.events[events[i].ID] = &events[i]
	}
	return nil
}

// Run starts the schedule loop. It returns when Stop is called.
func (m *Manager) Run() {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case now := <-ticker.C:
			m.fireDue(now)
		}
	}
}

// Stop terminates the schedule loop. Safe to call more than once.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// RegisterSchedule validates and stores a schedule trigger, computing
// its first execution time.
func (m *Manager) RegisterSchedule(workflowID string, cfg models.ScheduleTrigger) (models.ScheduleTrigger, error) {
	cfg.ID = uuid.New().String()
	cfg.WorkflowID = workflowID
	cfg.CreatedAt = time.Now()

	next, err := NextExecution(cfg, cfg.CreatedAt)
	if err != nil {
		return models.ScheduleTrigger{}, err
	}
	cfg.NextExecution = next

	if err := m.store.SaveSchedule(cfg); err != nil {
		return models.ScheduleTrigger{}, err
	}

	m.mu.Lock()
	m.schedules[cfg.ID] = &cfg
	m.mu.Unlock()
	return cfg, nil
}

// RegisterWebhook stores a webhook trigger, assigning its path and a
// generated secret.
func (m *Manager) RegisterWebhook(workflowID string, cfg models.WebhookTrigger) (models.WebhookTrigger, error) {
	cfg.ID = uuid.New().String()
	cfg.WorkflowID = workflowID
	cfg.CreatedAt = time.Now()
	if cfg.Method == "" {
		cfg.Method = http.MethodPost
	}
	cfg.Path = "/hooks/" + cfg.ID
	cfg.URL = m.baseURL + cfg.Path
	if cfg.Secret == "" {
		secret, err := generateSecret()
		if err != nil {
			return models.WebhookTrigger{}, err
		}
		cfg.Secret = secret
	}

	if err := m.store.SaveWebhook(cfg); err != nil {
		return models.WebhookTrigger{}, err
	}

	m.mu.Lock()
	m.webhooks[cfg.ID] = &cfg
	m.mu.Unlock()
	return cfg, nil
}

// RegisterEvent stores an event trigger.
func (m *Manager) RegisterEvent(workflowID string, cfg models.EventTrigger) (models.EventTrigger, error) {
	if cfg.EventType == "" {
		return models.EventTrigger{}, fmt.Errorf("event trigger requires an event type")
	}
	cfg.ID = uuid.New().String()
	cfg.WorkflowID = workflowID
	cfg.CreatedAt = time.Now()

	if err := m.store.SaveEvent(cfg); err != nil {
		return models.EventTrigger{}, err
	}

	m.mu.Lock()
	m.events[cfg.ID] = &cfg
	m.mu.Unlock()
	return cfg, nil
}

// List returns every trigger registered for a workflow.
func (m *Manager) List(workflowID string) TriggerSet {
	m.mu.RLock()
	defer m.mu.RUnlock()

	set := TriggerSet{
		Schedules: []models.ScheduleTrigger{},
		Webhooks:  []models.WebhookTrigger{},
		Events:    []models.EventTrigger{},
	}
	for _, t := range m.schedules {
		if t.WorkflowID == workflowID {
			set.Schedules = append(set.Schedules, *t)
		}
	}
	for _, t := range m.webhooks {
		if t.WorkflowID == workflowID {
			set.Webhooks = append(set.Webhooks, *t)
		}
	}
	for _, t := range m.events {
		if t.WorkflowID == workflowID {
			set.Events = append(set.Events, *t)
		}
	}
	return set
}

// Remove deletes a trigger of any kind. Returns true if it existed.
func (m *Manager) Remove(triggerID string) bool {
	m.mu.Lock()
	_, inSchedules := m.schedules[triggerID]
	_, inWebhooks := m.webhooks[triggerID]
	_, inEvents := m.events[triggerID]
	delete(m.schedules, triggerID)
	delete(m.webhooks, triggerID)
	delete(m.events, triggerID)
	m.mu.Unlock()

	if _, err := m.store.DeleteTrigger(triggerID); err != nil {
		log.Printf("failed to delete trigger %s from store: %v", triggerID, err)
	}
	return inSchedules || inWebhooks || inEvents
}

// HandleWebhook fires the webhook trigger if method and secret match,
// returning the started execution ID.
func (m *Manager) HandleWebhook(triggerID, method, secret string) (string, error) {
	m.mu.RLock()
	t, ok := m.webhooks[triggerID]
	var trigger models.WebhookTrigger
	if ok {
		trigger = *t
	}
	m.mu.RUnlock()

	if !ok {
		return "", ErrTriggerNotFound
	}
	if !strings.EqualFold(trigger.Method, method) {
		return "", ErrMethodMismatch
	}
	if subtle.ConstantTimeCompare([]byte(trigger.Secret), []byte(secret)) != 1 {
		return "", ErrSecretMismatch
	}

	return m.startRun(trigger.WorkflowID, models.TriggerWebhook)
}

// fireDue starts a run for every schedule whose next execution has been
// crossed, then advances it.
func (m *Manager) fireDue(now time.Time) {
	m.mu.Lock()
	var due []models.ScheduleTrigger
	for id, t := range m.schedules {
		if !t.NextExecution.After(now) {
			due = append(due, *t)
			next, err := NextExecution(*t, now)
			if err != nil {
				// A past NextExecution that cannot advance would refire on
				// every tick. Disable the trigger for this process; the
				// stored registration survives for the next restart.
				log.Printf("disabling schedule trigger %s: cannot compute next execution: %v", t.ID, err)
				delete(m.schedules, id)
				continue
			}
			t.NextExecution = next
			if err := m.store.SaveSchedule(*t); err != nil {
				log.Printf("failed to persist schedule trigger %s: %v", t.ID, err)
			}
		}
	}
	m.mu.Unlock()

	for _, t := range due {
		if _, err := m.startRun(t.WorkflowID, models.TriggerSchedule); err != nil {
			log.Printf("schedule trigger %s failed to start workflow %s: %v", t.ID, t.WorkflowID, err)
		}
	}
}

// handleEvent fires every event trigger whose type and filter match.
func (m *Manager) handleEvent(evt models.Event) {
	m.mu.RLock()
	var matched []models.EventTrigger
	for _, t := range m.events {
		if matchesEvent(*t, evt) {
			matched = append(matched, *t)
		}
	}
	m.mu.RUnlock()

	for _, t := range matched {
		if _, err := m.startRun(t.WorkflowID, models.TriggerEvent); err != nil {
			log.Printf("event trigger %s failed to start workflow %s: %v", t.ID, t.WorkflowID, err)
		}
	}
}

func (m *Manager) startRun(workflowID, triggerType string) (string, error) {
	g, err := m.graphs.Get(workflowID)
	if err != nil {
		return "", fmt.Errorf("no known graph for workflow %s: %w", workflowID, err)
	}
	return m.engine.Start(g, workflowID, models.RunContext{TriggerType: triggerType})
}

func generateSecret() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate webhook secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
