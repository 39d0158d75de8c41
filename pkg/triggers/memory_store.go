package triggers

import (
	"sync"

	"github.com/tcmartin/flowexec/pkg/models"
)

// MemoryStore implements Store with in-memory maps.
type MemoryStore struct {
	mu        sync.RWMutex
	schedules map[string]models.ScheduleTrigger
	webhooks  map[string]models.WebhookTrigger
	events    map[string]models.EventTrigger
}

// NewMemoryStore creates an empty in-memory trigger store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		schedules: make(map[string]models.ScheduleTrigger),
		webhooks:  make(map[string]models.WebhookTrigger),
		events:    make(map[string]models.EventTrigger),
	}
}

// SaveSchedule persists a schedule trigger (insert or update)
func (s *MemoryStore) SaveSchedule(t models.ScheduleTrigger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules[t.ID] = t
	return nil
}

// SaveWebhook persists a webhook trigger
func (s *MemoryStore) SaveWebhook(t models.WebhookTrigger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.webhooks[t.ID] = t
	return nil
}

// SaveEvent persists an event trigger
func (s *MemoryStore) SaveEvent(t models.EventTrigger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[t.ID] = t
	return nil
}

// ListSchedules returns all schedule triggers
func (s *MemoryStore) ListSchedules() ([]models.ScheduleTrigger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ScheduleTrigger, 0, len(s.schedules))
	for _, t := range s.schedules {
		out = append(out, t)
	}
	return out, nil
}

// ListWebhooks returns all webhook triggers
func (s *MemoryStore) ListWebhooks() ([]models.WebhookTrigger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.WebhookTrigger, 0, len(s.webhooks))
	for _, t := range s.webhooks {
		out = append(out, t)
	}
	return out, nil
}

// ListEvents returns all event triggers
func (s *MemoryStore) ListEvents() ([]models.EventTrigger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.EventTrigger, 0, len(s.events))
	for _, t := range s.events {
		out = append(out, t)
	}
	return out, nil
}

// DeleteTrigger removes a trigger of any kind by ID
func (s *MemoryStore) DeleteTrigger(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.schedules[id]; ok {
		delete(s.schedules, id)
		return true, nil
	}
	if _, ok := s.webhooks[id]; ok {
		delete(s.webhooks, id)
		return true, nil
	}
	if _, ok := s.events[id]; ok {
		delete(s.events, id)
		return true, nil
	}
	return false, nil
}

// Close cleans up resources
func (s *MemoryStore) Close() error {
	return nil
}
