package storage

import (
	"sort"
	"sync"

	"github.com/tcmartin/flowexec/pkg/models"
)

// MemoryHistoryStore implements HistoryStore with in-memory storage. It
// is the default backend; history then lives only as long as the process.
type MemoryHistoryStore struct {
	entries map[string][]models.HistoryEntry
	ids     map[string]bool
	mu      sync.RWMutex
}

// NewMemoryHistoryStore creates a new in-memory history store.
func NewMemoryHistoryStore() *MemoryHistoryStore {
	return &MemoryHistoryStore{
		entries: make(map[string][]models.HistoryEntry),
		ids:     make(map[string]bool),
	}
}

// Initialize sets up the storage backend
func (s *MemoryHistoryStore) Initialize() error {
	return nil
}

// Close cleans up resources
func (s *MemoryHistoryStore) Close() error {
	return nil
}

// SaveHistory appends a terminal run's summary
func (s *MemoryHistoryStore) SaveHistory(entry models.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ids[entry.ExecutionID] {
		return ErrDuplicateExecution
	}
	s.ids[entry.ExecutionID] = true
	s.entries[entry.WorkflowID] = append(s.entries[entry.WorkflowID], entry)
	return nil
}

// GetHistory returns entries for a workflow, newest first
func (s *MemoryHistoryStore) GetHistory(workflowID string, query HistoryQuery) ([]models.HistoryEntry, error) {
	s.mu.RLock()
	stored := s.entries[workflowID]
	matched := make([]models.HistoryEntry, 0, len(stored))
	for _, entry := range stored {
		if matchesFilter(entry, query.Filter) {
			matched = append(matched, entry)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].StartTime.After(matched[j].StartTime)
	})

	return paginate(matched, query), nil
}
