// Package storage provides persistence for execution history.
package storage

import (
	"errors"
	"strings"

	"github.com/tcmartin/flowexec/pkg/models"
)

// Errors returned by history stores
var (
	ErrDuplicateExecution = errors.New("history entry already recorded for execution")
)

// HistoryQuery narrows a history read.
type HistoryQuery struct {
	// Limit caps the number of entries returned; zero means no cap
	Limit int

	// Offset skips that many entries from the newest end
	Offset int

	// Filter is free text matched against status and error fields
	Filter string
}

// HistoryStore is an append-only ledger of terminal runs, keyed by
// workflow ID. Entries are written once when a run reaches a terminal
// status and never mutated afterwards.
type HistoryStore interface {
	// Initialize sets up the storage backend
	Initialize() error

	// Close cleans up resources
	Close() error

	// SaveHistory appends a terminal run's summary
	SaveHistory(entry models.HistoryEntry) error

	// GetHistory returns entries for a workflow, newest first
	GetHistory(workflowID string, query HistoryQuery) ([]models.HistoryEntry, error)
}

// matchesFilter applies a query's free-text filter to an entry's status
// and error fields.
func matchesFilter(entry models.HistoryEntry, filter string) bool {
	if filter == "" {
		return true
	}
	needle := strings.ToLower(filter)
	if strings.Contains(strings.ToLower(string(entry.Status)), needle) {
		return true
	}
	return strings.Contains(strings.ToLower(entry.Error), needle)
}

// paginate applies offset/limit to an already-sorted slice.
func paginate(entries []models.HistoryEntry, query HistoryQuery) []models.HistoryEntry {
	if query.Offset > 0 {
		if query.Offset >= len(entries) {
			return nil
		}
		entries = entries[query.Offset:]
	}
	if query.Limit > 0 && len(entries) > query.Limit {
		entries = entries[:query.Limit]
	}
	return entries
}
