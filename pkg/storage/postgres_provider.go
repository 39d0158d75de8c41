package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/tcmartin/flowexec/pkg/models"
)

// PostgresHistoryStore implements HistoryStore using PostgreSQL.
type PostgresHistoryStore struct {
	db *sql.DB
}

// PostgresConfig contains configuration for the PostgreSQL store.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewPostgresHistoryStore connects to PostgreSQL and returns a history
// store backed by it.
func NewPostgresHistoryStore(config PostgresConfig) (*PostgresHistoryStore, error) {
	if config.Port == 0 {
		config.Port = 5432
	}
	if config.SSLMode == "" {
		config.SSLMode = "disable"
	}

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.Database, config.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	return &PostgresHistoryStore{db: db}, nil
}

// NewPostgresHistoryStoreWithDB wraps an existing connection, primarily
// for testing.
func NewPostgresHistoryStoreWithDB(db *sql.DB) *PostgresHistoryStore {
	return &PostgresHistoryStore{db: db}
}

// Initialize creates the history table if it doesn't exist
func (s *PostgresHistoryStore) Initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS execution_history (
			execution_id TEXT PRIMARY KEY,
			workflow_id TEXT NOT NULL,
			status TEXT NOT NULL,
			start_time TIMESTAMPTZ NOT NULL,
			end_time TIMESTAMPTZ NOT NULL,
			execution_time_ms BIGINT NOT NULL,
			node_count INT NOT NULL,
			success_count INT NOT NULL,
			failure_count INT NOT NULL,
			error TEXT
		);
		CREATE INDEX IF NOT EXISTS execution_history_workflow_idx
			ON execution_history (workflow_id, start_time DESC);
	`)
	if err != nil {
		return fmt.Errorf("failed to create execution_history table: %w", err)
	}
	return nil
}

// Close cleans up resources
func (s *PostgresHistoryStore) Close() error {
	return s.db.Close()
}

// SaveHistory appends a terminal run's summary
func (s *PostgresHistoryStore) SaveHistory(entry models.HistoryEntry) error {
	_, err := s.db.Exec(
		`INSERT INTO execution_history (
			execution_id, workflow_id, status, start_time, end_time,
			execution_time_ms, node_count, success_count, failure_count, error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ExecutionID,
		entry.WorkflowID,
		entry.Status,
		entry.StartTime,
		entry.EndTime,
		entry.ExecutionTime.Milliseconds(),
		entry.NodeCount,
		entry.SuccessCount,
		entry.FailureCount,
		entry.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to insert history entry: %w", err)
	}
	return nil
}

// GetHistory returns entries for a workflow, newest first
func (s *PostgresHistoryStore) GetHistory(workflowID string, query HistoryQuery) ([]models.HistoryEntry, error) {
	sqlQuery := `
		SELECT execution_id, workflow_id, status, start_time, end_time,
			execution_time_ms, node_count, success_count, failure_count, error
		FROM execution_history
		WHERE workflow_id = $1
			AND ($2 = '' OR status ILIKE '%' || $2 || '%' OR error ILIKE '%' || $2 || '%')
		ORDER BY start_time DESC
		OFFSET $3`
	args := []interface{}{workflowID, query.Filter, query.Offset}
	if query.Limit > 0 {
		sqlQuery += " LIMIT $4"
		args = append(args, query.Limit)
	}

	rows, err := s.db.Query(sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []models.HistoryEntry
	for rows.Next() {
		var entry models.HistoryEntry
		var execMillis int64
		var errText sql.NullString
		if err := rows.Scan(
			&entry.ExecutionID,
			&entry.WorkflowID,
			&entry.Status,
			&entry.StartTime,
			&entry.EndTime,
			&execMillis,
			&entry.NodeCount,
			&entry.SuccessCount,
			&entry.FailureCount,
			&errText,
		); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entry.ExecutionTime = time.Duration(execMillis) * time.Millisecond
		entry.Error = errText.String
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}
