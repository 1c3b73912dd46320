// Package store provides SQLite-based persistence for operation logs.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kilupskalvis/shoprestore/internal/models"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a log row does not exist.
var ErrNotFound = errors.New("log not found")

// Store represents the SQLite database store
type Store struct {
	db *sql.DB
}

// New creates a new store connection
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Initialize creates the database schema
func (s *Store) Initialize() error {
	schema := `
	-- Destructive operation log, one row per bulk action
	CREATE TABLE IF NOT EXISTS logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_name TEXT NOT NULL,
		operation TEXT NOT NULL,
		object_type TEXT NOT NULL DEFAULT '',
		time DATETIME DEFAULT CURRENT_TIMESTAMP,
		value JSON NOT NULL
	);

	CREATE TABLE IF NOT EXISTS shoprestore_schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE INDEX IF NOT EXISTS idx_logs_time ON logs(time);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	_, err = s.db.Exec("INSERT OR REPLACE INTO shoprestore_schema_version (version) VALUES (?)", currentSchemaVersion)
	if err != nil {
		return fmt.Errorf("failed to set schema version: %w", err)
	}

	return nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InsertLog stores a new log entry and returns its row id.
func (s *Store) InsertLog(ctx context.Context, entry *models.LogEntry) (int64, error) {
	value, err := json.Marshal(entry.Value)
	if err != nil {
		return 0, fmt.Errorf("marshal log value: %w", err)
	}
	ts := entry.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO logs (user_name, operation, object_type, time, value) VALUES (?, ?, ?, ?, ?)`,
		entry.UserName, entry.Operation, entry.ObjectType, ts.UTC().Format(time.RFC3339Nano), string(value),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert log: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read log id: %w", err)
	}
	entry.ID = id
	return id, nil
}

// ListLogs returns every log entry, newest first.
func (s *Store) ListLogs(ctx context.Context) ([]models.LogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_name, operation, object_type, time, value FROM logs ORDER BY time DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list logs: %w", err)
	}
	defer rows.Close()

	logs := []models.LogEntry{}
	for rows.Next() {
		entry, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, *entry)
	}
	return logs, rows.Err()
}

// GetLog returns a single log entry. Returns ErrNotFound if missing.
func (s *Store) GetLog(ctx context.Context, id int64) (*models.LogEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_name, operation, object_type, time, value FROM logs WHERE id = ?`, id)
	entry, err := scanLog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("log %d: %w", id, ErrNotFound)
	}
	return entry, err
}

// DeleteLog removes a log entry. Returns ErrNotFound if no row matched.
func (s *Store) DeleteLog(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM logs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete log: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete log: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("log %d: %w", id, ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLog(r rowScanner) (*models.LogEntry, error) {
	var (
		entry models.LogEntry
		ts    string
		value string
	)
	if err := r.Scan(&entry.ID, &entry.UserName, &entry.Operation, &entry.ObjectType, &ts, &value); err != nil {
		return nil, err
	}
	entry.Time = parseTimestamp(ts)
	if err := json.Unmarshal([]byte(value), &entry.Value); err != nil {
		return nil, fmt.Errorf("unmarshal log %d value: %w", entry.ID, err)
	}
	return &entry, nil
}

// parseTimestamp parses a timestamp string from SQLite in various formats
func parseTimestamp(s string) time.Time {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05-07:00",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05Z",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
