package store

import (
	"database/sql"
	"fmt"
)

const currentSchemaVersion = 2

// RunMigrations applies any pending database migrations
func (s *Store) RunMigrations() error {
	version, err := s.getSchemaVersion()
	if err != nil {
		return err
	}

	if version < 2 {
		if err := s.migrateToV2(); err != nil {
			return fmt.Errorf("migration to v2 failed: %w", err)
		}
	}

	return nil
}

// getSchemaVersion returns the current schema version, 1 if not set
func (s *Store) getSchemaVersion() (int, error) {
	var tableName string
	err := s.db.QueryRow(`
		SELECT name FROM sqlite_master
		WHERE type='table' AND name='shoprestore_schema_version'
	`).Scan(&tableName)

	if err == sql.ErrNoRows {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}

	var version int
	err = s.db.QueryRow("SELECT COALESCE(MAX(version), 1) FROM shoprestore_schema_version").Scan(&version)
	if err != nil {
		return 1, nil
	}

	return version, nil
}

// migrateToV2 adds the object_type column and the time index. Logs written
// before v2 only recorded tag removals on products.
func (s *Store) migrateToV2() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS shoprestore_schema_version (
		version INTEGER PRIMARY KEY
	)`); err != nil {
		return err
	}

	if !s.columnExists("logs", "object_type") {
		if _, err := s.db.Exec(`ALTER TABLE logs ADD COLUMN object_type TEXT NOT NULL DEFAULT ''`); err != nil {
			return err
		}
		if _, err := s.db.Exec(`UPDATE logs SET object_type = 'Product' WHERE object_type = ''`); err != nil {
			return err
		}
	}

	if _, err := s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_logs_time ON logs(time)`); err != nil {
		return err
	}

	_, err := s.db.Exec("INSERT OR REPLACE INTO shoprestore_schema_version (version) VALUES (?)", 2)
	return err
}

// columnExists checks if a column exists in a table
func (s *Store) columnExists(table, column string) bool {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM pragma_table_info(?)
		WHERE name = ?
	`, table, column).Scan(&count)
	return err == nil && count > 0
}

// Prepare creates the schema on a fresh database and migrates an existing one.
func (s *Store) Prepare() error {
	if s.tableExists("logs") {
		return s.RunMigrations()
	}
	return s.Initialize()
}

func (s *Store) tableExists(table string) bool {
	var name string
	err := s.db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
	return err == nil
}
