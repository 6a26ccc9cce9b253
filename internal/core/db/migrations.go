package db

import (
	"fmt"
)

// migrate applies database migrations for existing databases
func (db *DB) migrate() error {
	// Migration 1: catalog columns added after the first release
	if err := db.migration001AddCatalogColumns(); err != nil {
		return fmt.Errorf("migration 001: %w", err)
	}

	// Migration 2: drop tables from the summarization era
	if err := db.migration002DropLegacyTables(); err != nil {
		return fmt.Errorf("migration 002: %w", err)
	}

	return nil
}

func (db *DB) hasColumn(table, column string) (bool, error) {
	var count int
	err := db.conn.QueryRow(`
		SELECT COUNT(*) FROM pragma_table_info(?)
		WHERE name = ?
	`, table, column).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// migration001AddCatalogColumns adds project_display, last_timestamp and
// file_path to sessions tables created before they existed
func (db *DB) migration001AddCatalogColumns() error {
	columns := []struct {
		name string
		ddl  string
	}{
		{"project_display", `ALTER TABLE sessions ADD COLUMN project_display TEXT`},
		{"last_timestamp", `ALTER TABLE sessions ADD COLUMN last_timestamp TEXT`},
		{"file_path", `ALTER TABLE sessions ADD COLUMN file_path TEXT`},
	}

	for _, c := range columns {
		exists, err := db.hasColumn("sessions", c.name)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if _, err := db.conn.Exec(c.ddl); err != nil {
			return fmt.Errorf("add %s column: %w", c.name, err)
		}
	}

	_, err := db.conn.Exec(`CREATE INDEX IF NOT EXISTS idx_sessions_file_path ON sessions(file_path)`)
	return err
}

// migration002DropLegacyTables removes tables nothing reads anymore
func (db *DB) migration002DropLegacyTables() error {
	for _, table := range []string{"tool_uses", "summary_chunks", "session_summaries", "llm_models", "session_issues", "session_files"} {
		if _, err := db.conn.Exec(fmt.Sprintf(`DROP TABLE IF EXISTS %s`, table)); err != nil {
			return fmt.Errorf("drop %s: %w", table, err)
		}
	}
	return nil
}
