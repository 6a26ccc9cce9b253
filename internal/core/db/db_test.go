package db

import (
	"context"
	"errors"
	"os"
	"testing"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	tmpfile, err := os.CreateTemp("", "test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Remove(tmpfile.Name()) })
	_ = tmpfile.Close()

	database, err := New(tmpfile.Name())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	return database
}

func insertSession(t *testing.T, database *DB, sessionID, projectPath, lastTimestamp string) int64 {
	t.Helper()

	result, err := database.Exec(`
		INSERT INTO sessions (
			session_id, project_path, project_display, summary, last_timestamp, message_count, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, 2, datetime('now'), datetime('now'))
	`, sessionID, projectPath, "test/project", "Test session", lastTimestamp)
	if err != nil {
		t.Fatalf("Failed to insert session: %v", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		t.Fatalf("Failed to get session ID: %v", err)
	}
	return id
}

func insertMessage(t *testing.T, database *DB, sessionID int64, uuid, msgType, text string, seq int) int64 {
	t.Helper()

	result, err := database.Exec(`
		INSERT INTO messages (
			uuid, session_id, type, text_content, timestamp, sequence
		) VALUES (?, ?, ?, ?, datetime('now'), ?)
	`, uuid, sessionID, msgType, text, seq)
	if err != nil {
		t.Fatalf("Failed to insert message %s: %v", uuid, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func TestNew(t *testing.T) {
	database := newTestDB(t)

	var count int
	err := database.conn.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table'").Scan(&count)
	if err != nil {
		t.Fatalf("Failed to query schema: %v", err)
	}

	// sessions, messages, import_log, kv, messages_fts, messages_fts_code
	if count < 6 {
		t.Errorf("Expected at least 6 tables, got %d", count)
	}
}

func TestNew_Pragmas(t *testing.T) {
	database := newTestDB(t)

	var journalMode string
	if err := database.conn.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("Failed to query journal mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("Expected WAL mode, got %s", journalMode)
	}

	var fkEnabled int
	if err := database.conn.QueryRow("PRAGMA foreign_keys").Scan(&fkEnabled); err != nil {
		t.Fatalf("Failed to query foreign keys: %v", err)
	}
	if fkEnabled != 1 {
		t.Errorf("Expected foreign keys enabled (1), got %d", fkEnabled)
	}
}

func TestNew_Reopen(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/nested/ccdash.db"

	first, err := New(path)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	insertSession(t, first, "s1", "/p", "2025-01-01T00:00:00Z")
	_ = first.Close()

	// migrations must be idempotent
	second, err := New(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer func() { _ = second.Close() }()

	var count int
	if err := second.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("Expected 1 session after reopen, got %d", count)
	}
}

func TestSchemaCreation(t *testing.T) {
	database := newTestDB(t)

	tests := []struct {
		table string
		min   int
	}{
		{"sessions", 15},
		{"messages", 13},
		{"kv", 3},
	}

	for _, tt := range tests {
		var columnCount int
		err := database.conn.QueryRow("SELECT COUNT(*) FROM pragma_table_info(?)", tt.table).Scan(&columnCount)
		if err != nil {
			t.Fatalf("Failed to query %s columns: %v", tt.table, err)
		}
		if columnCount < tt.min {
			t.Errorf("Expected at least %d columns in %s, got %d", tt.min, tt.table, columnCount)
		}
	}
}

func TestSessionIdentity(t *testing.T) {
	database := newTestDB(t)

	insertSession(t, database, "same-id", "/project/a", "2025-01-01T00:00:00Z")
	insertSession(t, database, "same-id", "/project/b", "2025-01-02T00:00:00Z")

	// same ID and project is a conflict
	_, err := database.Exec(`INSERT INTO sessions (session_id, project_path) VALUES (?, ?)`, "same-id", "/project/a")
	if err == nil {
		t.Error("Expected unique constraint error, got nil")
	}
}

func TestForeignKeyConstraint(t *testing.T) {
	database := newTestDB(t)

	_, err := database.Exec(`
		INSERT INTO messages (
			uuid, session_id, type, text_content, timestamp, sequence
		) VALUES (?, ?, ?, ?, datetime('now'), ?)
	`, "msg-123", 99999, "user", "Hello", 1)

	if err == nil {
		t.Error("Expected foreign key constraint error, got nil")
	}
}

func TestCascadeDelete(t *testing.T) {
	database := newTestDB(t)

	sessionID := insertSession(t, database, "test-session-123", "/test/project", "2025-01-01T00:00:00Z")
	insertMessage(t, database, sessionID, "msg-123", "user", "Hello world", 1)

	if _, err := database.Exec("DELETE FROM sessions WHERE id = ?", sessionID); err != nil {
		t.Fatalf("Failed to delete session: %v", err)
	}

	var msgCount int
	err := database.conn.QueryRow("SELECT COUNT(*) FROM messages WHERE session_id = ?", sessionID).Scan(&msgCount)
	if err != nil {
		t.Fatalf("Failed to count messages: %v", err)
	}
	if msgCount != 0 {
		t.Errorf("Expected 0 messages after cascade delete, got %d", msgCount)
	}

	var hits int
	err = database.conn.QueryRow("SELECT COUNT(*) FROM messages_fts_code WHERE messages_fts_code MATCH 'hello'").Scan(&hits)
	if err != nil {
		t.Fatalf("Failed to query FTS: %v", err)
	}
	if hits != 0 {
		t.Errorf("Expected 0 FTS hits after cascade delete, got %d", hits)
	}
}

func TestListSessions(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	insertSession(t, database, "old", "/work/api", "2025-01-01T00:00:00Z")
	insertSession(t, database, "new", "/work/web", "2025-02-01T00:00:00Z")

	sessions, err := database.ListSessions(ctx, "", 0)
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("Expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].ID != "new" {
		t.Errorf("Expected most recent first, got %s", sessions[0].ID)
	}

	filtered, err := database.ListSessions(ctx, "api", 0)
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	if len(filtered) != 1 || filtered[0].ID != "old" {
		t.Errorf("Expected only 'old', got %+v", filtered)
	}
}

func TestGetSessionLaunchInfo(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	id := insertSession(t, database, "s1", "/work/api", "2025-01-01T00:00:00Z")
	_, err := database.Exec(`INSERT INTO messages (session_id, type, sequence, cwd) VALUES (?, 'user', 1, '/work/api/cmd')`, id)
	if err != nil {
		t.Fatal(err)
	}

	meta, cwd, err := database.GetSessionLaunchInfo(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSessionLaunchInfo() error = %v", err)
	}
	if meta.ProjectPath != "/work/api" {
		t.Errorf("ProjectPath = %s", meta.ProjectPath)
	}
	if cwd != "/work/api/cmd" {
		t.Errorf("cwd = %s, want /work/api/cmd", cwd)
	}

	_, _, err = database.GetSessionLaunchInfo(ctx, "missing")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestKV(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	if _, err := database.GetValue(ctx, "token"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("Expected ErrKeyNotFound, got %v", err)
	}

	if err := database.SetValue(ctx, "token", `"a"`); err != nil {
		t.Fatal(err)
	}
	if err := database.SetValue(ctx, "token", `"b"`); err != nil {
		t.Fatal(err)
	}

	got, err := database.GetValue(ctx, "token")
	if err != nil {
		t.Fatal(err)
	}
	if got != `"b"` {
		t.Errorf("GetValue() = %s, want \"b\"", got)
	}

	if err := database.DeleteValue(ctx, "token"); err != nil {
		t.Fatal(err)
	}
	if err := database.DeleteValue(ctx, "token"); err != nil {
		t.Errorf("deleting a missing key should not fail: %v", err)
	}
}

func TestGetStats(t *testing.T) {
	database := newTestDB(t)

	id := insertSession(t, database, "s1", "/work/api", "2025-01-01T00:00:00Z")
	insertSession(t, database, "s2", "/work/api", "2025-01-02T00:00:00Z")
	insertMessage(t, database, id, "m1", "user", "hello", 1)

	stats, err := database.GetStats()
	if err != nil {
		t.Fatalf("GetStats() error = %v", err)
	}
	if stats.TotalSessions != 2 || stats.TotalProjects != 1 || stats.TotalMessages != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.MostActiveProject != "/work/api" || stats.MostActiveProjectCount != 2 {
		t.Errorf("unexpected most active project: %s (%d)", stats.MostActiveProject, stats.MostActiveProjectCount)
	}
}
