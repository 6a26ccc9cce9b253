package db

import (
	"testing"
)

func ftsMatches(t *testing.T, database *DB, table, query string) []string {
	t.Helper()

	rows, err := database.Query(`
		SELECT m.uuid
		FROM messages m
		JOIN `+table+` ON `+table+`.rowid = m.id
		WHERE `+table+` MATCH ?
		ORDER BY m.sequence
	`, query)
	if err != nil {
		t.Fatalf("FTS query %q failed: %v", query, err)
	}
	defer func() { _ = rows.Close() }()

	var uuids []string
	for rows.Next() {
		var uuid string
		if err := rows.Scan(&uuid); err != nil {
			t.Fatalf("Scan failed: %v", err)
		}
		uuids = append(uuids, uuid)
	}
	return uuids
}

func TestFTSSearch(t *testing.T) {
	database := newTestDB(t)
	sessionID := insertSession(t, database, "test-session-123", "/test/project", "2025-01-01T00:00:00Z")

	messages := []struct {
		uuid    string
		content string
	}{
		{"msg-1", "Hello world this is a test"},
		{"msg-2", "Let's write some authentication code"},
		{"msg-3", "The getUserById function returns a user"},
		{"msg-4", "camelCaseVariable should be preserved"},
	}
	for i, msg := range messages {
		insertMessage(t, database, sessionID, msg.uuid, "user", msg.content, i+1)
	}

	tests := []struct {
		name  string
		table string
		query string
		want  string
	}{
		{"PorterStemming", "messages_fts", "authentications", "msg-2"},
		{"CodeSearch", "messages_fts_code", "camelCase*", "msg-4"},
		{"PhraseSearch", "messages_fts", `"Hello world"`, "msg-1"},
		{"WildcardSearch", "messages_fts_code", "getUser*", "msg-3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ftsMatches(t, database, tt.table, tt.query)
			if len(got) != 1 || got[0] != tt.want {
				t.Errorf("MATCH %q = %v, want [%s]", tt.query, got, tt.want)
			}
		})
	}
}

func TestFTSTriggers(t *testing.T) {
	database := newTestDB(t)
	sessionID := insertSession(t, database, "test-session", "/test", "2025-01-01T00:00:00Z")
	msgID := insertMessage(t, database, sessionID, "msg-1", "user", "original content", 1)

	if got := ftsMatches(t, database, "messages_fts_code", "original"); len(got) != 1 {
		t.Errorf("Expected 1 hit after insert, got %v", got)
	}

	if _, err := database.Exec("UPDATE messages SET text_content = ? WHERE id = ?", "updated content", msgID); err != nil {
		t.Fatal(err)
	}

	if got := ftsMatches(t, database, "messages_fts", "updated"); len(got) != 1 {
		t.Errorf("Expected 1 hit for updated content, got %v", got)
	}
	if got := ftsMatches(t, database, "messages_fts_code", "original"); len(got) != 0 {
		t.Errorf("Expected stale content to be gone from the index, got %v", got)
	}

	if _, err := database.Exec("DELETE FROM messages WHERE id = ?", msgID); err != nil {
		t.Fatal(err)
	}

	if got := ftsMatches(t, database, "messages_fts_code", "updated"); len(got) != 0 {
		t.Errorf("Expected 0 hits after delete, got %v", got)
	}
}
