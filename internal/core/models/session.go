package models

import (
	"errors"
	"time"
)

// SessionMeta is the catalog entry for a single Claude Code session file
type SessionMeta struct {
	ID             string `json:"id"`
	ProjectPath    string `json:"project_path"`
	ProjectDisplay string `json:"project_display"`
	Summary        string `json:"summary"`
	LastTimestamp  string `json:"last_timestamp"` // ISO-8601, as written by the CLI
	MessageCount   int    `json:"message_count"`
}

// Validate checks if the session has required fields
func (s *SessionMeta) Validate() error {
	if s.ID == "" {
		return errors.New("id is required")
	}
	if s.ProjectPath == "" {
		return errors.New("project_path is required")
	}
	if s.MessageCount < 0 {
		return errors.New("message_count must not be negative")
	}
	return nil
}

// Key identifies a session across projects
func (s SessionMeta) Key() string {
	return s.ProjectPath + "/" + s.ID
}

// LastActivity parses LastTimestamp, returning the zero time when unparseable
func (s SessionMeta) LastActivity() time.Time {
	if s.LastTimestamp == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s.LastTimestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}

// SearchMatch is a per-session content search hit
type SearchMatch struct {
	Session     SessionMeta `json:"session"`
	MatchedText string      `json:"matched_text"`
	EntryType   string      `json:"entry_type"`
	MatchCount  int         `json:"match_count"`
}
