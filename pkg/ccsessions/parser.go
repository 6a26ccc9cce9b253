package ccsessions

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/neilberkman/ccdash/internal/core/models"
)

// ParsedSession represents a fully parsed session file
type ParsedSession struct {
	SessionID string
	Summary   string
	LeafUUID  string
	Messages  []ParsedMessage
	Entries   []models.SessionEntry
	FilePath  string
	FileSize  int64
	FileMtime time.Time
}

// ParsedMessage represents a parsed JSONL message entry
type ParsedMessage struct {
	UUID        string
	ParentUUID  string
	Type        string
	Sender      string
	Content     json.RawMessage
	TextContent string
	Timestamp   time.Time
	RawTime     string
	Sequence    int
	IsSidechain bool
	CWD         string
	GitBranch   string
}

// rawEntry represents a raw JSONL line
type rawEntry struct {
	Type        string          `json:"type"`
	Summary     string          `json:"summary,omitempty"`
	LeafUUID    string          `json:"leafUuid,omitempty"`
	UUID        string          `json:"uuid,omitempty"`
	ParentUUID  string          `json:"parentUuid,omitempty"`
	SessionID   string          `json:"sessionId,omitempty"`
	Message     json.RawMessage `json:"message,omitempty"`
	Timestamp   string          `json:"timestamp,omitempty"`
	IsSidechain bool            `json:"isSidechain,omitempty"`
	CWD         string          `json:"cwd,omitempty"`
	GitBranch   string          `json:"gitBranch,omitempty"`
}

// ParseFile parses a Claude Code session JSONL file for indexing.
// Lines that are not valid JSON are skipped with a warning.
func ParseFile(path string) (session *ParsedSession, err error) {
	file, ferr := os.Open(path)
	if ferr != nil {
		return nil, fmt.Errorf("failed to open file: %w", ferr)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close file: %w", cerr)
		}
	}()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	sessionID := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	session = &ParsedSession{
		SessionID: sessionID,
		FilePath:  path,
		FileSize:  info.Size(),
		FileMtime: info.ModTime(),
		Messages:  make([]ParsedMessage, 0),
		Entries:   make([]models.SessionEntry, 0),
	}

	err = scanLines(file, func(lineNum int, line []byte) {
		var raw rawEntry
		if err := json.Unmarshal(line, &raw); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %s line %d: failed to parse JSON: %v\n", path, lineNum, err)
			return
		}
		session.Entries = append(session.Entries, models.SessionEntry{
			Type:      raw.Type,
			Message:   raw.Message,
			Timestamp: raw.Timestamp,
		})

		if raw.Type == "summary" {
			session.Summary = raw.Summary
			session.LeafUUID = raw.LeafUUID
			return
		}

		msg, err := parseMessage(&raw, lineNum)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %s line %d: %v\n", path, lineNum, err)
			return
		}
		session.Messages = append(session.Messages, *msg)
	})
	if err != nil {
		return nil, err
	}

	return session, nil
}

// scanLines feeds every non-blank line to fn. Lines can be very long when
// they carry tool output, so the buffer grows up to 10MB.
func scanLines(r io.Reader, fn func(lineNum int, line []byte)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 10*1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		fn(lineNum, line)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading file: %w", err)
	}
	return nil
}

// ScanFile calls fn for every non-blank line of a JSONL file
func ScanFile(path string, fn func(line []byte)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()
	return scanLines(f, func(_ int, line []byte) { fn(line) })
}

func parseMessage(raw *rawEntry, sequence int) (*ParsedMessage, error) {
	msg := &ParsedMessage{
		UUID:        raw.UUID,
		ParentUUID:  raw.ParentUUID,
		Type:        raw.Type,
		Sequence:    sequence,
		IsSidechain: raw.IsSidechain,
		CWD:         raw.CWD,
		GitBranch:   raw.GitBranch,
		Content:     raw.Message,
		RawTime:     raw.Timestamp,
	}

	if raw.Timestamp != "" {
		t, err := time.Parse(time.RFC3339, raw.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp: %w", err)
		}
		msg.Timestamp = t
	}

	switch raw.Type {
	case "user":
		msg.Sender = "human"
		msg.TextContent = ExtractText(raw.Message)
	case "assistant":
		msg.Sender = "assistant"
		msg.TextContent = ExtractText(raw.Message)
	case "system", "file-history-snapshot", "queue-operation":
		// no extractable text
	default:
		msg.Sender = "unknown"
	}

	return msg, nil
}

// ExtractText returns the searchable text of a message payload: the content
// string itself, or every text item of a content array joined by newlines.
func ExtractText(message json.RawMessage) string {
	if len(message) == 0 {
		return ""
	}

	var body struct {
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(message, &body); err != nil || len(body.Content) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(body.Content, &s); err == nil {
		return s
	}

	var items []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body.Content, &items); err != nil {
		return ""
	}

	var parts []string
	for _, item := range items {
		if item.Type == "text" && item.Text != "" {
			parts = append(parts, item.Text)
		}
	}
	return strings.Join(parts, "\n")
}
