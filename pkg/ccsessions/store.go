package ccsessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/neilberkman/ccdash/internal/core/models"
)

const (
	summaryMaxRunes = 100
	noSummary       = "No summary available"
)

// Store reads session logs from a Claude directory
type Store struct {
	Transport Transport
	Logger    *slog.Logger
}

// NewStore creates a store for the given transport
func NewStore(t Transport) *Store {
	return &Store{Transport: t, Logger: slog.Default()}
}

func (s *Store) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// ListSessions scans <claudeDir>/projects/*/*.jsonl and returns one entry per
// session file, most recent first. A missing projects directory yields an
// empty list. Files that cannot be read are skipped.
func (s *Store) ListSessions(ctx context.Context, claudeDir string) ([]models.SessionMeta, error) {
	projectsDir := filepath.Join(s.Transport.Resolve(claudeDir), "projects")

	projects, err := os.ReadDir(projectsDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []models.SessionMeta{}, nil
		}
		return nil, fmt.Errorf("failed to read projects dir: %w", err)
	}

	sessions := make([]models.SessionMeta, 0)
	for _, project := range projects {
		if !project.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		projectPath := DecodeProjectPath(project.Name())
		dir := filepath.Join(projectsDir, project.Name())

		files, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to read session dir: %w", err)
		}

		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".jsonl") {
				continue
			}

			entries, err := readEntries(filepath.Join(dir, f.Name()))
			if err != nil {
				s.logger().Warn("skipping session file", "path", filepath.Join(dir, f.Name()), "error", err)
				continue
			}

			sessions = append(sessions, BuildMeta(strings.TrimSuffix(f.Name(), ".jsonl"), projectPath, entries))
		}
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].LastTimestamp > sessions[j].LastTimestamp
	})

	return sessions, nil
}

// ReadSession returns the raw entries of one session file. Blank and
// unparseable lines are skipped.
func (s *Store) ReadSession(ctx context.Context, path string) ([]models.SessionEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return readEntries(s.Transport.Resolve(path))
}

func readEntries(path string) (entries []models.SessionEntry, err error) {
	file, ferr := os.Open(path)
	if ferr != nil {
		return nil, fmt.Errorf("failed to open file: %w", ferr)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close file: %w", cerr)
		}
	}()

	entries = make([]models.SessionEntry, 0)
	err = scanLines(file, func(_ int, line []byte) {
		var e models.SessionEntry
		if json.Unmarshal(line, &e) != nil {
			return
		}
		entries = append(entries, e)
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// BuildMeta derives catalog metadata from a session's entries
func BuildMeta(id, projectPath string, entries []models.SessionEntry) models.SessionMeta {
	meta := models.SessionMeta{
		ID:             id,
		ProjectPath:    projectPath,
		ProjectDisplay: ProjectDisplay(projectPath),
		Summary:        Summarize(entries),
		MessageCount:   len(entries),
	}
	if len(entries) > 0 {
		meta.LastTimestamp = entries[len(entries)-1].Timestamp
	}
	return meta
}

// Summarize returns the first text of the last assistant message, truncated
// to 100 characters.
func Summarize(entries []models.SessionEntry) string {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Type != string(models.MessageTypeAssistant) {
			continue
		}
		if text, ok := firstText(entries[i].Message); ok {
			return truncate(text, summaryMaxRunes)
		}
	}
	return noSummary
}

func firstText(message json.RawMessage) (string, bool) {
	var body models.MessageBody
	if len(message) == 0 || json.Unmarshal(message, &body) != nil || len(body.Content) == 0 {
		return "", false
	}

	var s string
	if json.Unmarshal(body.Content, &s) == nil {
		return s, true
	}

	var items []struct {
		Text *string `json:"text"`
	}
	if json.Unmarshal(body.Content, &items) != nil {
		return "", false
	}
	for _, item := range items {
		if item.Text != nil {
			return *item.Text, true
		}
	}
	return "", false
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
