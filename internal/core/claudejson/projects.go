package claudejson

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/neilberkman/ccdash/pkg/ccsessions"
)

// ModelUsage is token and cost usage for one model
type ModelUsage struct {
	InputTokens              int64   `json:"inputTokens"`
	OutputTokens             int64   `json:"outputTokens"`
	CacheReadInputTokens     int64   `json:"cacheReadInputTokens"`
	CacheCreationInputTokens int64   `json:"cacheCreationInputTokens"`
	CostUSD                  float64 `json:"costUSD,omitempty"`
}

// ProjectMetrics is what the CLI recorded for a project's last session,
// with token totals taken from the project's session logs when they have any
type ProjectMetrics struct {
	Path                string                `json:"project_path"`
	GithubRepo          string                `json:"github_repo,omitempty"`
	LastCost            *float64              `json:"last_cost,omitempty"`
	LastDurationMs      *int64                `json:"last_duration_ms,omitempty"`
	LastLinesAdded      *int64                `json:"last_lines_added,omitempty"`
	LastLinesRemoved    *int64                `json:"last_lines_removed,omitempty"`
	InputTokens         int64                 `json:"input_tokens"`
	OutputTokens        int64                 `json:"output_tokens"`
	CacheReadTokens     int64                 `json:"cache_read_tokens"`
	CacheCreationTokens int64                 `json:"cache_creation_tokens"`
	Sessions            int                   `json:"sessions"`
	ModelUsage          map[string]ModelUsage `json:"model_usage,omitempty"`
}

// logLine is the part of a session log line the stats readers look at
type logLine struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Timestamp string `json:"timestamp"`
	Message   struct {
		Model   string          `json:"model"`
		Content json.RawMessage `json:"content"`
		Usage   *struct {
			InputTokens              int64 `json:"input_tokens"`
			OutputTokens             int64 `json:"output_tokens"`
			CacheReadInputTokens     int64 `json:"cache_read_input_tokens"`
			CacheCreationInputTokens int64 `json:"cache_creation_input_tokens"`
		} `json:"usage"`
	} `json:"message"`
}

type logTotals struct {
	input, output, cacheRead, cacheCreation int64
	sessions                                map[string]struct{}
}

// ProjectMetrics lists every project in ~/.claude.json, sorted by path. A
// missing claude.json yields no projects.
func (r *Reader) ProjectMetrics(ctx context.Context) ([]ProjectMetrics, error) {
	cfg, err := r.Load()
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	repoByPath := make(map[string]string)
	for repo, paths := range cfg.GithubRepoPaths {
		for _, p := range paths {
			repoByPath[p] = repo
		}
	}

	totals, err := r.logTotals(ctx, lo.Keys(cfg.Projects))
	if err != nil {
		return nil, err
	}

	out := make([]ProjectMetrics, 0, len(cfg.Projects))
	for path, p := range cfg.Projects {
		m := ProjectMetrics{
			Path:                path,
			GithubRepo:          repoByPath[path],
			LastCost:            p.LastCost,
			LastDurationMs:      p.LastDuration,
			LastLinesAdded:      p.LastLinesAdded,
			LastLinesRemoved:    p.LastLinesRemoved,
			InputTokens:         p.LastTotalInputTokens,
			OutputTokens:        p.LastTotalOutputTokens,
			CacheReadTokens:     p.LastTotalCacheReadInputTokens,
			CacheCreationTokens: p.LastTotalCacheCreationInputTokens,
			ModelUsage:          p.LastModelUsage,
		}
		if t, ok := totals[path]; ok {
			// the logs cover every session, the recorded fields only the last one
			if t.input > 0 || t.output > 0 {
				m.InputTokens = t.input
				m.OutputTokens = t.output
			}
			if t.cacheRead > 0 {
				m.CacheReadTokens = t.cacheRead
			}
			if t.cacheCreation > 0 {
				m.CacheCreationTokens = t.cacheCreation
			}
			m.Sessions = len(t.sessions)
		}
		out = append(out, m)
	}

	slices.SortFunc(out, func(a, b ProjectMetrics) int { return strings.Compare(a.Path, b.Path) })
	return out, nil
}

// cliSlug is the folder name newer CLI versions use, which also replaces
// spaces and commas
func cliSlug(path string) string {
	return strings.NewReplacer("/", "-", " ", "-", ",", "-").Replace(path)
}

// logTotals sums assistant token usage per project folder under projects/
func (r *Reader) logTotals(ctx context.Context, projectPaths []string) (map[string]*logTotals, error) {
	byFolder := make(map[string]string, len(projectPaths)*2)
	for _, p := range projectPaths {
		byFolder[ccsessions.EncodeProjectPath(p)] = p
		byFolder[cliSlug(p)] = p
	}

	entries, err := os.ReadDir(r.projectsDir())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	totals := make(map[string]*logTotals)
	for _, e := range entries {
		if !e.IsDir() || e.Name() == "memory" {
			continue
		}
		path, ok := byFolder[e.Name()]
		if !ok {
			continue
		}
		t := totals[path]
		if t == nil {
			t = &logTotals{sessions: make(map[string]struct{})}
			totals[path] = t
		}
		err := walkLogs(ctx, filepath.Join(r.projectsDir(), e.Name()), func(l *logLine) {
			switch l.Type {
			case "user":
				if l.SessionID != "" {
					t.sessions[l.SessionID] = struct{}{}
				}
			case "assistant":
				if u := l.Message.Usage; u != nil {
					t.input += u.InputTokens
					t.output += u.OutputTokens
					t.cacheRead += u.CacheReadInputTokens
					t.cacheCreation += u.CacheCreationInputTokens
				}
			}
		})
		if err != nil {
			return nil, err
		}
	}
	return totals, nil
}

// walkLogs decodes every line of every .jsonl file under root. Lines that
// don't parse are skipped, as are unreadable files.
func walkLogs(ctx context.Context, root string, fn func(*logLine)) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if d.Name() == "memory" {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".jsonl" {
			return nil
		}
		_ = ccsessions.ScanFile(path, func(line []byte) {
			var l logLine
			if json.Unmarshal(line, &l) == nil {
				fn(&l)
			}
		})
		return nil
	})
}
