// Package claudejson reads the state Claude Code keeps next to its session
// logs: ~/.claude.json with per-project metrics, MCP servers and the signed-in
// account, and ~/.claude/stats-cache.json with usage history.
package claudejson

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// ErrNotFound is returned when ~/.claude.json does not exist
var ErrNotFound = errors.New("claude.json not found")

// Config is the subset of ~/.claude.json ccdash reads
type Config struct {
	Projects        map[string]Project     `json:"projects"`
	MCPServers      map[string]serverEntry `json:"mcpServers"`
	OAuthAccount    *Account               `json:"oauthAccount"`
	GithubRepoPaths map[string][]string    `json:"githubRepoPaths"`
}

// Project is one entry of the "projects" map, keyed by working directory
type Project struct {
	LastCost                          *float64               `json:"lastCost"`
	LastDuration                      *int64                 `json:"lastDuration"`
	LastLinesAdded                    *int64                 `json:"lastLinesAdded"`
	LastLinesRemoved                  *int64                 `json:"lastLinesRemoved"`
	LastTotalInputTokens              int64                  `json:"lastTotalInputTokens"`
	LastTotalOutputTokens             int64                  `json:"lastTotalOutputTokens"`
	LastTotalCacheReadInputTokens     int64                  `json:"lastTotalCacheReadInputTokens"`
	LastTotalCacheCreationInputTokens int64                  `json:"lastTotalCacheCreationInputTokens"`
	LastModelUsage                    map[string]ModelUsage  `json:"lastModelUsage"`
	MCPServers                        map[string]serverEntry `json:"mcpServers"`
}

// Reader reads the files under one Claude directory. The directory is a host
// path, so a WSL share works the same as a native one.
type Reader struct {
	claudeDir string
	resolve   func(string) string
	logger    *slog.Logger
}

// New creates a reader for claudeDir (usually ~/.claude)
func New(claudeDir string) *Reader {
	return &Reader{
		claudeDir: claudeDir,
		resolve:   func(p string) string { return p },
		logger:    slog.Default(),
	}
}

// WithResolver maps project paths recorded by the CLI to host paths
func (r *Reader) WithResolver(fn func(string) string) *Reader {
	if fn != nil {
		r.resolve = fn
	}
	return r
}

// WithLogger sets the logger
func (r *Reader) WithLogger(l *slog.Logger) *Reader {
	r.logger = l
	return r
}

// ConfigPath is ~/.claude.json, the sibling of the Claude directory
func (r *Reader) ConfigPath() string {
	return filepath.Join(filepath.Dir(filepath.Clean(r.claudeDir)), ".claude.json")
}

// Load parses ~/.claude.json
func (r *Reader) Load() (*Config, error) {
	path := r.ConfigPath()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w at %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &cfg, nil
}

func (r *Reader) projectsDir() string {
	return filepath.Join(r.claudeDir, "projects")
}
