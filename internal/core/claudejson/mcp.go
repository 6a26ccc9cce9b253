package claudejson

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"syscall"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// Scope says where an MCP server is configured
type Scope string

const (
	// ScopeUser servers are in the top-level mcpServers of ~/.claude.json
	ScopeUser Scope = "user"
	// ScopeLocal servers are under one project in ~/.claude.json
	ScopeLocal Scope = "local"
	// ScopeProject servers are in a project's checked-in .mcp.json
	ScopeProject Scope = "project"
)

// Health check outcomes
const (
	StatusOK      = "ok"
	StatusError   = "error"
	StatusUnknown = "unknown"
)

const checkTimeout = 10 * time.Second

// serverEntry is an mcpServers value as the CLI writes it
type serverEntry struct {
	Type    string `json:"type"`
	Command string `json:"command"`
	Args    []any  `json:"args"`
	URL     string `json:"url"`
}

// ServerConfig is one configured MCP server
type ServerConfig struct {
	Name        string   `json:"name"`
	Type        string   `json:"server_type"`
	Scope       Scope    `json:"scope"`
	ProjectPath string   `json:"project_path,omitempty"`
	Command     string   `json:"command,omitempty"`
	Args        []string `json:"args,omitempty"`
	URL         string   `json:"url,omitempty"`
}

// ServerStatus is a server with the result of its health check
type ServerStatus struct {
	ServerConfig
	Status string `json:"status"`
	Error  string `json:"error_message,omitempty"`
}

func toConfigs(entries map[string]serverEntry, scope Scope, project string) []ServerConfig {
	out := make([]ServerConfig, 0, len(entries))
	for _, name := range slices.Sorted(maps.Keys(entries)) {
		e := entries[name]
		typ := e.Type
		if typ == "" {
			typ = "stdio"
		}
		cfg := ServerConfig{
			Name:        name,
			Type:        typ,
			Scope:       scope,
			ProjectPath: project,
			Command:     e.Command,
			URL:         e.URL,
		}
		if len(e.Args) > 0 {
			cfg.Args = lo.FilterMap(e.Args, func(a any, _ int) (string, bool) {
				s, ok := a.(string)
				return s, ok
			})
		}
		out = append(out, cfg)
	}
	return out
}

// MCPServers lists user servers, then for each project (sorted by path) its
// local servers and those in its .mcp.json. A missing claude.json yields no
// servers.
func (r *Reader) MCPServers() ([]ServerConfig, error) {
	cfg, err := r.Load()
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	servers := toConfigs(cfg.MCPServers, ScopeUser, "")
	for _, path := range slices.Sorted(maps.Keys(cfg.Projects)) {
		servers = append(servers, toConfigs(cfg.Projects[path].MCPServers, ScopeLocal, path)...)

		file, err := r.projectFile(path)
		if err != nil {
			r.logger.Debug("skipping .mcp.json", "project", path, "error", err)
			continue
		}
		servers = append(servers, toConfigs(file, ScopeProject, path)...)
	}
	return servers, nil
}

func (r *Reader) projectFile(projectPath string) (map[string]serverEntry, error) {
	data, err := os.ReadFile(filepath.Join(r.resolve(projectPath), ".mcp.json"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var file struct {
		MCPServers map[string]serverEntry `json:"mcpServers"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	return file.MCPServers, nil
}

// Checker tests whether configured MCP servers are reachable. Remote servers
// get a HEAD request, stdio servers a PATH lookup of their command.
type Checker struct {
	LookPath    func(file string) (string, error)
	HTTP        *http.Client
	Concurrency int
}

// NewChecker creates a checker with a 10 second request timeout
func NewChecker() *Checker {
	return &Checker{
		LookPath:    exec.LookPath,
		HTTP:        &http.Client{Timeout: checkTimeout},
		Concurrency: 8,
	}
}

// Check runs the health check for one server
func (c *Checker) Check(ctx context.Context, cfg ServerConfig) ServerStatus {
	st := ServerStatus{ServerConfig: cfg, Status: StatusUnknown}
	var err error
	switch cfg.Type {
	case "http", "sse":
		err = c.checkRemote(ctx, cfg.URL)
	case "stdio":
		err = c.checkCommand(cfg.Command)
	default:
		return st
	}
	if err != nil {
		st.Status = StatusError
		st.Error = err.Error()
		return st
	}
	st.Status = StatusOK
	return st
}

// CheckAll checks servers concurrently, keeping their order
func (c *Checker) CheckAll(ctx context.Context, servers []ServerConfig) []ServerStatus {
	out := make([]ServerStatus, len(servers))
	g, ctx := errgroup.WithContext(ctx)
	if c.Concurrency > 0 {
		g.SetLimit(c.Concurrency)
	}
	for i, s := range servers {
		g.Go(func() error {
			out[i] = c.Check(ctx, s)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (c *Checker) checkRemote(ctx context.Context, url string) error {
	if url == "" {
		return errors.New("no URL configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	resp, err := c.HTTP.Do(req)
	switch {
	case err == nil:
	case os.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded):
		return errors.New("connection timeout")
	case errors.Is(err, syscall.ECONNREFUSED):
		return errors.New("connection refused")
	default:
		return fmt.Errorf("request failed: %w", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}
	return nil
}

func (c *Checker) checkCommand(command string) error {
	if command == "" {
		return errors.New("no command configured")
	}
	if _, err := c.LookPath(command); err != nil {
		return fmt.Errorf("command %q not found in PATH", command)
	}
	return nil
}
