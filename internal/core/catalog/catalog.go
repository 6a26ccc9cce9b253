// Package catalog holds the list of sessions discovered in the Claude
// directory.
package catalog

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/neilberkman/ccdash/internal/core/merge"
	"github.com/neilberkman/ccdash/internal/core/models"
)

// Lister discovers sessions under a Claude directory
type Lister interface {
	ListSessions(ctx context.Context, claudeDir string) ([]models.SessionMeta, error)
}

// Catalog is the last successfully listed set of sessions
type Catalog struct {
	lister Lister
	dir    func() string
	logger *slog.Logger

	mu       sync.RWMutex
	sessions []models.SessionMeta
	err      string
	loaded   time.Time
}

// New creates a Catalog. dir is read on every Refresh so a changed
// directory takes effect without rebuilding the catalog.
func New(lister Lister, dir func() string) *Catalog {
	return &Catalog{lister: lister, dir: dir, logger: slog.Default()}
}

// WithLogger sets the logger
func (c *Catalog) WithLogger(l *slog.Logger) *Catalog {
	c.logger = l
	return c
}

// Refresh relists sessions. Without a configured directory it does nothing.
// On failure the previous list stays and Error reports the failure.
func (c *Catalog) Refresh(ctx context.Context) error {
	dir := c.dir()
	if dir == "" {
		return nil
	}

	sessions, err := c.lister.ListSessions(ctx, dir)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.err = err.Error()
		c.logger.Warn("failed to list sessions", "dir", dir, "error", err)
		return err
	}
	c.sessions = sessions
	c.err = ""
	c.loaded = time.Now()
	return nil
}

// Sessions returns a copy of the catalog
func (c *Catalog) Sessions() []models.SessionMeta {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.SessionMeta(nil), c.sessions...)
}

// Error returns the last refresh failure, or ""
func (c *Catalog) Error() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// LoadedAt is when the catalog was last refreshed successfully
func (c *Catalog) LoadedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Filter returns the sessions whose project path or summary contains query
func (c *Catalog) Filter(query string) []models.SessionMeta {
	return merge.LocalFilter(c.Sessions(), query)
}

// Find returns the session with id. When several projects share the id
// the most recent one wins.
func (c *Catalog) Find(id string) (models.SessionMeta, bool) {
	sessions := c.Sessions()
	matches := lo.Filter(sessions, func(s models.SessionMeta, _ int) bool {
		return s.ID == id
	})
	if len(matches) == 0 {
		return models.SessionMeta{}, false
	}
	return lo.MaxBy(matches, func(a, b models.SessionMeta) bool {
		return a.LastActivity().After(b.LastActivity())
	}), true
}

// Since returns sessions active at or after t
func (c *Catalog) Since(t time.Time) []models.SessionMeta {
	return lo.Filter(c.Sessions(), func(s models.SessionMeta, _ int) bool {
		return !s.LastActivity().Before(t)
	})
}

// Project summarizes the sessions of one project
type Project struct {
	Path         string
	Display      string
	Sessions     int
	Messages     int
	LastActivity time.Time
}

// Projects groups the catalog by project, most recently active first
func (c *Catalog) Projects() []Project {
	return GroupProjects(c.Sessions())
}

// GroupProjects groups sessions by project, most recently active first
func GroupProjects(sessions []models.SessionMeta) []Project {
	groups := lo.GroupBy(sessions, func(s models.SessionMeta) string {
		return s.ProjectPath
	})

	projects := lo.MapToSlice(groups, func(path string, ss []models.SessionMeta) Project {
		latest := lo.MaxBy(ss, func(a, b models.SessionMeta) bool {
			return a.LastActivity().After(b.LastActivity())
		})
		return Project{
			Path:         path,
			Display:      latest.ProjectDisplay,
			Sessions:     len(ss),
			Messages:     lo.SumBy(ss, func(s models.SessionMeta) int { return s.MessageCount }),
			LastActivity: latest.LastActivity(),
		}
	})

	sort.Slice(projects, func(i, j int) bool {
		if !projects[i].LastActivity.Equal(projects[j].LastActivity) {
			return projects[i].LastActivity.After(projects[j].LastActivity)
		}
		return strings.Compare(projects[i].Path, projects[j].Path) < 0
	})
	return projects
}
