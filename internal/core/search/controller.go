package search

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/neilberkman/ccdash/internal/core/debounce"
	"github.com/neilberkman/ccdash/internal/core/merge"
	"github.com/neilberkman/ccdash/internal/core/models"
	"github.com/neilberkman/ccdash/internal/core/reqgen"
)

// Searcher is the content search backend
type Searcher interface {
	SearchSessions(ctx context.Context, query string) ([]models.SearchMatch, error)
}

// State is what the history view renders
type State struct {
	Query     string
	View      merge.View
	Searching bool
	Error     string
}

// Controller drives the history search box: it debounces query changes,
// runs settled queries against the backend, drops stale responses and
// republishes the merged view whenever the catalog or results change.
type Controller struct {
	ctx      context.Context
	searcher Searcher
	onChange func(State)
	logger   *slog.Logger

	gen       reqgen.Counter
	debouncer *debounce.Debouncer[string]

	mu        sync.Mutex
	catalog   []models.SessionMeta
	query     string
	matches   []models.SearchMatch
	searching bool
	err       string
}

// NewController creates a controller. onChange may be nil. Backend calls run
// with ctx; cancel it (or call Close) to tear the controller down.
func NewController(ctx context.Context, searcher Searcher, delay time.Duration, onChange func(State)) *Controller {
	c := &Controller{
		ctx:      ctx,
		searcher: searcher,
		onChange: onChange,
		logger:   slog.Default(),
	}
	c.debouncer = debounce.New(delay, c.run)
	return c
}

// SetCatalog replaces the session catalog and republishes the view
func (c *Controller) SetCatalog(sessions []models.SessionMeta) {
	c.mu.Lock()
	c.catalog = sessions
	state := c.stateLocked()
	c.mu.Unlock()

	c.publish(state)
}

// SetQuery updates the filter. Previous matches are dropped immediately;
// a searchable query is sent to the backend once input settles.
func (c *Controller) SetQuery(query string) {
	c.mu.Lock()
	c.query = query
	c.matches = nil
	c.err = ""
	c.gen.Invalidate()

	if merge.Searchable(query) {
		c.searching = true
		c.debouncer.Trigger(query)
	} else {
		c.searching = false
		c.debouncer.Cancel()
	}
	state := c.stateLocked()
	c.mu.Unlock()

	c.publish(state)
}

// Refresh re-runs the current query without waiting for the debounce delay
func (c *Controller) Refresh() {
	c.mu.Lock()
	query := c.query
	c.mu.Unlock()

	if merge.Searchable(query) {
		c.run(query)
	}
}

// State returns the current view
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// Close cancels pending searches and discards in-flight results
func (c *Controller) Close() {
	c.debouncer.Stop()
	c.gen.Invalidate()
}

func (c *Controller) run(query string) {
	c.mu.Lock()
	if query != c.query {
		c.mu.Unlock()
		return
	}
	gen := c.gen.Next()
	c.searching = true
	c.mu.Unlock()

	matches, err := c.searcher.SearchSessions(c.ctx, query)

	c.mu.Lock()
	if !c.gen.IsCurrent(gen) || query != c.query {
		c.mu.Unlock()
		c.logger.Debug("discarding stale search result", "query", query)
		return
	}
	c.searching = false
	if err != nil {
		c.matches = nil
		c.err = err.Error()
		c.logger.Warn("content search failed", "query", query, "error", err)
	} else {
		c.matches = matches
		c.err = ""
	}
	state := c.stateLocked()
	c.mu.Unlock()

	c.publish(state)
}

func (c *Controller) stateLocked() State {
	return State{
		Query:     c.query,
		View:      merge.Build(c.catalog, c.query, c.matches),
		Searching: c.searching,
		Error:     c.err,
	}
}

func (c *Controller) publish(s State) {
	if c.onChange != nil {
		c.onChange(s)
	}
}
