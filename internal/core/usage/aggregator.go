// Package usage keeps the latest rate-limit snapshot and feeds the tray
// cache and threshold notifications from it.
package usage

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/neilberkman/ccdash/internal/core/auth"
	"github.com/neilberkman/ccdash/internal/core/connection"
	"github.com/neilberkman/ccdash/internal/core/kv"
	"github.com/neilberkman/ccdash/internal/core/models"
	"github.com/neilberkman/ccdash/internal/core/usageapi"
)

// Fetcher fetches usage with a token
type Fetcher interface {
	FetchUsage(ctx context.Context, token string) (*models.UsageResponse, error)
}

// Credentials supplies the current token
type Credentials interface {
	Current() connection.Credential
}

// Recoverer handles a rejected token
type Recoverer interface {
	Recover(ctx context.Context) (*models.UsageResponse, error)
}

// Notifier is told about every window after a fetch
type Notifier interface {
	CheckAndNotify(ctx context.Context, window models.WindowKey, utilization float64, label string) int
}

// State is what the dashboard shows
type State struct {
	Usage     *models.UsageResponse
	FetchedAt time.Time
	Loading   bool
	Error     string
}

// Aggregator owns the usage snapshot
type Aggregator struct {
	creds    Credentials
	fetcher  Fetcher
	recovery Recoverer
	notifier Notifier
	cache    *kv.Store
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.RWMutex
	state    State
	trayKey  string
	onChange func(State)
}

// NewAggregator creates an Aggregator. recovery, notifier and cache may be nil.
func NewAggregator(creds Credentials, fetcher Fetcher, recovery Recoverer, notifier Notifier, cache *kv.Store) *Aggregator {
	return &Aggregator{
		creds:    creds,
		fetcher:  fetcher,
		recovery: recovery,
		notifier: notifier,
		cache:    cache,
		logger:   slog.Default(),
		now:      time.Now,
	}
}

// WithLogger sets the logger
func (a *Aggregator) WithLogger(l *slog.Logger) *Aggregator {
	a.logger = l
	return a
}

// OnChange registers a callback run after every state change
func (a *Aggregator) OnChange(fn func(State)) {
	a.mu.Lock()
	a.onChange = fn
	a.mu.Unlock()
}

// State returns the current state
func (a *Aggregator) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

func (a *Aggregator) update(fn func(s *State)) {
	a.mu.Lock()
	fn(&a.state)
	s, cb := a.state, a.onChange
	a.mu.Unlock()

	if cb != nil {
		cb(s)
	}
}

// Fetch refreshes the snapshot. Without a token it does nothing. The
// returned error is also recorded in State; the previous snapshot is kept
// unless the login has to be redone.
func (a *Aggregator) Fetch(ctx context.Context) error {
	cred := a.creds.Current()
	if !cred.IsConnected() {
		return nil
	}

	a.update(func(s *State) {
		s.Loading = true
		s.Error = ""
	})

	u, err := a.fetcher.FetchUsage(ctx, cred.Token)
	if err != nil && usageapi.IsAuthError(err) && a.recovery != nil {
		a.logger.Debug("usage fetch rejected, attempting recovery", "error", err)
		u, err = a.recovery.Recover(ctx)
	}

	if errors.Is(err, auth.ErrReauthRequired) {
		a.update(func(s *State) {
			*s = State{Error: err.Error()}
		})
		a.clearTray(ctx)
		return err
	}
	if err != nil {
		a.update(func(s *State) {
			s.Loading = false
			s.Error = err.Error()
		})
		return err
	}

	at := a.now()
	a.update(func(s *State) {
		*s = State{Usage: u, FetchedAt: at}
	})

	if a.cache != nil {
		if err := a.cache.Set(ctx, CacheKey, NewCacheSnapshot(u, at)); err != nil {
			a.logger.Warn("failed to write usage cache", "error", err)
		}
	}

	if a.notifier != nil {
		utils := u.Utilizations()
		for _, key := range models.WindowKeys {
			if v, ok := utils[key]; ok {
				a.notifier.CheckAndNotify(ctx, key, v, key.Label())
			}
		}
	}
	return nil
}

// TrayUpdate returns the tooltip for the current snapshot and whether it
// differs from the one last returned
func (a *Aggregator) TrayUpdate() (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := TrayKey(a.state.Usage)
	changed := key != a.trayKey
	a.trayKey = key
	return Tooltip(a.state.Usage), changed
}

// Clear drops the snapshot and the tray cache, as on disconnect
func (a *Aggregator) Clear(ctx context.Context) {
	a.update(func(s *State) {
		*s = State{}
	})
	a.clearTray(ctx)
}

func (a *Aggregator) clearTray(ctx context.Context) {
	a.mu.Lock()
	a.trayKey = ""
	a.mu.Unlock()

	if a.cache == nil {
		return
	}
	if err := a.cache.Delete(ctx, CacheKey); err != nil {
		a.logger.Warn("failed to clear usage cache", "error", err)
	}
}
