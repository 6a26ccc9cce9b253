// Package settings holds user preferences changed at runtime
package settings

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/neilberkman/ccdash/internal/core/kv"
)

// Store keys
const (
	KeyRefreshInterval = "refreshInterval"
	KeyNotifications   = "notificationsEnabled"
)

// DefaultRefreshInterval is used until the user picks another
const DefaultRefreshInterval = 60 * time.Second

// MinRefreshInterval bounds how often the usage endpoint is polled
const MinRefreshInterval = 10 * time.Second

// Settings are the persisted preferences
type Settings struct {
	RefreshInterval      time.Duration
	NotificationsEnabled bool
}

// Defaults returns the built-in settings
func Defaults() Settings {
	return Settings{
		RefreshInterval:      DefaultRefreshInterval,
		NotificationsEnabled: true,
	}
}

// Store reads and writes Settings. The refresh interval is stored in
// milliseconds.
type Store struct {
	kv *kv.Store

	mu      sync.RWMutex
	current Settings
}

// NewStore creates a store seeded with defaults, which config may override
func NewStore(store *kv.Store, defaults Settings) *Store {
	if defaults.RefreshInterval <= 0 {
		defaults.RefreshInterval = DefaultRefreshInterval
	}
	return &Store{kv: store, current: defaults}
}

// Load overlays persisted values on the defaults
func (s *Store) Load(ctx context.Context) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ms int64
	found, err := s.kv.Get(ctx, KeyRefreshInterval, &ms)
	if err != nil {
		return s.current, fmt.Errorf("failed to load settings: %w", err)
	}
	if found && ms > 0 {
		s.current.RefreshInterval = time.Duration(ms) * time.Millisecond
	}

	var enabled bool
	found, err = s.kv.Get(ctx, KeyNotifications, &enabled)
	if err != nil {
		return s.current, fmt.Errorf("failed to load settings: %w", err)
	}
	if found {
		s.current.NotificationsEnabled = enabled
	}
	return s.current, nil
}

// Current returns the settings in effect
func (s *Store) Current() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// RefreshInterval returns the current polling interval
func (s *Store) RefreshInterval() time.Duration {
	return s.Current().RefreshInterval
}

// SetRefreshInterval persists a new interval
func (s *Store) SetRefreshInterval(ctx context.Context, d time.Duration) error {
	if d < MinRefreshInterval {
		return fmt.Errorf("refresh interval must be at least %s", MinRefreshInterval)
	}
	if err := s.kv.Set(ctx, KeyRefreshInterval, d.Milliseconds()); err != nil {
		return err
	}
	s.mu.Lock()
	s.current.RefreshInterval = d
	s.mu.Unlock()
	return nil
}

// SetNotifications persists the notifications toggle
func (s *Store) SetNotifications(ctx context.Context, enabled bool) error {
	if err := s.kv.Set(ctx, KeyNotifications, enabled); err != nil {
		return err
	}
	s.mu.Lock()
	s.current.NotificationsEnabled = enabled
	s.mu.Unlock()
	return nil
}
