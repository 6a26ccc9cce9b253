// Package connection persists the OAuth credential and the Claude directory
// the dashboard reads from.
package connection

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/neilberkman/ccdash/internal/core/kv"
	"github.com/neilberkman/ccdash/internal/core/models"
	"github.com/neilberkman/ccdash/pkg/ccsessions"
)

// Store keys
const (
	KeyOrgID     = "orgId"
	KeyToken     = "token"
	KeyClaudeDir = "claudeDir"
	KeyUseWSL    = "useWsl"
	KeyWSLDistro = "wslDistro"
)

// ErrNotConnected is returned by operations that need a token
var ErrNotConnected = errors.New("not connected; run `ccdash connect` first")

// Credential is the persisted connection
type Credential struct {
	OrgID     string `json:"orgId"`
	Token     string `json:"token"`
	ClaudeDir string `json:"claudeDir"`
	UseWSL    bool   `json:"useWsl"`
	WSLDistro string `json:"wslDistro"`
}

// IsConnected reports whether a token is on file
func (c Credential) IsConnected() bool {
	return c.Token != ""
}

// Transport returns how session files under ClaudeDir are reached
func (c Credential) Transport() ccsessions.Transport {
	return ccsessions.Transport{UseWSL: c.UseWSL, Distro: c.WSLDistro}
}

// Fetcher validates a token by fetching usage with it
type Fetcher interface {
	FetchUsage(ctx context.Context, token string) (*models.UsageResponse, error)
}

// Detector finds a token in the local environment
type Detector interface {
	DetectOAuthToken(ctx context.Context, wslDistro string) (string, error)
}

// Store holds the current Credential and writes every change through to kv
type Store struct {
	kv       *kv.Store
	fetcher  Fetcher
	detector Detector

	mu   sync.RWMutex
	cred Credential
	err  string
}

// NewStore creates a Store. Call Load to read the persisted credential.
func NewStore(store *kv.Store, fetcher Fetcher, detector Detector) *Store {
	return &Store{kv: store, fetcher: fetcher, detector: detector}
}

// Load reads the persisted credential
func (s *Store) Load(ctx context.Context) error {
	var c Credential
	fields := []struct {
		key string
		dst any
	}{
		{KeyOrgID, &c.OrgID},
		{KeyToken, &c.Token},
		{KeyClaudeDir, &c.ClaudeDir},
		{KeyUseWSL, &c.UseWSL},
		{KeyWSLDistro, &c.WSLDistro},
	}
	for _, f := range fields {
		if _, err := s.kv.Get(ctx, f.key, f.dst); err != nil {
			return fmt.Errorf("failed to load connection: %w", err)
		}
	}

	s.mu.Lock()
	s.cred = c
	s.mu.Unlock()
	return nil
}

// Current returns a copy of the credential
func (s *Store) Current() Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred
}

// Error returns the last connect failure, or ""
func (s *Store) Error() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

func (s *Store) setErr(err error) {
	s.mu.Lock()
	if err == nil {
		s.err = ""
	} else {
		s.err = err.Error()
	}
	s.mu.Unlock()
}

// Connect validates token with one usage fetch and stores it
func (s *Store) Connect(ctx context.Context, orgID, token string) error {
	if _, err := s.fetcher.FetchUsage(ctx, token); err != nil {
		s.setErr(err)
		return fmt.Errorf("failed to validate token: %w", err)
	}
	if err := s.kv.Set(ctx, KeyOrgID, orgID); err != nil {
		return err
	}
	if err := s.kv.Set(ctx, KeyToken, token); err != nil {
		return err
	}

	s.mu.Lock()
	s.cred.OrgID = orgID
	s.cred.Token = token
	s.err = ""
	s.mu.Unlock()
	return nil
}

// AutoConnect detects a local token and connects with it. It reports false
// when no working token was found.
func (s *Store) AutoConnect(ctx context.Context) bool {
	token, err := s.detector.DetectOAuthToken(ctx, s.Current().WSLDistro)
	if err != nil {
		return false
	}
	if _, err := s.fetcher.FetchUsage(ctx, token); err != nil {
		return false
	}
	if err := s.SetToken(ctx, token); err != nil {
		s.setErr(err)
		return false
	}
	s.setErr(nil)
	return true
}

// SetToken replaces the token without validating it
func (s *Store) SetToken(ctx context.Context, token string) error {
	if err := s.kv.Set(ctx, KeyToken, token); err != nil {
		return err
	}
	s.mu.Lock()
	s.cred.Token = token
	s.mu.Unlock()
	return nil
}

// SetClaudeDir sets the directory sessions are read from
func (s *Store) SetClaudeDir(ctx context.Context, dir string) error {
	if err := s.kv.Set(ctx, KeyClaudeDir, dir); err != nil {
		return err
	}
	s.mu.Lock()
	s.cred.ClaudeDir = dir
	s.mu.Unlock()
	return nil
}

// SetWSL enables or disables reading through a WSL distro
func (s *Store) SetWSL(ctx context.Context, useWSL bool, distro string) error {
	if err := s.kv.Set(ctx, KeyUseWSL, useWSL); err != nil {
		return err
	}
	if err := s.kv.Set(ctx, KeyWSLDistro, distro); err != nil {
		return err
	}
	s.mu.Lock()
	s.cred.UseWSL = useWSL
	s.cred.WSLDistro = distro
	s.mu.Unlock()
	return nil
}

// Demote drops the token and org but keeps directory and WSL settings
func (s *Store) Demote(ctx context.Context) error {
	s.mu.Lock()
	s.cred.OrgID = ""
	s.cred.Token = ""
	s.mu.Unlock()

	return s.deleteKeys(ctx, KeyOrgID, KeyToken)
}

// Disconnect forgets everything
func (s *Store) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	s.cred = Credential{}
	s.err = ""
	s.mu.Unlock()

	return s.deleteKeys(ctx, KeyOrgID, KeyToken, KeyClaudeDir, KeyUseWSL, KeyWSLDistro)
}

func (s *Store) deleteKeys(ctx context.Context, keys ...string) error {
	var errs []error
	for _, k := range keys {
		if err := s.kv.Delete(ctx, k); err != nil {
			errs = append(errs, fmt.Errorf("failed to delete %s: %w", k, err))
		}
	}
	return errors.Join(errs...)
}
