// Package kv stores small JSON-encoded values (settings, connection state,
// the tray cache) in the ccdash database.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/neilberkman/ccdash/internal/core/db"
)

// Backend is the raw string storage underneath a Store
type Backend interface {
	GetValue(ctx context.Context, key string) (string, error)
	SetValue(ctx context.Context, key, value string) error
	DeleteValue(ctx context.Context, key string) error
}

// Store reads and writes JSON values
type Store struct {
	backend Backend
}

// New wraps a backend
func New(b Backend) *Store {
	return &Store{backend: b}
}

// Get decodes key into v. It reports false when the key is absent.
func (s *Store) Get(ctx context.Context, key string, v any) (bool, error) {
	raw, err := s.backend.GetValue(ctx, key)
	if errors.Is(err, db.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

// Set encodes v under key
func (s *Store) Set(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return s.backend.SetValue(ctx, key, string(data))
}

// Delete removes key
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.backend.DeleteValue(ctx, key)
}

// Lazy opens the database on first use and keeps it open for the life of
// the process. A failed open is retried on the next call.
type Lazy struct {
	path string
	open func(path string) (*db.DB, error)

	mu sync.Mutex
	db *db.DB
}

// NewLazy returns a backend that opens path on first access
func NewLazy(path string) *Lazy {
	return &Lazy{path: path, open: db.New}
}

// DB returns the opened database, opening it if needed
func (l *Lazy) DB() (*db.DB, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.db != nil {
		return l.db, nil
	}
	database, err := l.open(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	l.db = database
	return database, nil
}

// Close closes the database if it was opened
func (l *Lazy) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.db == nil {
		return nil
	}
	err := l.db.Close()
	l.db = nil
	return err
}

func (l *Lazy) GetValue(ctx context.Context, key string) (string, error) {
	database, err := l.DB()
	if err != nil {
		return "", err
	}
	return database.GetValue(ctx, key)
}

func (l *Lazy) SetValue(ctx context.Context, key, value string) error {
	database, err := l.DB()
	if err != nil {
		return err
	}
	return database.SetValue(ctx, key, value)
}

func (l *Lazy) DeleteValue(ctx context.Context, key string) error {
	database, err := l.DB()
	if err != nil {
		return err
	}
	return database.DeleteValue(ctx, key)
}
