package kv

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/neilberkman/ccdash/internal/core/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type settings struct {
	RefreshInterval int  `json:"refreshInterval"`
	Notifications   bool `json:"notifications"`
}

func TestStore_Memory(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemory())

	var got settings
	ok, err := s.Get(ctx, "settings", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "settings", settings{RefreshInterval: 60000, Notifications: true}))

	ok, err = s.Get(ctx, "settings", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, settings{RefreshInterval: 60000, Notifications: true}, got)

	require.NoError(t, s.Delete(ctx, "settings"))
	ok, err = s.Get(ctx, "settings", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_DecodeError(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	require.NoError(t, mem.SetValue(ctx, "settings", "{not json"))

	var got settings
	_, err := New(mem).Get(ctx, "settings", &got)
	assert.Error(t, err)
}

func TestLazy_OpensOnce(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ccdash.db")

	opens := 0
	lazy := NewLazy(path)
	lazy.open = func(p string) (*db.DB, error) {
		opens++
		return db.New(p)
	}
	t.Cleanup(func() { _ = lazy.Close() })

	s := New(lazy)
	require.NoError(t, s.Set(ctx, "orgId", "org-1"))

	var got string
	ok, err := s.Get(ctx, "orgId", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "org-1", got)
	assert.Equal(t, 1, opens)
}

func TestLazy_RetriesFailedOpen(t *testing.T) {
	ctx := context.Background()

	calls := 0
	lazy := NewLazy("unused")
	lazy.open = func(string) (*db.DB, error) {
		calls++
		return nil, errors.New("disk on fire")
	}

	_, err := lazy.GetValue(ctx, "k")
	require.Error(t, err)
	_, err = lazy.GetValue(ctx, "k")
	require.Error(t, err)
	assert.Equal(t, 2, calls)
}
