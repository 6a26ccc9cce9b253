package daemon

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type batches struct {
	mu   sync.Mutex
	seen map[string]bool
	n    int
}

func (b *batches) record(ctx context.Context, paths []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.n++
	for _, p := range paths {
		b.seen[p] = true
	}
}

func (b *batches) has(p string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.seen[p]
}

func TestWatcher_ReportsSessionFiles(t *testing.T) {
	root := t.TempDir()
	project := filepath.Join(root, "-tmp-app")
	require.NoError(t, os.MkdirAll(project, 0o755))

	got := &batches{seen: map[string]bool{}}
	w, err := NewWatcher(root, got.record)
	require.NoError(t, err)
	w.WithLogger(quietLogger()).WithSettle(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()
	time.Sleep(100 * time.Millisecond)

	session := filepath.Join(project, "s1.jsonl")
	require.NoError(t, os.WriteFile(session, []byte(`{"type":"user"}`+"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(project, "notes.txt"), []byte("x"), 0o644))

	assert.Eventually(t, func() bool { return got.has(session) }, 5*time.Second, 10*time.Millisecond)
	assert.False(t, got.has(filepath.Join(project, "notes.txt")))

	newProject := filepath.Join(root, "-tmp-other")
	require.NoError(t, os.MkdirAll(newProject, 0o755))
	time.Sleep(100 * time.Millisecond)

	other := filepath.Join(newProject, "s2.jsonl")
	require.NoError(t, os.WriteFile(other, []byte(`{"type":"user"}`+"\n"), 0o644))
	assert.Eventually(t, func() bool { return got.has(other) }, 5*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, w.Changed(), 2)
}

func TestNewWatcher_MissingPath(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), "missing"), func(context.Context, []string) {})
	require.Error(t, err)
}
