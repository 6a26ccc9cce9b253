package transcript

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neilberkman/ccdash/internal/core/models"
)

// gatedReader holds each read until its path is released
type gatedReader struct {
	mu      sync.Mutex
	gates   map[string]chan struct{}
	entries map[string][]models.SessionEntry
	errs    map[string]error
	started chan string
}

func newGatedReader() *gatedReader {
	return &gatedReader{
		gates:   make(map[string]chan struct{}),
		entries: make(map[string][]models.SessionEntry),
		errs:    make(map[string]error),
		started: make(chan string, 8),
	}
}

func (r *gatedReader) gate(path string) chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.gates[path]
	if !ok {
		ch = make(chan struct{})
		r.gates[path] = ch
	}
	return ch
}

func (r *gatedReader) ReadSession(ctx context.Context, path string) ([]models.SessionEntry, error) {
	r.started <- path
	<-r.gate(path)
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[path], r.errs[path]
}

func TestLoader_LatestRequestWins(t *testing.T) {
	reader := newGatedReader()
	pathA := filepath.Join("/claude", "projects", "-work-a", "A.jsonl")
	pathB := filepath.Join("/claude", "projects", "-work-b", "B.jsonl")
	reader.entries[pathA] = []models.SessionEntry{entry("user", `{"content":"from A"}`)}
	reader.entries[pathB] = []models.SessionEntry{entry("user", `{"content":"from B"}`)}

	loader := NewLoader(reader, "/claude", nil)
	ctx := context.Background()

	resultA := make(chan bool, 1)
	go func() { resultA <- loader.Load(ctx, "A", "/work/a") }()
	require.Equal(t, pathA, <-reader.started)

	resultB := make(chan bool, 1)
	go func() { resultB <- loader.Load(ctx, "B", "/work/b") }()
	require.Equal(t, pathB, <-reader.started)

	// B resolves first, A after it
	close(reader.gate(pathB))
	assert.True(t, <-resultB)
	close(reader.gate(pathA))
	assert.False(t, <-resultA)

	state := loader.State()
	assert.Equal(t, "B", state.SessionID)
	require.Len(t, state.Messages, 1)
	assert.Equal(t, "from B", state.Messages[0].Text())
}

func TestLoader_SlowDeliveryOfOlderResultStaysOrdered(t *testing.T) {
	reader := newGatedReader()
	pathA := filepath.Join("/claude", "projects", "-work-a", "A.jsonl")
	pathB := filepath.Join("/claude", "projects", "-work-b", "B.jsonl")
	reader.entries[pathA] = []models.SessionEntry{entry("user", `{"content":"from A"}`)}
	reader.entries[pathB] = []models.SessionEntry{entry("user", `{"content":"from B"}`)}
	close(reader.gate(pathA))
	close(reader.gate(pathB))

	var mu sync.Mutex
	var published []State
	inA := make(chan struct{})
	release := make(chan struct{})
	loader := NewLoader(reader, "/claude", func(s State) {
		// hold A's final delivery until B has had a chance to run
		if s.SessionID == "A" && !s.Loading {
			close(inA)
			<-release
		}
		mu.Lock()
		published = append(published, s)
		mu.Unlock()
	})
	ctx := context.Background()

	doneA := make(chan bool, 1)
	go func() { doneA <- loader.Load(ctx, "A", "/work/a") }()
	<-inA

	doneB := make(chan bool, 1)
	go func() { doneB <- loader.Load(ctx, "B", "/work/b") }()

	time.Sleep(50 * time.Millisecond)
	close(release)

	assert.True(t, <-doneA)
	assert.True(t, <-doneB)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, published, 4)
	assert.Equal(t, "A", published[0].SessionID)
	assert.True(t, published[0].Loading)
	assert.Equal(t, "A", published[1].SessionID)
	assert.False(t, published[1].Loading)
	assert.Equal(t, "B", published[2].SessionID)
	assert.True(t, published[2].Loading)
	assert.Equal(t, "B", published[3].SessionID)
	assert.False(t, published[3].Loading)
	assert.Equal(t, "B", loader.State().SessionID)
}

func TestLoader_ResetDiscardsInFlight(t *testing.T) {
	reader := newGatedReader()
	path := filepath.Join("/claude", "projects", "-work-a", "A.jsonl")

	loader := NewLoader(reader, "/claude", nil)
	done := make(chan bool, 1)
	go func() { done <- loader.Load(context.Background(), "A", "/work/a") }()
	<-reader.started

	loader.Reset()
	close(reader.gate(path))

	select {
	case applied := <-done:
		assert.False(t, applied)
	case <-time.After(time.Second):
		t.Fatal("load never finished")
	}
	assert.Equal(t, State{}, loader.State())
}

func TestLoader_ErrorAndEmpty(t *testing.T) {
	reader := newGatedReader()
	bad := filepath.Join("/claude", "projects", "-x", "bad.jsonl")
	empty := filepath.Join("/claude", "projects", "-x", "empty.jsonl")
	reader.errs[bad] = errors.New("permission denied")
	reader.entries[empty] = []models.SessionEntry{entry("system", `{}`)}
	close(reader.gate(bad))
	close(reader.gate(empty))

	var published []State
	loader := NewLoader(reader, "/claude", func(s State) { published = append(published, s) })

	assert.True(t, loader.Load(context.Background(), "bad", "/x"))
	<-reader.started
	assert.Equal(t, "permission denied", loader.State().Error)
	assert.False(t, loader.State().Empty())

	assert.True(t, loader.Load(context.Background(), "empty", "/x"))
	<-reader.started
	assert.True(t, loader.State().Empty())

	// loading + result for each load
	assert.Len(t, published, 4)
	assert.True(t, published[0].Loading)
}

func TestLoader_NoClaudeDir(t *testing.T) {
	loader := NewLoader(newGatedReader(), "", nil)
	assert.False(t, loader.Load(context.Background(), "A", "/work/a"))
}
