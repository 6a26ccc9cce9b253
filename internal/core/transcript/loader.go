package transcript

import (
	"context"
	"sync"

	"github.com/neilberkman/ccdash/internal/core/models"
	"github.com/neilberkman/ccdash/internal/core/reqgen"
	"github.com/neilberkman/ccdash/pkg/ccsessions"
)

// Reader reads the raw entries of a session file
type Reader interface {
	ReadSession(ctx context.Context, path string) ([]models.SessionEntry, error)
}

// State is the transcript currently on display
type State struct {
	SessionID   string
	ProjectPath string
	Messages    []Message
	Loading     bool
	Error       string
}

// Empty reports a finished load with nothing to render
func (s State) Empty() bool {
	return !s.Loading && s.Error == "" && s.SessionID != "" && len(s.Messages) == 0
}

// Loader opens transcripts on demand. When loads overlap, only the most
// recently requested one is applied.
type Loader struct {
	reader    Reader
	claudeDir string
	onChange  func(State)

	gen reqgen.Counter

	// pubMu is held from the generation check through onChange, so a
	// superseded state is never delivered after a newer one
	pubMu sync.Mutex

	mu    sync.Mutex
	state State
}

// NewLoader creates a loader reading sessions below claudeDir. onChange must
// not call back into the loader.
func NewLoader(reader Reader, claudeDir string, onChange func(State)) *Loader {
	return &Loader{reader: reader, claudeDir: claudeDir, onChange: onChange}
}

// Load reads and parses a session. It reports whether its result was
// applied; false means a newer Load or Reset superseded it, or no Claude
// directory is configured.
func (l *Loader) Load(ctx context.Context, sessionID, projectPath string) bool {
	if l.claudeDir == "" {
		return false
	}

	path := ccsessions.SessionPath(l.claudeDir, projectPath, sessionID)

	l.pubMu.Lock()
	l.mu.Lock()
	gen := l.gen.Next()
	l.state = State{SessionID: sessionID, ProjectPath: projectPath, Loading: true}
	state := l.state
	l.mu.Unlock()
	l.publish(state)
	l.pubMu.Unlock()

	entries, err := l.reader.ReadSession(ctx, path)

	next := State{SessionID: sessionID, ProjectPath: projectPath}
	if err != nil {
		next.Error = err.Error()
	} else {
		next.Messages = ParseMessages(entries)
	}

	l.pubMu.Lock()
	defer l.pubMu.Unlock()

	l.mu.Lock()
	if !l.gen.IsCurrent(gen) {
		l.mu.Unlock()
		return false
	}
	l.state = next
	l.mu.Unlock()

	l.publish(next)
	return true
}

// Reset clears the transcript and discards any in-flight load
func (l *Loader) Reset() {
	l.pubMu.Lock()
	defer l.pubMu.Unlock()

	l.mu.Lock()
	l.gen.Invalidate()
	l.state = State{}
	l.mu.Unlock()

	l.publish(State{})
}

// State returns the transcript on display
func (l *Loader) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Loader) publish(s State) {
	if l.onChange != nil {
		l.onChange(s)
	}
}
