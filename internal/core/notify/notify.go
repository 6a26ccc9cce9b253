// Package notify raises desktop notifications when a usage window crosses
// 80, 90 or 100 percent.
package notify

import (
	"context"
	"log/slog"
	"math"
	"sync"

	"github.com/cbroglie/mustache"

	"github.com/neilberkman/ccdash/internal/core/models"
)

// AppName prefixes every notification title
const AppName = "ccdash"

// Thresholds are the utilization percentages that notify, ascending
var Thresholds = []int{80, 90, 100}

// Message is the fixed text for one threshold
type Message struct {
	Title string
	Body  string
}

var messages = map[int]Message{
	80: {
		Title: "Usage Warning (80%)",
		Body:  "You have used 80% of your quota. Consider slowing down.",
	},
	90: {
		Title: "Usage Critical (90%)",
		Body:  "You have used 90% of your quota. Very close to the limit.",
	},
	100: {
		Title: "Limit Reached (100%)",
		Body:  "You have reached your usage limit. Wait for the reset.",
	},
}

const (
	titleTemplate = "{{{app}}} - {{{title}}}"
	bodyTemplate  = "{{{label}}}: {{{body}}}"
)

// Notification is what a Dispatcher shows
type Notification struct {
	Window    models.WindowKey
	Threshold int
	Title     string
	Body      string
}

// Dispatcher delivers notifications to the user
type Dispatcher interface {
	// RequestPermission reports whether notifications can be shown
	RequestPermission(ctx context.Context) (bool, error)
	Send(ctx context.Context, n Notification) error
}

type windowState struct {
	notified map[int]bool
}

// Notifier tracks which thresholds each window has already announced. One
// Notifier lives for the whole process.
type Notifier struct {
	dispatcher Dispatcher
	logger     *slog.Logger

	mu      sync.Mutex
	enabled bool
	windows map[models.WindowKey]*windowState

	permMu     sync.Mutex
	permission *bool
}

// New creates an enabled Notifier
func New(d Dispatcher) *Notifier {
	return &Notifier{
		dispatcher: d,
		logger:     slog.Default(),
		enabled:    true,
		windows:    make(map[models.WindowKey]*windowState),
	}
}

// WithLogger sets the logger used for dispatch failures
func (n *Notifier) WithLogger(l *slog.Logger) *Notifier {
	n.logger = l
	return n
}

// SetEnabled mutes or unmutes dispatch. Threshold tracking continues while
// muted, so unmuting does not replay crossings that already happened.
func (n *Notifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	n.enabled = enabled
	n.mu.Unlock()
}

// Enabled reports whether notifications are dispatched
func (n *Notifier) Enabled() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.enabled
}

// Reset forgets every window and the cached permission
func (n *Notifier) Reset() {
	n.mu.Lock()
	n.windows = make(map[models.WindowKey]*windowState)
	n.mu.Unlock()

	n.permMu.Lock()
	n.permission = nil
	n.permMu.Unlock()
}

// CheckAndNotify records utilization for window and announces the highest
// newly crossed threshold. It returns that threshold, or 0 when nothing was
// crossed. The first observation of a window only records a baseline.
func (n *Notifier) CheckAndNotify(ctx context.Context, window models.WindowKey, utilization float64, label string) int {
	crossed, enabled := n.observe(window, utilization)
	if crossed == 0 {
		return 0
	}
	if !enabled {
		n.logger.Debug("notification muted", "window", window, "threshold", crossed)
		return crossed
	}

	if !n.permitted(ctx) {
		n.logger.Debug("notification permission denied", "window", window, "threshold", crossed)
		return crossed
	}

	note, err := Build(window, crossed, label)
	if err != nil {
		n.logger.Warn("failed to render notification", "error", err)
		return crossed
	}
	if err := n.dispatcher.Send(ctx, note); err != nil {
		n.logger.Warn("failed to send notification", "window", window, "error", err)
	}
	return crossed
}

func (n *Notifier) observe(window models.WindowKey, utilization float64) (int, bool) {
	used := int(math.Round(utilization))

	n.mu.Lock()
	defer n.mu.Unlock()

	state, seen := n.windows[window]
	if !seen {
		state = &windowState{notified: make(map[int]bool)}
		n.windows[window] = state
		for _, t := range Thresholds {
			if used >= t {
				state.notified[t] = true
			}
		}
		return 0, n.enabled
	}

	for _, t := range Thresholds {
		if used < t {
			delete(state.notified, t)
		}
	}

	highest := 0
	for _, t := range Thresholds {
		if used >= t && !state.notified[t] {
			state.notified[t] = true
			highest = t
		}
	}
	return highest, n.enabled
}

// permitted asks the dispatcher once and caches the answer
func (n *Notifier) permitted(ctx context.Context) bool {
	n.permMu.Lock()
	defer n.permMu.Unlock()

	if n.permission != nil {
		return *n.permission
	}
	ok, err := n.dispatcher.RequestPermission(ctx)
	if err != nil {
		n.logger.Warn("failed to request notification permission", "error", err)
		return false
	}
	n.permission = &ok
	return ok
}

// Notified returns the thresholds currently recorded for window
func (n *Notifier) Notified(window models.WindowKey) []int {
	n.mu.Lock()
	defer n.mu.Unlock()

	var out []int
	if state, ok := n.windows[window]; ok {
		for _, t := range Thresholds {
			if state.notified[t] {
				out = append(out, t)
			}
		}
	}
	return out
}

// Build renders the notification for a threshold crossing
func Build(window models.WindowKey, threshold int, label string) (Notification, error) {
	msg := messages[threshold]
	title, err := mustache.Render(titleTemplate, map[string]string{"app": AppName, "title": msg.Title})
	if err != nil {
		return Notification{}, err
	}
	body, err := mustache.Render(bodyTemplate, map[string]string{"label": label, "body": msg.Body})
	if err != nil {
		return Notification{}, err
	}
	return Notification{Window: window, Threshold: threshold, Title: title, Body: body}, nil
}
