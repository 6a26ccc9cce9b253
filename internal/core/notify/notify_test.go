package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neilberkman/ccdash/internal/core/models"
)

func newTestNotifier() (*Notifier, *LogDispatcher) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	d := &LogDispatcher{Logger: logger}
	return New(d).WithLogger(logger), d
}

func feed(n *Notifier, window models.WindowKey, values ...float64) []int {
	var fired []int
	for _, v := range values {
		if got := n.CheckAndNotify(context.Background(), window, v, window.Label()); got != 0 {
			fired = append(fired, got)
		}
	}
	return fired
}

func TestFirstObservationIsSilent(t *testing.T) {
	n, d := newTestNotifier()

	assert.Empty(t, feed(n, models.WindowFiveHour, 95))
	assert.Equal(t, []int{80, 90}, n.Notified(models.WindowFiveHour))
	assert.Empty(t, d.Sent())
}

func TestNoRepeatWhilePinned(t *testing.T) {
	t.Run("pinned from first call", func(t *testing.T) {
		n, d := newTestNotifier()

		values := make([]float64, 10)
		for i := range values {
			values[i] = 85
		}
		assert.Empty(t, feed(n, models.WindowFiveHour, values...))
		assert.Empty(t, d.Sent())
	})

	t.Run("pinned after a baseline below 80", func(t *testing.T) {
		n, d := newTestNotifier()

		feed(n, models.WindowFiveHour, 40)
		values := make([]float64, 10)
		for i := range values {
			values[i] = 85
		}
		assert.Equal(t, []int{80}, feed(n, models.WindowFiveHour, values...))
		assert.Len(t, d.Sent(), 1)
	})
}

func TestRearmOnDrop(t *testing.T) {
	n, d := newTestNotifier()

	feed(n, models.WindowSevenDay, 10)
	assert.Equal(t, []int{80, 80}, feed(n, models.WindowSevenDay, 85, 70, 85))
	assert.Len(t, d.Sent(), 2)
}

func TestStartupThenRecross(t *testing.T) {
	n, d := newTestNotifier()

	assert.Empty(t, feed(n, models.WindowFiveHour, 95))
	assert.Empty(t, feed(n, models.WindowFiveHour, 96))
	assert.Empty(t, feed(n, models.WindowFiveHour, 50))
	assert.Equal(t, []int{90}, feed(n, models.WindowFiveHour, 91))

	sent := d.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "ccdash - Usage Critical (90%)", sent[0].Title)
	assert.Equal(t, "Session (5h): You have used 90% of your quota. Very close to the limit.", sent[0].Body)
}

func TestOnlyHighestFires(t *testing.T) {
	n, d := newTestNotifier()

	feed(n, models.WindowOpusWeekly, 0)
	assert.Equal(t, []int{100}, feed(n, models.WindowOpusWeekly, 100))
	require.Len(t, d.Sent(), 1)
	assert.Equal(t, []int{80, 90, 100}, n.Notified(models.WindowOpusWeekly))
}

func TestRoundingBeforeComparison(t *testing.T) {
	n, _ := newTestNotifier()

	feed(n, models.WindowFiveHour, 50)
	assert.Equal(t, []int{80}, feed(n, models.WindowFiveHour, 79.6))
	assert.Empty(t, feed(n, models.WindowFiveHour, 79.5))
	assert.Empty(t, feed(n, models.WindowFiveHour, 79.4))
	assert.Equal(t, []int{80}, feed(n, models.WindowFiveHour, 80))
}

func TestWindowsAreIndependent(t *testing.T) {
	n, _ := newTestNotifier()

	feed(n, models.WindowFiveHour, 0)
	feed(n, models.WindowSevenDay, 0)
	assert.Equal(t, []int{80}, feed(n, models.WindowFiveHour, 82))
	assert.Empty(t, n.Notified(models.WindowSevenDay))
}

func TestMutedKeepsTracking(t *testing.T) {
	n, d := newTestNotifier()

	feed(n, models.WindowFiveHour, 10)
	n.SetEnabled(false)
	assert.Equal(t, []int{90}, feed(n, models.WindowFiveHour, 92))
	assert.Empty(t, d.Sent())
	assert.Zero(t, d.PermissionRequests())

	n.SetEnabled(true)
	assert.Empty(t, feed(n, models.WindowFiveHour, 93))
	assert.Empty(t, d.Sent())
}

func TestPermissionRequestedOnce(t *testing.T) {
	t.Run("granted", func(t *testing.T) {
		n, d := newTestNotifier()

		feed(n, models.WindowFiveHour, 0)
		feed(n, models.WindowFiveHour, 85, 0, 85, 0, 95)
		assert.Equal(t, 1, d.PermissionRequests())
		assert.Len(t, d.Sent(), 3)
	})

	t.Run("denied", func(t *testing.T) {
		n, d := newTestNotifier()
		d.Deny = true

		feed(n, models.WindowFiveHour, 0)
		assert.Equal(t, []int{80, 80}, feed(n, models.WindowFiveHour, 85, 0, 85))
		assert.Equal(t, 1, d.PermissionRequests())
		assert.Empty(t, d.Sent())
	})
}

type failingDispatcher struct{ sends int }

func (f *failingDispatcher) RequestPermission(ctx context.Context) (bool, error) { return true, nil }

func (f *failingDispatcher) Send(ctx context.Context, n Notification) error {
	f.sends++
	return errors.New("no display")
}

func TestSendFailureStillRecords(t *testing.T) {
	d := &failingDispatcher{}
	n := New(d).WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	feed(n, models.WindowFiveHour, 0)
	assert.Equal(t, []int{80}, feed(n, models.WindowFiveHour, 80, 81))
	assert.Equal(t, 1, d.sends)
}

func TestReset(t *testing.T) {
	n, d := newTestNotifier()

	feed(n, models.WindowFiveHour, 0, 85)
	require.Len(t, d.Sent(), 1)

	n.Reset()
	assert.Empty(t, n.Notified(models.WindowFiveHour))
	assert.Empty(t, feed(n, models.WindowFiveHour, 85))
	assert.Equal(t, 1, d.PermissionRequests())

	assert.Equal(t, []int{90}, feed(n, models.WindowFiveHour, 0, 90))
	assert.Equal(t, 2, d.PermissionRequests())
}

func TestBuild(t *testing.T) {
	tests := []struct {
		threshold int
		title     string
		body      string
	}{
		{80, "ccdash - Usage Warning (80%)", "Weekly (7d): You have used 80% of your quota. Consider slowing down."},
		{100, "ccdash - Limit Reached (100%)", "Weekly (7d): You have reached your usage limit. Wait for the reset."},
	}

	for _, tt := range tests {
		note, err := Build(models.WindowSevenDay, tt.threshold, models.WindowSevenDay.Label())
		require.NoError(t, err)
		assert.Equal(t, tt.title, note.Title)
		assert.Equal(t, tt.body, note.Body)
	}

	note, err := Build(models.WindowFiveHour, 80, `<b>"5h" & more</b>`)
	require.NoError(t, err)
	assert.Equal(t, `<b>"5h" & more</b>: You have used 80% of your quota. Consider slowing down.`, note.Body)
}

func TestCommandDispatcher(t *testing.T) {
	note := Notification{Title: `ccdash - "Warn"`, Body: "Session (5h): it's high"}

	tests := []struct {
		goos string
		name string
		args []string
	}{
		{"darwin", "osascript", []string{"-e", `display notification "Session (5h): it's high" with title "ccdash - \"Warn\""`}},
		{"linux", "notify-send", []string{"--app-name=ccdash", `ccdash - "Warn"`, "Session (5h): it's high"}},
	}

	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			var gotName string
			var gotArgs []string
			d := &CommandDispatcher{
				goos:     tt.goos,
				lookPath: func(string) (string, error) { return "/usr/bin/x", nil },
				run: func(ctx context.Context, name string, args ...string) error {
					gotName, gotArgs = name, args
					return nil
				},
			}

			ok, err := d.RequestPermission(context.Background())
			require.NoError(t, err)
			assert.True(t, ok)

			require.NoError(t, d.Send(context.Background(), note))
			assert.Equal(t, tt.name, gotName)
			assert.Equal(t, tt.args, gotArgs)
		})
	}

	t.Run("windows escapes quotes", func(t *testing.T) {
		d := &CommandDispatcher{goos: "windows"}
		name, args := d.command(note)
		assert.Equal(t, "powershell", name)
		assert.Contains(t, args[len(args)-1], "'Session (5h): it''s high'")
	})

	t.Run("missing tool", func(t *testing.T) {
		d := &CommandDispatcher{
			goos:     "linux",
			lookPath: func(string) (string, error) { return "", errors.New("not found") },
		}
		ok, err := d.RequestPermission(context.Background())
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
