package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
	"sync"
)

// CommandDispatcher shows notifications through the platform's command line
// notifier: osascript on macOS, notify-send on Linux, PowerShell on Windows.
type CommandDispatcher struct {
	goos     string
	lookPath func(string) (string, error)
	run      func(ctx context.Context, name string, args ...string) error
}

// NewCommandDispatcher returns a dispatcher for the running OS
func NewCommandDispatcher() *CommandDispatcher {
	return &CommandDispatcher{
		goos:     runtime.GOOS,
		lookPath: exec.LookPath,
		run: func(ctx context.Context, name string, args ...string) error {
			return exec.CommandContext(ctx, name, args...).Run()
		},
	}
}

func (d *CommandDispatcher) tool() string {
	switch d.goos {
	case "darwin":
		return "osascript"
	case "windows":
		return "powershell"
	default:
		return "notify-send"
	}
}

// RequestPermission reports whether the notifier command is installed
func (d *CommandDispatcher) RequestPermission(ctx context.Context) (bool, error) {
	_, err := d.lookPath(d.tool())
	return err == nil, nil
}

// Send runs the notifier command
func (d *CommandDispatcher) Send(ctx context.Context, n Notification) error {
	name, args := d.command(n)
	if err := d.run(ctx, name, args...); err != nil {
		return fmt.Errorf("failed to run %s: %w", name, err)
	}
	return nil
}

func (d *CommandDispatcher) command(n Notification) (string, []string) {
	switch d.goos {
	case "darwin":
		script := fmt.Sprintf("display notification %s with title %s", appleScriptString(n.Body), appleScriptString(n.Title))
		return "osascript", []string{"-e", script}
	case "windows":
		return "powershell", []string{"-NoProfile", "-NonInteractive", "-Command", toastScript(n)}
	default:
		return "notify-send", []string{"--app-name=" + AppName, n.Title, n.Body}
	}
}

func appleScriptString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

func psString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func toastScript(n Notification) string {
	return strings.Join([]string{
		"[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] | Out-Null",
		"$t = [Windows.UI.Notifications.ToastNotificationManager]::GetTemplateContent([Windows.UI.Notifications.ToastTemplateType]::ToastText02)",
		"$x = $t.GetElementsByTagName('text')",
		"$x.Item(0).AppendChild($t.CreateTextNode(" + psString(n.Title) + ")) | Out-Null",
		"$x.Item(1).AppendChild($t.CreateTextNode(" + psString(n.Body) + ")) | Out-Null",
		"[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier(" + psString(AppName) + ").Show([Windows.UI.Notifications.ToastNotification]::new($t))",
	}, "; ")
}

// LogDispatcher writes notifications to a logger and keeps them for
// inspection. It is used when no desktop is available.
type LogDispatcher struct {
	Logger *slog.Logger
	Deny   bool

	mu       sync.Mutex
	sent     []Notification
	requests int
}

// RequestPermission grants unless Deny is set
func (d *LogDispatcher) RequestPermission(ctx context.Context) (bool, error) {
	d.mu.Lock()
	d.requests++
	d.mu.Unlock()
	return !d.Deny, nil
}

// Send logs n
func (d *LogDispatcher) Send(ctx context.Context, n Notification) error {
	d.mu.Lock()
	d.sent = append(d.sent, n)
	d.mu.Unlock()

	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info(n.Title, "body", n.Body, "window", string(n.Window), "threshold", n.Threshold)
	return nil
}

// Sent returns every notification sent so far
func (d *LogDispatcher) Sent() []Notification {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Notification(nil), d.sent...)
}

// PermissionRequests counts RequestPermission calls
func (d *LogDispatcher) PermissionRequests() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.requests
}
