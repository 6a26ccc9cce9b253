package session

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cbroglie/mustache"
	"github.com/dustin/go-humanize"

	"github.com/neilberkman/ccdash/internal/core/terminal"
)

// ResumeRequest identifies the session to resume
type ResumeRequest struct {
	SessionID   string
	ProjectPath string
	LastCwd     string // where the session was last working, if known
	UpdatedAt   string // last activity, RFC3339 or "2006-01-02 15:04:05"
	Fork        bool
}

// CommandOptions controls how the claude command line is built
type CommandOptions struct {
	PromptTemplate string
	ClaudeFlags    []string

	// InlinePrompt puts the prompt on the command line instead of a temp
	// file. Used when the command runs somewhere the temp file is not
	// visible, such as inside WSL.
	InlinePrompt bool

	Now func() time.Time
}

// RenderPrompt renders the resume prompt template for req
func RenderPrompt(tmpl string, req ResumeRequest, now time.Time) string {
	updatedTime := parseUpdated(req.UpdatedAt)

	timeSince := "unknown"
	if !updatedTime.IsZero() {
		timeSince = humanize.RelTime(updatedTime, now, "ago", "from now")
	}

	lastCwd := req.LastCwd
	if lastCwd == "" {
		lastCwd = req.ProjectPath
	}

	// Check if we're already in the right directory
	sameDir := lastCwd == req.ProjectPath

	templateData := map[string]interface{}{
		"last_updated":        req.UpdatedAt,
		"last_cwd":            lastCwd,
		"time_since":          timeSince,
		"project_path":        req.ProjectPath,
		"same_directory":      sameDir,
		"different_directory": !sameDir,
	}

	prompt, err := mustache.Render(tmpl, templateData)
	if err != nil {
		// Fall back to simple prompt if template fails
		return fmt.Sprintf("Resuming session. You were last in: %s", lastCwd)
	}
	return prompt
}

func parseUpdated(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// BuildResumeCommand builds the complete claude command with config flags
// and resume prompt. Unless opts.InlinePrompt is set the prompt is written
// to a temp file and the returned cleanup removes it.
func BuildResumeCommand(req ResumeRequest, opts CommandOptions) (cmd string, cleanup func(), err error) {
	cleanup = func() {}

	now := time.Now()
	if opts.Now != nil {
		now = opts.Now()
	}
	resumePrompt := RenderPrompt(opts.PromptTemplate, req, now)

	// Build claude command with config flags
	flags := ""
	if len(opts.ClaudeFlags) > 0 {
		flags = " " + strings.Join(opts.ClaudeFlags, " ")
	}
	fork := ""
	if req.Fork {
		fork = " --fork-session"
	}

	if opts.InlinePrompt {
		return fmt.Sprintf("claude%s --resume %s%s %s", flags, req.SessionID, fork, terminal.ShellEscape(resumePrompt)), cleanup, nil
	}

	// Write prompt to temp file to avoid shell escaping issues
	tmpfile, err := os.CreateTemp("", "ccdash-prompt-*.txt")
	if err != nil {
		return "", cleanup, fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmpfile.Write([]byte(resumePrompt)); err != nil {
		_ = tmpfile.Close()
		_ = os.Remove(tmpfile.Name())
		return "", cleanup, fmt.Errorf("failed to write prompt: %w", err)
	}
	_ = tmpfile.Close()

	name := tmpfile.Name()
	cleanup = func() { _ = os.Remove(name) }
	return fmt.Sprintf("claude%s --resume %s%s \"$(cat %s)\"", flags, req.SessionID, fork, name), cleanup, nil
}
