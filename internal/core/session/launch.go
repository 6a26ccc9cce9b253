package session

import (
	"fmt"

	"github.com/atotto/clipboard"

	"github.com/neilberkman/ccdash/internal/core/config"
	"github.com/neilberkman/ccdash/internal/core/terminal"
)

// ResolveWorkingDir determines the correct directory to start claude --resume
//
// Always returns projectPath, NOT lastCwd: claude --resume only finds
// sessions stored under the project directory. The resume prompt tells
// Claude where the session last was.
func ResolveWorkingDir(projectPath, lastCwd string) string {
	return projectPath
}

// Launcher is what opens the resumed session
type Launcher interface {
	Spawn(cfg terminal.SpawnConfig) error
}

// Resumer starts claude --resume for a session in a new terminal
type Resumer struct {
	Options  CommandOptions
	Launcher Launcher

	copy func(string) error
}

// NewResumer builds a Resumer from config. With useWSL the command runs in
// the WSL distro and the prompt is passed inline.
func NewResumer(cfg *config.Config, useWSL bool, distro string) *Resumer {
	return &Resumer{
		Options: CommandOptions{
			PromptTemplate: cfg.ResumePromptTemplate,
			ClaudeFlags:    cfg.ClaudeFlags,
			InlinePrompt:   useWSL,
		},
		Launcher: terminal.NewSpawner(cfg.TerminalCommand, useWSL, distro),
		copy:     clipboard.WriteAll,
	}
}

// Resume opens a terminal running the resume command. The prompt file is
// left for the new shell to read.
func (r *Resumer) Resume(req ResumeRequest) error {
	cmd, cleanup, err := BuildResumeCommand(req, r.Options)
	if err != nil {
		return err
	}

	err = r.Launcher.Spawn(terminal.SpawnConfig{
		WorkingDir: ResolveWorkingDir(req.ProjectPath, req.LastCwd),
		Command:    cmd,
	})
	if err != nil {
		cleanup()
		return fmt.Errorf("failed to open terminal: %w", err)
	}
	return nil
}

// Copy puts "cd <project> && <resume command>" on the clipboard and
// returns it
func (r *Resumer) Copy(req ResumeRequest) (string, error) {
	opts := r.Options
	opts.InlinePrompt = true
	cmd, _, err := BuildResumeCommand(req, opts)
	if err != nil {
		return "", err
	}

	line := "cd " + terminal.ShellEscape(ResolveWorkingDir(req.ProjectPath, req.LastCwd)) + " && " + cmd
	copyFn := r.copy
	if copyFn == nil {
		copyFn = clipboard.WriteAll
	}
	if err := copyFn(line); err != nil {
		return line, fmt.Errorf("failed to copy to clipboard: %w", err)
	}
	return line, nil
}
