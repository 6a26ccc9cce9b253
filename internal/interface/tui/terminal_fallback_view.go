package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/neilberkman/ccdash/internal/core/session"
	"github.com/neilberkman/ccdash/internal/core/terminal"
)

func (m Model) updateTerminalFallback(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.fallback == nil {
		m.mode = m.back
		return m, nil
	}

	switch msg.String() {
	case "r":
		// Resume in this terminal once the TUI exits
		req := *m.fallback
		m.launch = &req
		return m, tea.Quit

	case "c":
		return m, copyResumeCommand(m, *m.fallback)

	case "q", "esc":
		m.fallback = nil
		m.mode = m.back
		return m, nil
	}

	return m, nil
}

func (m Model) viewTerminalFallback() string {
	if m.fallback == nil {
		return ""
	}
	req := *m.fallback
	cmd := "cd " + terminal.ShellEscape(session.ResolveWorkingDir(req.ProjectPath, req.LastCwd)) +
		" && claude --resume " + req.SessionID

	return fmt.Sprintf(`
%s

Cannot open a new terminal window here (no supported terminal emulator,
or a remote session). Set terminal_command in config.toml to choose one.

Command to resume:

  %s

Options:

  r - Resume in THIS terminal
  c - Copy the command to the clipboard
  q - Cancel

`, titleStyle.Render("Terminal Not Available"), cmd)
}
