package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

func (m Model) updateHelp(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q", "?":
		m.mode = m.back
	}
	return m, nil
}

func (m Model) viewHelp() string {
	help := `
ccdash - Help
═════════════

SESSIONS
────────
  ↑/↓, j/k     Navigate sessions
  Enter        View transcript
  /            Filter sessions; 2+ characters also search messages
  esc          Clear the filter
  r            Resume session in a new terminal
  f            Fork session (new session ID)
  R            Resume session in this terminal
  c            Copy resume command to clipboard
  s            Sync the search index
  ctrl+r       Reload the session list

TRANSCRIPT
──────────
  r/f/R/c      Resume, fork, resume here, copy
  t            Show tool calls and thinking
  /            Find in transcript
  n/p          Next/previous match
  j/k          Scroll line by line
  d/u          Scroll half page
  g/G          Jump to top/bottom
  esc          Back to sessions

USAGE
─────
  u            Refresh now
  n            Toggle threshold notifications

  tab          Switch between sessions and usage
  ?            Show this help
  q            Quit

Press ? or esc to go back
`

	return helpStyle.Render(help)
}
