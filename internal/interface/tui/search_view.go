package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// updateSearch handles keys while the history search box has focus. Arrow
// keys still move the selection so j/k can be typed.
func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.searchInput.Blur()
		m.searchInput.SetValue("")
		m.controller.SetQuery("")
		return m, nil

	case "enter":
		m.searchInput.Blur()
		if s, ok := m.selectedSession(); ok {
			return m.openSession(s)
		}
		return m, nil

	case "down", "ctrl+j", "up", "ctrl+k":
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(tea.KeyMsg{Type: arrowFor(msg.String())})
		return m, cmd
	}

	before := m.searchInput.Value()
	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	if query := m.searchInput.Value(); query != before {
		m.controller.SetQuery(query)
		m.list.ResetSelected()
	}
	return m, cmd
}

func arrowFor(key string) tea.KeyType {
	if key == "up" || key == "ctrl+k" {
		return tea.KeyUp
	}
	return tea.KeyDown
}

func (m Model) viewSearchBox() string {
	line := searchHeaderStyle.Render("Sessions ") + m.searchInput.View()

	switch {
	case m.search.Searching:
		line += " " + m.spinner.View() + searchMetaStyle.Render(" searching messages")
	case m.search.Error != "":
		line += " " + errorStyle.Render("search failed, showing local matches")
	case m.search.Query != "":
		line += " " + searchMetaStyle.Render(fmt.Sprintf("%d sessions", len(m.search.View.Sessions)))
	}
	return line
}
