package tui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/neilberkman/ccdash/internal/core/merge"
	"github.com/neilberkman/ccdash/internal/core/models"
)

type sessionListItem struct {
	session    models.SessionMeta
	matchCount int
	hasMatch   bool
}

func (i sessionListItem) FilterValue() string {
	return i.session.Summary + " " + i.session.ProjectPath
}

func (i sessionListItem) Title() string {
	if i.session.Summary != "" {
		return firstLine(i.session.Summary)
	}
	return shortID(i.session.ID) + "..."
}

func (i sessionListItem) Description() string {
	project := i.session.ProjectDisplay
	if project == "" {
		project = i.session.ProjectPath
	}
	return fmt.Sprintf("%s | %d messages | %s",
		project, i.session.MessageCount, formatTime(i.session.LastActivity()))
}

// Badge is the content match count, empty when the session only matched locally
func (i sessionListItem) Badge() string {
	if !i.hasMatch {
		return ""
	}
	if i.matchCount == 1 {
		return "1 match"
	}
	return fmt.Sprintf("%d matches", i.matchCount)
}

// sessionDelegate renders two lines per session with an optional match badge
type sessionDelegate struct {
	list.DefaultDelegate
}

func (d sessionDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	s, ok := item.(sessionListItem)
	if !ok {
		d.DefaultDelegate.Render(w, m, index, item)
		return
	}

	title := s.Title()
	desc := s.Description()

	if index == m.Index() {
		title = selectedItemStyle.Render("> " + title)
		desc = selectedItemStyle.Faint(true).Render("  " + desc)
	} else {
		title = itemStyle.Render(title)
		desc = itemStyle.Render(desc)
	}
	if badge := s.Badge(); badge != "" {
		title += " " + matchBadgeStyle.Render(badge)
	}

	_, _ = fmt.Fprintf(w, "%s\n%s", title, desc)
}

func sessionItems(view merge.View) []list.Item {
	items := make([]list.Item, len(view.Sessions))
	for i, s := range view.Sessions {
		n, ok := view.MatchCount(s.ID)
		items[i] = sessionListItem{session: s, matchCount: n, hasMatch: ok}
	}
	return items
}

func createSessionList(items []list.Item, width, height int) list.Model {
	delegate := sessionDelegate{DefaultDelegate: list.NewDefaultDelegate()}

	l := list.New(items, delegate, width, height)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false) // the search box above the list filters
	return l
}

func (m Model) selectedSession() (models.SessionMeta, bool) {
	selected, ok := m.list.SelectedItem().(sessionListItem)
	if !ok {
		return models.SessionMeta{}, false
	}
	return selected.session, true
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.searchInput.Focused() {
		return m.updateSearch(msg)
	}

	switch msg.String() {
	case "enter":
		if s, ok := m.selectedSession(); ok {
			return m.openSession(s)
		}
		return m, nil

	case "/":
		m.searchInput.Focus()
		return m, textinput.Blink

	case "esc":
		if m.searchInput.Value() != "" {
			m.searchInput.SetValue("")
			m.controller.SetQuery("")
		}
		return m, nil

	case "r", "f":
		if s, ok := m.selectedSession(); ok {
			return m, resumeSession(m, buildRequest(m, s, msg.String() == "f"))
		}
		return m, nil

	case "R":
		if s, ok := m.selectedSession(); ok {
			req := buildRequest(m, s, false)
			m.launch = &req
			return m, tea.Quit
		}
		return m, nil

	case "c":
		if s, ok := m.selectedSession(); ok {
			return m, copyResumeCommand(m, buildRequest(m, s, false))
		}
		return m, nil

	case "s":
		if !m.syncing {
			m.syncing = true
			return m, syncIndex(m)
		}
		return m, nil

	case "ctrl+r":
		return m, refreshCatalog(m)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) openSession(s models.SessionMeta) (tea.Model, tea.Cmd) {
	m.current = &s
	m.mode = detailView
	m.inSessionSearchMode = false
	m.inSessionSearch.SetValue("")
	m.matchLines = nil
	m.matchIdx = 0
	return m, loadTranscript(m, s)
}

func (m Model) viewList() string {
	var b strings.Builder
	b.WriteString(m.viewSearchBox())
	b.WriteString("\n")

	switch {
	case m.deps.Catalog.Error() != "":
		b.WriteString(errorStyle.Render(m.deps.Catalog.Error()))
	case len(m.search.View.Sessions) == 0 && m.search.Query == "":
		b.WriteString(searchMetaStyle.Render("No sessions found in " + m.deps.ClaudeDir))
	case len(m.search.View.Sessions) == 0 && !m.search.Searching:
		b.WriteString(searchMetaStyle.Render("No matching sessions"))
	default:
		b.WriteString(m.list.View())
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter open • / search • r resume • f fork • c copy • s sync • tab usage • ? help • q quit"))
	return b.String()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return humanize.Time(t)
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}
