package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/reflow/wordwrap"

	"github.com/neilberkman/ccdash/internal/core/transcript"
)

// Title, project, message count, separator and a blank line
const headerLines = 5

func (m Model) renderTranscript() Model {
	if m.current == nil {
		return m
	}
	m.viewport.SetContent(m.renderConversation(m.inSessionSearch.Value()))
	return m
}

// renderConversation renders the loaded transcript, highlighting query when
// set. The current match line gets a distinct highlight.
func (m Model) renderConversation(query string) string {
	width := max(m.width, 40)
	meta := m.current

	var b strings.Builder
	title := meta.Summary
	if title == "" {
		title = meta.ID
	}
	b.WriteString(titleStyle.Render("Session: "+firstLine(title)) + "\n")
	fmt.Fprintf(&b, "Project: %s\n", meta.ProjectPath)
	fmt.Fprintf(&b, "Messages: %d\n", meta.MessageCount)
	b.WriteString(strings.Repeat("─", width) + "\n\n")

	switch {
	case m.transcript.SessionID != meta.ID || m.transcript.Loading:
		b.WriteString(m.spinner.View() + " Loading transcript...")
		return b.String()
	case m.transcript.Error != "":
		b.WriteString(errorStyle.Render("Failed to load transcript: " + m.transcript.Error))
		return b.String()
	case m.transcript.Empty():
		b.WriteString(searchMetaStyle.Render("This session has no messages"))
		return b.String()
	}

	wrapWidth := max(width-4, 36)
	for _, msg := range m.transcript.Messages {
		style, label := userStyle, "USER"
		if msg.Role == transcript.RoleAssistant {
			style, label = assistantStyle, "ASSISTANT"
		}

		b.WriteString(style.Render("▸ " + label))
		if ts := formatMessageTime(msg.Timestamp); ts != "" {
			b.WriteString(" ")
			b.WriteString(timestampStyle.Render(ts))
		}
		b.WriteString("\n")

		for _, block := range msg.Blocks {
			text := m.renderBlock(block)
			if text == "" {
				continue
			}
			b.WriteString(wordwrap.String(text, wrapWidth))
			b.WriteString("\n")
		}
		b.WriteString("\n" + strings.Repeat("─", width) + "\n\n")
	}

	content := b.String()
	if query == "" {
		return content
	}

	current := -1
	if m.matchIdx >= 0 && m.matchIdx < len(m.matchLines) {
		current = m.matchLines[m.matchIdx]
	}

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if i >= headerLines {
			lines[i] = highlightLine(line, query, i == current)
		}
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderBlock(block transcript.Block) string {
	switch b := block.(type) {
	case transcript.TextBlock:
		return b.Text
	case transcript.ThinkingBlock:
		if !m.showTools {
			return ""
		}
		return thinkingStyle.Render("thinking: " + b.Text)
	case transcript.ToolUseBlock:
		if !m.showTools {
			return toolStyle.Render("⚙ " + b.Name)
		}
		return toolStyle.Render("⚙ "+b.Name) + "\n" + b.Input
	case transcript.ToolResultBlock:
		if !m.showTools {
			return ""
		}
		label := "result"
		if b.IsError {
			label = "error"
		}
		return toolStyle.Render(label+": ") + b.Output
	}
	return ""
}

// highlightLine highlights every case-insensitive occurrence of query. On
// the current line the first occurrence gets the current-match style.
func highlightLine(text, query string, isCurrent bool) string {
	lower := strings.ToLower(text)
	lowerQuery := strings.ToLower(query)
	if len(lower) != len(text) || !strings.Contains(lower, lowerQuery) {
		return text
	}

	var result strings.Builder
	last := 0
	first := true
	for {
		idx := strings.Index(lower[last:], lowerQuery)
		if idx == -1 {
			result.WriteString(text[last:])
			break
		}
		idx += last
		result.WriteString(text[last:idx])

		style := searchMatchStyle
		if isCurrent && first {
			style = searchCurrentMatchStyle
		}
		result.WriteString(style.Render(text[idx : idx+len(query)]))
		last = idx + len(query)
		first = false
	}
	return result.String()
}

// findMatchLines returns the rendered line numbers containing query
func (m Model) findMatchLines(query string) []int {
	if query == "" || m.current == nil {
		return nil
	}
	lines := strings.Split(m.renderConversation(""), "\n")
	q := strings.ToLower(query)

	var out []int
	for i, line := range lines {
		if i >= headerLines && strings.Contains(strings.ToLower(line), q) {
			out = append(out, i)
		}
	}
	return out
}

func (m Model) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.inSessionSearchMode {
		return m.updateInSessionSearch(msg)
	}

	switch msg.String() {
	case "esc", "q":
		m.mode = historyView
		m.current = nil
		m.loader.Reset()
		return m, nil

	case "r", "f":
		if m.current != nil {
			return m, resumeSession(m, buildRequest(m, *m.current, msg.String() == "f"))
		}
		return m, nil

	case "R":
		if m.current != nil {
			req := buildRequest(m, *m.current, false)
			m.launch = &req
			return m, tea.Quit
		}
		return m, nil

	case "c":
		if m.current != nil {
			return m, copyResumeCommand(m, buildRequest(m, *m.current, false))
		}
		return m, nil

	case "t":
		m.showTools = !m.showTools
		m.matchLines = m.findMatchLines(m.inSessionSearch.Value())
		return m.renderTranscript(), nil

	case "ctrl+f", "/":
		m.inSessionSearchMode = true
		m.inSessionSearch.Focus()
		return m, nil

	case "n", "p":
		if len(m.matchLines) > 0 {
			m.matchIdx = stepMatch(m.matchIdx, len(m.matchLines), msg.String() == "n")
			m = m.renderTranscript()
			scrollToMatchSmart(&m)
		}
		return m, nil

	case "j", "down":
		m.viewport.ScrollDown(1)
		return m, nil

	case "k", "up":
		m.viewport.ScrollUp(1)
		return m, nil

	case "d":
		m.viewport.HalfPageDown()
		return m, nil

	case "u":
		m.viewport.HalfPageUp()
		return m, nil

	case "g":
		m.viewport.GotoTop()
		return m, nil

	case "G":
		m.viewport.GotoBottom()
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) updateInSessionSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.inSessionSearchMode = false
		m.inSessionSearch.Blur()
		m.inSessionSearch.SetValue("")
		m.matchLines = nil
		m.matchIdx = 0
		return m.renderTranscript(), nil

	case "enter":
		// Keep the highlights and hand n/p back to navigation
		m.inSessionSearchMode = false
		m.inSessionSearch.Blur()
		return m, nil

	case "down":
		m.viewport.ScrollDown(1)
		return m, nil

	case "up":
		m.viewport.ScrollUp(1)
		return m, nil
	}

	var cmd tea.Cmd
	m.inSessionSearch, cmd = m.inSessionSearch.Update(msg)

	m.matchLines = m.findMatchLines(m.inSessionSearch.Value())
	m.matchIdx = 0
	m = m.renderTranscript()
	scrollToMatchAlways(&m)
	return m, cmd
}

func (m Model) viewDetail() string {
	if m.current == nil {
		return "No session loaded"
	}

	content := m.viewport.View()

	query := m.inSessionSearch.Value()
	if m.inSessionSearchMode || query != "" {
		box := "\n" + m.inSessionSearch.View()
		if len(m.matchLines) > 0 {
			box += fmt.Sprintf(" [%d/%d matches]", m.matchIdx+1, len(m.matchLines))
		} else if query != "" {
			box += " [no matches]"
		}
		content += box
	}

	footer := fmt.Sprintf("\n%3.f%%  ", m.viewport.ScrollPercent()*100)
	if m.inSessionSearchMode {
		footer += helpStyle.Render("enter: keep matches • ↑↓: scroll • esc: clear")
	} else {
		footer += helpStyle.Render("r resume • f fork • R resume here • c copy • t tools • / find • n/p next/prev • esc back")
	}
	return content + footer
}

func formatMessageTime(ts string) string {
	if ts == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return ts
	}
	return formatTime(t)
}
