package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/neilberkman/ccdash/internal/core/usage"
)

func (m Model) updateUsage(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "u", "ctrl+r":
		if !m.usage.Loading {
			return m, fetchUsage(m, false)
		}
	case "n":
		return m, toggleNotifications(m)
	case "esc":
		m.mode = historyView
	}
	return m, nil
}

func (m Model) viewUsage() string {
	var b strings.Builder
	now := m.deps.Now()

	b.WriteString(titleStyle.Render("Rate limits"))
	if m.usage.Loading {
		b.WriteString(" " + m.spinner.View())
	}
	b.WriteString("\n\n")

	rows := usage.Rows(m.usage.Usage)
	switch {
	case len(rows) == 0 && m.usageErr != "":
		b.WriteString(errorStyle.Render(m.usageErr))
		b.WriteString("\n\nRun `ccdash connect` to sign in.\n")
	case len(rows) == 0:
		b.WriteString(searchMetaStyle.Render("No usage data yet"))
		b.WriteString("\n")
	}

	barWidth := min(max(m.width-50, 10), 40)
	for _, r := range rows {
		fmt.Fprintf(&b, "%-16s %s %5s  resets in %-12s %s\n",
			r.Label,
			usageStyle(r.Status).Render(renderUsageBar(r.Utilization, barWidth)),
			usage.Percent(r.Utilization),
			usage.TimeUntil(r.ResetsAt, now),
			usageStyle(r.Status).Render(statusLabel(r.Status)))
	}

	if u := m.usage.Usage; u != nil && u.ExtraUsage != nil && u.ExtraUsage.IsEnabled {
		fmt.Fprintf(&b, "\nExtra usage: %s of %s\n",
			usage.Dollars(u.ExtraUsage.UsedCredits), usage.Dollars(u.ExtraUsage.MonthlyLimit))
	}

	b.WriteString("\n")
	if m.usage.Error != "" && len(rows) > 0 {
		b.WriteString(errorStyle.Render("Last refresh failed: "+m.usage.Error) + "\n")
	}
	if !m.usage.FetchedAt.IsZero() {
		b.WriteString(searchMetaStyle.Render("Updated " + humanize.RelTime(m.usage.FetchedAt, now, "ago", "from now")))
		b.WriteString("\n")
	}

	notifications := "off"
	if m.deps.Settings.Current().NotificationsEnabled {
		notifications = "on"
	}
	fmt.Fprintf(&b, "%s\n", searchMetaStyle.Render(fmt.Sprintf("Refresh every %s • notifications %s",
		m.deps.Settings.RefreshInterval(), notifications)))

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("u refresh • n toggle notifications • tab sessions • ? help • q quit"))
	return b.String()
}

// viewUsageSummary is the one-line usage shown in the header
func (m Model) viewUsageSummary() string {
	rows := usage.Rows(m.usage.Usage)
	if len(rows) == 0 {
		if m.usageErr != "" {
			return errorStyle.Render("not connected")
		}
		return searchMetaStyle.Render(usage.IdleTooltip)
	}

	parts := make([]string, 0, len(rows))
	for _, r := range rows {
		parts = append(parts, usageStyle(r.Status).Render(r.Label+" "+usage.Percent(r.Utilization)))
	}
	return strings.Join(parts, searchMetaStyle.Render(" • "))
}

// renderUsageBar draws a fixed width bar for a 0-100 utilization
func renderUsageBar(utilization float64, width int) string {
	filled := int(float64(width) * utilization / 100)
	filled = min(max(filled, 0), width)
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + "]"
}

func usageStyle(status string) lipgloss.Style {
	switch status {
	case usage.StatusCritical.String():
		return usageCriticalStyle
	case usage.StatusNearLimit.String():
		return usageNearStyle
	}
	return usageOKStyle
}

func statusLabel(status string) string {
	if status == usage.StatusOK.String() {
		return ""
	}
	return status
}
