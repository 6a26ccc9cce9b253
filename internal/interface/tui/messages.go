package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/neilberkman/ccdash/internal/core/models"
	"github.com/neilberkman/ccdash/internal/core/session"
)

// signal wakes the UI when a controller publishes new state. Sends never
// block and repeated fires coalesce; the receiver pulls the latest state.
type signal chan struct{}

func newSignal() signal {
	return make(signal, 1)
}

func (s signal) fire() {
	select {
	case s <- struct{}{}:
	default:
	}
}

func (s signal) wait(msg tea.Msg) tea.Cmd {
	return func() tea.Msg {
		<-s
		return msg
	}
}

type (
	searchChangedMsg     struct{}
	transcriptChangedMsg struct{}
	usageChangedMsg      struct{}
	usageTickMsg         struct{}
)

type catalogLoadedMsg struct {
	err error
}

type usageFetchedMsg struct {
	scheduled bool // part of the refresh loop rather than a manual refresh
	err       error
}

type syncDoneMsg struct {
	err error
}

type resumeDoneMsg struct {
	req  session.ResumeRequest
	line string // the copied command line, for copy
	copy bool
	err  error
}

type notificationsToggledMsg struct {
	enabled bool
	err     error
}

func refreshCatalog(m Model) tea.Cmd {
	return func() tea.Msg {
		err := m.deps.Catalog.Refresh(m.ctx)
		m.controller.SetCatalog(m.deps.Catalog.Sessions())
		return catalogLoadedMsg{err: err}
	}
}

func fetchUsage(m Model, scheduled bool) tea.Cmd {
	return func() tea.Msg {
		if m.deps.Connect != nil {
			if err := m.deps.Connect(m.ctx); err != nil {
				return usageFetchedMsg{scheduled: scheduled, err: err}
			}
		}
		return usageFetchedMsg{scheduled: scheduled, err: m.deps.Usage.Fetch(m.ctx)}
	}
}

func scheduleUsage(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return usageTickMsg{}
	})
}

func syncIndex(m Model) tea.Cmd {
	return func() tea.Msg {
		if m.deps.Sync == nil {
			return syncDoneMsg{}
		}
		err := m.deps.Sync(m.ctx)
		if err == nil {
			m.controller.Refresh()
		}
		return syncDoneMsg{err: err}
	}
}

func loadTranscript(m Model, meta models.SessionMeta) tea.Cmd {
	return func() tea.Msg {
		m.loader.Load(m.ctx, meta.ID, meta.ProjectPath)
		return nil
	}
}

func buildRequest(m Model, meta models.SessionMeta, fork bool) session.ResumeRequest {
	if m.deps.ResumeRequest != nil {
		return m.deps.ResumeRequest(m.ctx, meta, fork)
	}
	return session.ResumeRequest{
		SessionID:   meta.ID,
		ProjectPath: meta.ProjectPath,
		LastCwd:     meta.ProjectPath,
		UpdatedAt:   meta.LastTimestamp,
		Fork:        fork,
	}
}

func resumeSession(m Model, req session.ResumeRequest) tea.Cmd {
	return func() tea.Msg {
		return resumeDoneMsg{req: req, err: m.deps.Resumer.Resume(req)}
	}
}

func copyResumeCommand(m Model, req session.ResumeRequest) tea.Cmd {
	return func() tea.Msg {
		line, err := m.deps.Resumer.Copy(req)
		return resumeDoneMsg{req: req, line: line, copy: true, err: err}
	}
}

func toggleNotifications(m Model) tea.Cmd {
	return func() tea.Msg {
		enabled := !m.deps.Settings.Current().NotificationsEnabled
		if err := m.deps.Settings.SetNotifications(m.ctx, enabled); err != nil {
			return notificationsToggledMsg{err: err}
		}
		if m.deps.Notifier != nil {
			m.deps.Notifier.SetEnabled(enabled)
		}
		return notificationsToggledMsg{enabled: enabled}
	}
}
