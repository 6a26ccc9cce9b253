package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/neilberkman/ccdash/internal/core/catalog"
	"github.com/neilberkman/ccdash/internal/core/models"
	"github.com/neilberkman/ccdash/internal/core/notify"
	"github.com/neilberkman/ccdash/internal/core/search"
	"github.com/neilberkman/ccdash/internal/core/session"
	"github.com/neilberkman/ccdash/internal/core/settings"
	"github.com/neilberkman/ccdash/internal/core/terminal"
	"github.com/neilberkman/ccdash/internal/core/transcript"
	"github.com/neilberkman/ccdash/internal/core/usage"
)

type viewMode int

const (
	historyView viewMode = iota
	usageView
	detailView
	helpView
	terminalFallbackView
)

// Deps are the services the TUI drives
type Deps struct {
	Catalog     *catalog.Catalog
	Searcher    search.Searcher
	SearchDelay time.Duration
	Reader      transcript.Reader
	ClaudeDir   string
	Usage       *usage.Aggregator
	Settings    *settings.Store
	Notifier    *notify.Notifier
	Resumer     *session.Resumer

	// Connect makes credentials available before a usage fetch
	Connect func(ctx context.Context) error
	// Sync updates the search index
	Sync func(ctx context.Context) error
	// ResumeRequest fills in launch details for a session
	ResumeRequest func(ctx context.Context, meta models.SessionMeta, fork bool) session.ResumeRequest

	Now func() time.Time
}

type Model struct {
	ctx  context.Context
	deps Deps
	mode viewMode
	back viewMode // where esc returns to from help and the fallback view

	controller        *search.Controller
	loader            *transcript.Loader
	searchChanged     signal
	transcriptChanged signal
	usageChanged      signal

	// History
	list        list.Model
	searchInput textinput.Model
	search      search.State

	// Detail
	viewport            viewport.Model
	transcript          transcript.State
	current             *models.SessionMeta
	showTools           bool
	inSessionSearch     textinput.Model
	inSessionSearchMode bool
	matchLines          []int
	matchIdx            int

	// Usage
	usage    usage.State
	usageErr string
	spinner  spinner.Model

	syncing  bool
	status   string
	err      error
	width    int
	height   int
	fallback *session.ResumeRequest
	launch   *session.ResumeRequest
}

// New builds the TUI model. ctx bounds every background call it makes.
func New(ctx context.Context, deps Deps) Model {
	if deps.Now == nil {
		deps.Now = time.Now
	}

	searchChanged := newSignal()
	transcriptChanged := newSignal()
	usageChanged := newSignal()

	controller := search.NewController(ctx, deps.Searcher, deps.SearchDelay, func(search.State) {
		searchChanged.fire()
	})
	loader := transcript.NewLoader(deps.Reader, deps.ClaudeDir, func(transcript.State) {
		transcriptChanged.fire()
	})
	deps.Usage.OnChange(func(usage.State) {
		usageChanged.fire()
	})

	input := textinput.New()
	input.Prompt = "/ "
	input.Placeholder = "filter by project or summary (2+ characters also searches messages)"
	input.CharLimit = 200

	inSession := textinput.New()
	inSession.Prompt = "Find: "
	inSession.CharLimit = 200

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		ctx:               ctx,
		deps:              deps,
		mode:              historyView,
		controller:        controller,
		loader:            loader,
		searchChanged:     searchChanged,
		transcriptChanged: transcriptChanged,
		usageChanged:      usageChanged,
		list:              createSessionList(nil, 80, 20),
		viewport:          viewport.New(80, 20),
		searchInput:       input,
		inSessionSearch:   inSession,
		usage:             deps.Usage.State(),
		spinner:           sp,
	}
}

// LaunchRequest returns the session to resume in this terminal after the
// program exits, if one was chosen
func (m Model) LaunchRequest() (session.ResumeRequest, bool) {
	if m.launch == nil {
		return session.ResumeRequest{}, false
	}
	return *m.launch, true
}

// Close stops background search work
func (m Model) Close() {
	m.controller.Close()
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		refreshCatalog(m),
		fetchUsage(m, true),
		m.searchChanged.wait(searchChangedMsg{}),
		m.transcriptChanged.wait(transcriptChangedMsg{}),
		m.usageChanged.wait(usageChangedMsg{}),
		m.spinner.Tick,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width, m.listHeight())
		m.viewport.Width = msg.Width
		m.viewport.Height = m.detailHeight()
		m = m.renderTranscript()
		return m, nil

	case searchChangedMsg:
		m.search = m.controller.State()
		m.list.SetItems(sessionItems(m.search.View))
		return m, m.searchChanged.wait(searchChangedMsg{})

	case transcriptChangedMsg:
		m.transcript = m.loader.State()
		m = m.renderTranscript()
		if !m.transcript.Loading {
			m.viewport.GotoTop()
		}
		return m, m.transcriptChanged.wait(transcriptChangedMsg{})

	case usageChangedMsg:
		m.usage = m.deps.Usage.State()
		return m, m.usageChanged.wait(usageChangedMsg{})

	case catalogLoadedMsg:
		if msg.err != nil {
			m.err = fmt.Errorf("failed to list sessions: %w", msg.err)
		}
		return m, nil

	case usageFetchedMsg:
		m.usageErr = ""
		if msg.err != nil {
			m.usageErr = msg.err.Error()
		}
		if !msg.scheduled {
			return m, nil
		}
		return m, scheduleUsage(m.deps.Settings.RefreshInterval())

	case usageTickMsg:
		return m, fetchUsage(m, true)

	case syncDoneMsg:
		m.syncing = false
		if msg.err != nil {
			m.err = fmt.Errorf("sync failed: %w", msg.err)
			return m, nil
		}
		m.status = "Search index synced"
		return m, refreshCatalog(m)

	case resumeDoneMsg:
		return m.handleResumeDone(msg)

	case notificationsToggledMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		if msg.enabled {
			m.status = "Notifications on"
		} else {
			m.status = "Notifications off"
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.MouseMsg:
		return m.updateMouse(msg)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if !m.typing() {
			m.err = nil
			m.status = ""
			switch msg.String() {
			case "q":
				if m.mode == historyView || m.mode == usageView {
					return m, tea.Quit
				}
			case "?":
				if m.mode != helpView {
					m.back = m.mode
					m.mode = helpView
					return m, nil
				}
			case "tab":
				switch m.mode {
				case historyView:
					m.mode = usageView
					return m, nil
				case usageView:
					m.mode = historyView
					return m, nil
				}
			}
		}

		switch m.mode {
		case historyView:
			return m.updateList(msg)
		case usageView:
			return m.updateUsage(msg)
		case detailView:
			return m.updateDetail(msg)
		case helpView:
			return m.updateHelp(msg)
		case terminalFallbackView:
			return m.updateTerminalFallback(msg)
		}
	}

	return m, nil
}

func (m Model) updateMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.mode {
	case detailView:
		m.viewport, cmd = m.viewport.Update(msg)
	case historyView:
		m.list, cmd = m.list.Update(msg)
	}
	return m, cmd
}

func (m Model) handleResumeDone(msg resumeDoneMsg) (tea.Model, tea.Cmd) {
	switch {
	case errors.Is(msg.err, terminal.ErrNoTerminal):
		req := msg.req
		m.fallback = &req
		if m.mode != terminalFallbackView {
			m.back = m.mode
		}
		m.mode = terminalFallbackView
	case msg.copy && msg.err != nil:
		m.err = fmt.Errorf("clipboard unavailable, run: %s", msg.line)
	case msg.err != nil:
		m.err = msg.err
	case msg.copy:
		m.status = "Resume command copied to clipboard"
	default:
		m.status = "Opened session " + shortID(msg.req.SessionID) + " in a new terminal"
	}
	return m, nil
}

// typing reports whether keys go to a text input
func (m Model) typing() bool {
	switch m.mode {
	case historyView:
		return m.searchInput.Focused()
	case detailView:
		return m.inSessionSearchMode
	}
	return false
}

func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var body string
	switch m.mode {
	case historyView:
		body = m.viewList()
	case usageView:
		body = m.viewUsage()
	case detailView:
		body = m.viewDetail()
	case helpView:
		body = m.viewHelp()
	case terminalFallbackView:
		body = m.viewTerminalFallback()
	}

	var b strings.Builder
	b.WriteString(m.viewHeader())
	b.WriteString("\n")
	b.WriteString(body)
	if line := m.viewStatus(); line != "" {
		b.WriteString("\n")
		b.WriteString(line)
	}
	return b.String()
}

func (m Model) viewHeader() string {
	tabs := []string{tabStyle.Render("Sessions"), tabStyle.Render("Usage")}
	switch m.mode {
	case historyView, detailView:
		tabs[0] = activeTabStyle.Render("Sessions")
	case usageView:
		tabs[1] = activeTabStyle.Render("Usage")
	}
	return titleStyle.Render("ccdash") + " " + strings.Join(tabs, "") + "  " + m.viewUsageSummary()
}

func (m Model) viewStatus() string {
	switch {
	case m.err != nil:
		return errorStyle.Render("Error: " + m.err.Error())
	case m.syncing:
		return m.spinner.View() + " Syncing search index..."
	case m.status != "":
		return statusStyle.Render(m.status)
	}
	return ""
}

// Header and status line take one row each
func (m Model) listHeight() int {
	return max(m.height-5, 3)
}

func (m Model) detailHeight() int {
	return max(m.height-6, 3)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
