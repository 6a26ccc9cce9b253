package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/neilberkman/ccdash/internal/core/models"
	"github.com/neilberkman/ccdash/internal/core/search"
	"github.com/neilberkman/ccdash/internal/core/session"
	"github.com/neilberkman/ccdash/internal/interface/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive dashboard",
	Long:  "Browse and search Claude Code sessions and watch rate limit usage in a terminal UI",
	Args:  cobra.NoArgs,
	RunE:  runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

// unavailableSearcher reports why content search cannot run; the history
// view falls back to local filtering
type unavailableSearcher struct{ err error }

func (s unavailableSearcher) SearchSessions(ctx context.Context, query string) ([]models.SearchMatch, error) {
	return nil, s.err
}

func runTUI(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	logFile, err := os.OpenFile(filepath.Join(os.TempDir(), "ccdash-tui.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err == nil {
		logOutput = logFile
		defer func() {
			logOutput = os.Stderr
			_ = logFile.Close()
		}()
	}

	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = app.Close()
	}()

	var searcher search.Searcher
	if database, err := app.DB(); err != nil {
		searcher = unavailableSearcher{err: err}
	} else {
		searcher = search.NewAdapter(database)
	}

	resumer := app.Resumer()
	model := tui.New(ctx, tui.Deps{
		Catalog:     app.Catalog,
		Searcher:    searcher,
		SearchDelay: app.Config.SearchDebounce,
		Reader:      app.lister(),
		ClaudeDir:   app.ClaudeDir(),
		Usage:       app.Usage,
		Settings:    app.Settings,
		Notifier:    app.Notifier,
		Resumer:     resumer,
		Connect: func(ctx context.Context) error {
			return ensureConnected(ctx, app)
		},
		Sync: func(ctx context.Context) error {
			return quietSync(ctx, app)
		},
		ResumeRequest: func(ctx context.Context, meta models.SessionMeta, fork bool) session.ResumeRequest {
			return resumeRequest(ctx, app, meta, fork)
		},
	})
	defer model.Close()

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)

	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	// Resume in this terminal once the alt screen is gone
	if m, ok := finalModel.(tui.Model); ok {
		if req, ok := m.LaunchRequest(); ok {
			return launchClaude(req, resumer.Options)
		}
	}
	return nil
}
