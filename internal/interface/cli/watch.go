package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/neilberkman/ccdash/internal/core/daemon"
)

var watchNoFiles bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep usage, sessions and the search index up to date",
	Long: `Run in the foreground, refreshing on the configured interval:

  - usage is fetched, the tray cache is updated, and threshold
    notifications are sent
  - the session list is reloaded
  - the search index is synced

Session files are also watched, so a change is indexed within a second of
the Claude Code CLI writing it. The tray tooltip is printed whenever it
changes. Press Ctrl-C to stop.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().BoolVar(&watchNoFiles, "no-files", false, "Refresh on the interval only, without watching session files")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = app.Close()
	}()

	if err := ensureConnected(ctx, app); err != nil {
		app.Logger.Warn("usage refresh disabled until connected", "error", err)
	}

	jobs := []daemon.Job{
		{Name: "usage", Run: func(ctx context.Context) error {
			if err := app.Usage.Fetch(ctx); err != nil {
				return err
			}
			printTray(app)
			return nil
		}},
		{Name: "sessions", Run: app.Catalog.Refresh},
		{Name: "index", Run: func(ctx context.Context) error {
			return quietSync(ctx, app)
		}},
	}
	sched := daemon.NewScheduler(app.Settings.RefreshInterval, jobs...).WithLogger(app.Logger)

	fmt.Printf("Watching %s (refresh every %s, Ctrl-C to stop)\n", app.ProjectsDir(), app.Settings.RefreshInterval())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sched.Run(ctx)
	})

	if !watchNoFiles {
		w, err := daemon.NewWatcher(app.ProjectsDir(), func(ctx context.Context, paths []string) {
			reindex(ctx, app, paths)
		})
		if err != nil {
			app.Logger.Warn("not watching session files", "error", err)
		} else {
			w.WithLogger(app.Logger)
			g.Go(func() error {
				return w.Run(ctx)
			})
		}
	}

	err = g.Wait()
	stats := sched.Stats()
	fmt.Printf("\nStopped after %d refreshes (%d errors) in %s\n", stats.Runs, stats.Errors, time.Since(stats.StartTime).Round(time.Second))
	return err
}

// reindex imports the changed files and reloads the session list
func reindex(ctx context.Context, app *App, paths []string) {
	imp, err := app.Importer()
	if err != nil {
		app.Logger.Warn("failed to open index", "error", err)
		return
	}
	for _, p := range paths {
		if _, err := imp.ImportFile(ctx, p); err != nil {
			app.Logger.Warn("failed to index session", "path", p, "error", err)
		}
	}
	if err := app.Catalog.Refresh(ctx); err != nil {
		app.Logger.Warn("failed to list sessions", "error", err)
	}
	app.Logger.Info("indexed changed sessions", "count", len(paths))
}

func printTray(app *App) {
	if tooltip, changed := app.Usage.TrayUpdate(); changed {
		fmt.Printf("[%s] %s\n", time.Now().Format("15:04:05"), tooltip)
	}
}
