package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/neilberkman/ccdash/internal/core/connection"
	"github.com/neilberkman/ccdash/internal/core/models"
	"github.com/neilberkman/ccdash/internal/core/session"
	"github.com/neilberkman/ccdash/internal/core/usage"
)

var usageJSON bool

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show Claude Code rate limit usage",
	Long: `Fetch current utilization of the 5-hour and weekly rate limit windows.

Connects automatically with the token the Claude Code CLI stored if no
connection exists yet. Crossing 80%, 90% or 100% in a window sends a desktop
notification unless notifications are turned off.`,
	Args: cobra.NoArgs,
	RunE: runUsage,
}

func init() {
	rootCmd.AddCommand(usageCmd)
	usageCmd.Flags().BoolVar(&usageJSON, "json", false, "Print the raw usage response as JSON")
}

func runUsage(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = app.Close()
	}()

	if err := ensureConnected(ctx, app); err != nil {
		return err
	}

	spinner := session.NewSpinner("Fetching usage...")
	if !usageJSON {
		spinner.Start()
	}
	err = app.Usage.Fetch(ctx)
	spinner.Stop()
	if err != nil {
		return err
	}

	state := app.Usage.State()
	if state.Error != "" {
		return errors.New(state.Error)
	}

	if usageJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(state.Usage)
	}

	printUsage(os.Stdout, state.Usage, state.FetchedAt, time.Now())
	return nil
}

// ensureConnected auto-detects a token when no connection is stored
func ensureConnected(ctx context.Context, app *App) error {
	if app.Connection.Current().IsConnected() {
		return nil
	}
	if app.Connection.AutoConnect(ctx) {
		app.Logger.Info("connected with detected Claude Code token")
		return nil
	}
	if msg := app.Connection.Error(); msg != "" {
		return fmt.Errorf("%w: %s", connection.ErrNotConnected, msg)
	}
	return connection.ErrNotConnected
}

func printUsage(w io.Writer, u *models.UsageResponse, fetchedAt, now time.Time) {
	rows := usage.Rows(u)
	if len(rows) == 0 {
		fmt.Fprintln(w, "No usage data.")
		return
	}

	for _, r := range rows {
		line := fmt.Sprintf("%-14s %s %5s", r.Label, usageBar(r.Utilization, 30), usage.Percent(r.Utilization))
		if !r.ResetsAt.IsZero() {
			line += "   resets in " + usage.TimeUntil(r.ResetsAt, now)
		}
		if st := usage.StatusOf(r.Utilization); st != usage.StatusOK {
			line += "   " + st.String()
		}
		fmt.Fprintln(w, line)
	}

	if extra := u.ExtraUsage; extra != nil && extra.IsEnabled {
		fmt.Fprintf(w, "\nExtra usage: %s of %s\n", usage.Dollars(extra.UsedCredits), usage.Dollars(extra.MonthlyLimit))
	}
	if !fetchedAt.IsZero() {
		fmt.Fprintf(w, "\nUpdated %s\n", formatTimestamp(fetchedAt, now))
	}
}

func usageBar(utilization float64, width int) string {
	filled := int(utilization / 100 * float64(width))
	filled = min(max(filled, 0), width)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
