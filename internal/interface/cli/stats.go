package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show search index statistics",
	Long: `Display statistics about the ccdash search index.

Shows session, message and project counts, date range, and storage info.
When Claude Code has written ~/.claude/stats-cache.json, its activity totals
and the last week of daily activity follow, including days the cache does not
cover yet.`,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer func() {
		_ = app.Close()
	}()

	database, err := app.DB()
	if err != nil {
		return err
	}

	stats, err := database.GetStats()
	if err != nil {
		return fmt.Errorf("failed to read stats: %w", err)
	}

	fmt.Println("Index Statistics")
	fmt.Println("================")
	fmt.Println()
	fmt.Printf("Total Sessions:    %s\n", humanize.Comma(int64(stats.TotalSessions)))
	fmt.Printf("Total Messages:    %s\n", humanize.Comma(int64(stats.TotalMessages)))
	fmt.Printf("Total Projects:    %s\n", humanize.Comma(int64(stats.TotalProjects)))
	fmt.Println()

	if stats.TotalSessions > 0 {
		if !stats.OldestSession.IsZero() {
			fmt.Printf("Oldest Session:    %s\n", stats.OldestSession.Format("Jan 2, 2006 3:04 PM"))
		}
		if !stats.NewestSession.IsZero() {
			fmt.Printf("Newest Session:    %s\n", stats.NewestSession.Format("Jan 2, 2006 3:04 PM"))
		}
		fmt.Println()

		if stats.MostActiveProject != "" {
			fmt.Printf("Most Active Project:\n")
			fmt.Printf("  Path:     %s\n", stats.MostActiveProject)
			fmt.Printf("  Sessions: %d\n", stats.MostActiveProjectCount)
			fmt.Println()
		}
	}

	fileInfo, err := os.Stat(app.Config.DBPath)
	if err != nil {
		return fmt.Errorf("failed to stat database file: %w", err)
	}

	fmt.Printf("Database Location: %s\n", app.Config.DBPath)
	fmt.Printf("Database Size:     %s\n", humanize.Bytes(uint64(fileInfo.Size())))

	return printActivity(cmd.Context(), app)
}

const activityDays = 7

func printActivity(ctx context.Context, app *App) error {
	stats, err := app.ClaudeJSON().GlobalStats(ctx, time.Now())
	if err != nil {
		app.Logger.Debug("no activity stats", "error", err)
		return nil
	}

	fmt.Println()
	fmt.Println("Claude Code Activity")
	fmt.Println("====================")
	fmt.Println()
	fmt.Printf("Sessions:          %s\n", humanize.Comma(stats.TotalSessions))
	fmt.Printf("Messages:          %s\n", humanize.Comma(stats.TotalMessages))
	if stats.FirstSessionDate != "" {
		fmt.Printf("First Session:     %s\n", stats.FirstSessionDate)
	}
	if ls := stats.LongestSession; ls != nil && ls.Duration > 0 {
		fmt.Printf("Longest Session:   %s (%d messages)\n", time.Duration(ls.Duration)*time.Millisecond, ls.MessageCount)
	}

	days := stats.DailyActivity
	if len(days) == 0 {
		return nil
	}
	if len(days) > activityDays {
		days = days[len(days)-activityDays:]
	}
	fmt.Println()
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tMESSAGES\tSESSIONS\tTOOL CALLS")
	for _, d := range days {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", d.Date, humanize.Comma(d.MessageCount), d.SessionCount, humanize.Comma(d.ToolCallCount))
	}
	return tw.Flush()
}
