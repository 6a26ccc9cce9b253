package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/neilberkman/ccdash/internal/core/catalog"
	"github.com/neilberkman/ccdash/internal/core/merge"
	"github.com/neilberkman/ccdash/internal/core/models"
)

var (
	listLimit  int
	listFilter string
	listSince  string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List Claude Code sessions",
	Long: `List Claude Code sessions straight from the session logs, most recent first.

--filter accepts free text (matched against project path and summary) plus
project:<path>, after:<date> and before:<date>. --since accepts a date or a
natural phrase such as "yesterday" or "last week".

Examples:
  ccdash list
  ccdash list --limit 10
  ccdash list --filter "project:api auth"
  ccdash list --since yesterday`,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().IntVar(&listLimit, "limit", 20, "Maximum number of sessions to display (0 for all)")
	listCmd.Flags().StringVar(&listFilter, "filter", "", "Filter by text, project:<path>, after:<date>, before:<date>")
	listCmd.Flags().StringVar(&listSince, "since", "", "Only sessions active since this date")
}

func runList(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer func() {
		_ = app.Close()
	}()

	if err := app.Catalog.Refresh(cmd.Context()); err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	now := time.Now()
	sessions := app.Catalog.Sessions()

	if listSince != "" {
		since, ok := catalog.ParseDate(nil, listSince, now)
		if !ok {
			return fmt.Errorf("could not understand --since %q", listSince)
		}
		sessions = app.Catalog.Since(since)
	}

	filters := catalog.ParseQuery(listFilter, now)
	sessions = filters.Apply(sessions)
	sessions = merge.LocalFilter(sessions, filters.Query)

	total := len(sessions)
	if listLimit > 0 && len(sessions) > listLimit {
		sessions = sessions[:listLimit]
	}

	if len(sessions) == 0 {
		if listFilter != "" || listSince != "" {
			fmt.Println("No sessions match.")
		} else {
			fmt.Printf("No sessions found in %s\n", app.ProjectsDir())
		}
		return nil
	}

	fmt.Printf("Showing %d of %d session(s)\n\n", len(sessions), total)
	for i, s := range sessions {
		printSession(i+1, s, now)
	}
	return nil
}

func printSession(n int, s models.SessionMeta, now time.Time) {
	fmt.Printf("[%d] %s\n", n, s.ID)
	fmt.Printf("    Summary: %s\n", truncateSummary(s.Summary, 80))
	fmt.Printf("    Project: %s\n", s.ProjectPath)
	fmt.Printf("    Messages: %d\n", s.MessageCount)
	if at := s.LastActivity(); !at.IsZero() {
		fmt.Printf("    Updated: %s\n", formatTimestamp(at, now))
	}
	fmt.Println()
}

// truncateSummary truncates long summaries for display
func truncateSummary(summary string, maxLen int) string {
	// Remove newlines and excessive whitespace
	summary = strings.Join(strings.Fields(summary), " ")

	runes := []rune(summary)
	if len(runes) <= maxLen {
		return summary
	}

	// Find a good break point (end of word)
	truncated := string(runes[:maxLen])
	lastSpace := strings.LastIndex(truncated, " ")
	if lastSpace > len(truncated)-20 {
		truncated = truncated[:lastSpace]
	}

	return truncated + "..."
}

// formatTimestamp is relative for the last month and a date after that
func formatTimestamp(t, now time.Time) string {
	if now.Sub(t) < 30*24*time.Hour {
		return humanize.RelTime(t, now, "ago", "from now")
	}
	if t.Year() == now.Year() {
		return t.Format("Jan 2")
	}
	return t.Format("Jan 2, 2006")
}
