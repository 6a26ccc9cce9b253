package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/neilberkman/ccdash/internal/core/merge"
	"github.com/neilberkman/ccdash/internal/core/models"
	"github.com/neilberkman/ccdash/internal/core/search"
)

var (
	searchLimit  int
	searchNoSync bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search Claude Code sessions",
	Long: `Search sessions by project path and summary, then by message content.

Sessions whose path or summary match come first; sessions that only match
in their messages follow, with a badge showing how many times the query
appears. The index is synced before searching unless --no-sync is given.

Examples:
  ccdash search "authentication implementation"
  ccdash search "ENA-7030"
  ccdash search "error handling" --limit 10`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntVar(&searchLimit, "limit", 50, "Maximum number of sessions to show")
	searchCmd.Flags().BoolVar(&searchNoSync, "no-sync", false, "Search the index as is without syncing first")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	query := strings.Join(args, " ")

	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = app.Close()
	}()

	if !searchNoSync {
		if err := quietSync(ctx, app); err != nil {
			app.Logger.Warn("sync before search failed", "error", err)
		}
	}

	if err := app.Catalog.Refresh(ctx); err != nil {
		app.Logger.Warn("failed to list sessions", "error", err)
	}

	view, matches, searchErr := mergedSearch(ctx, app, query)
	if searchErr != nil {
		fmt.Printf("Warning: content search failed, showing path and summary matches only: %v\n\n", searchErr)
	}

	if len(view.Sessions) == 0 {
		fmt.Printf("No results found for: %s\n", query)
		return nil
	}

	fmt.Printf("Found %d session(s) for: %s\n\n", len(view.Sessions), query)

	snippets := make(map[string]string, len(matches))
	for _, m := range matches {
		if _, ok := snippets[m.Session.ID]; !ok {
			snippets[m.Session.ID] = m.MatchedText
		}
	}

	now := time.Now()
	for i, s := range view.Sessions {
		if i >= searchLimit {
			fmt.Printf("... and %d more sessions (use --limit to see more)\n", len(view.Sessions)-searchLimit)
			break
		}
		printSearchResult(i+1, s, view, snippets[s.ID], now)
	}
	return nil
}

// mergedSearch runs the content search and merges it with the catalog.
// A failed search still yields the local matches.
func mergedSearch(ctx context.Context, app *App, query string) (merge.View, []models.SearchMatch, error) {
	var matches []models.SearchMatch
	var searchErr error

	if merge.Searchable(query) {
		database, err := app.DB()
		if err == nil {
			matches, err = search.NewAdapter(database).SearchSessions(ctx, query)
		}
		if err != nil {
			searchErr = err
			matches = nil
		}
	}

	return merge.Build(app.Catalog.Sessions(), query, matches), matches, searchErr
}

func printSearchResult(n int, s models.SessionMeta, view merge.View, snippet string, now time.Time) {
	header := fmt.Sprintf("[%d] %s", n, s.ID)
	if count, ok := view.MatchCount(s.ID); ok {
		header += fmt.Sprintf("  (%s)", pluralize(count, "match", "matches"))
	}
	fmt.Println(header)
	fmt.Printf("    Summary: %s\n", truncateSummary(s.Summary, 80))
	fmt.Printf("    Project: %s\n", s.ProjectPath)
	if at := s.LastActivity(); !at.IsZero() {
		fmt.Printf("    Updated: %s\n", formatTimestamp(at, now))
	}
	if snippet != "" {
		fmt.Printf("    Match:   %s\n", truncateMessage(strings.Join(strings.Fields(snippet), " "), 200))
	}
	fmt.Println()
}

func pluralize(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", one)
	}
	return fmt.Sprintf("%d %s", n, many)
}

// truncateMessage truncates long messages for display
func truncateMessage(msg string, maxLen int) string {
	runes := []rune(msg)
	if len(runes) <= maxLen {
		return msg
	}

	// Find a good break point (end of word)
	truncated := string(runes[:maxLen])
	lastSpace := strings.LastIndexAny(truncated, " \n\t")
	if lastSpace > len(truncated)-50 {
		truncated = truncated[:lastSpace]
	}

	return truncated + "..."
}
