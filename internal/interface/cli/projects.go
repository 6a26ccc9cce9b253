package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/neilberkman/ccdash/internal/core/claudejson"
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List projects with Claude Code sessions",
	Long: `List every project that has sessions, most recently active first, with
its session and message counts.

With --metrics, list what Claude Code recorded per project in ~/.claude.json
instead: cost and line counts of the last session, token totals across all
sessions, and the GitHub repository.`,
	Args: cobra.NoArgs,
	RunE: runProjects,
}

var projectsMetrics bool

func init() {
	projectsCmd.Flags().BoolVarP(&projectsMetrics, "metrics", "m", false, "Show cost and token metrics from ~/.claude.json")
	rootCmd.AddCommand(projectsCmd)
}

func runProjects(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer func() {
		_ = app.Close()
	}()

	if projectsMetrics {
		return printProjectMetrics(cmd.Context(), app)
	}

	if err := app.Catalog.Refresh(cmd.Context()); err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	projects := app.Catalog.Projects()
	if len(projects) == 0 {
		fmt.Printf("No sessions found in %s\n", app.ProjectsDir())
		return nil
	}

	now := time.Now()
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROJECT\tSESSIONS\tMESSAGES\tLAST ACTIVE\tPATH")
	for _, p := range projects {
		last := "-"
		if !p.LastActivity.IsZero() {
			last = formatTimestamp(p.LastActivity, now)
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n", p.Display, p.Sessions, humanize.Comma(int64(p.Messages)), last, p.Path)
	}
	return tw.Flush()
}

func printProjectMetrics(ctx context.Context, app *App) error {
	reader := app.ClaudeJSON()
	projects, err := reader.ProjectMetrics(ctx)
	if err != nil {
		return err
	}
	if len(projects) == 0 {
		fmt.Printf("No projects recorded in %s\n", reader.ConfigPath())
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROJECT\tSESSIONS\tLAST COST\tLINES\tINPUT\tOUTPUT\tCACHE READ\tREPO")
	for _, p := range projects {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			p.Path,
			p.Sessions,
			formatCost(p.LastCost),
			formatLines(p),
			humanize.Comma(p.InputTokens),
			humanize.Comma(p.OutputTokens),
			humanize.Comma(p.CacheReadTokens),
			orDash(p.GithubRepo),
		)
	}
	return tw.Flush()
}

func formatCost(cost *float64) string {
	if cost == nil {
		return "-"
	}
	return fmt.Sprintf("$%.2f", *cost)
}

func formatLines(p claudejson.ProjectMetrics) string {
	if p.LastLinesAdded == nil && p.LastLinesRemoved == nil {
		return "-"
	}
	var added, removed int64
	if p.LastLinesAdded != nil {
		added = *p.LastLinesAdded
	}
	if p.LastLinesRemoved != nil {
		removed = *p.LastLinesRemoved
	}
	return fmt.Sprintf("+%d/-%d", added, removed)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
