package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/neilberkman/ccdash/internal/core/db"
	"github.com/neilberkman/ccdash/internal/core/models"
	"github.com/neilberkman/ccdash/internal/core/transcript"
)

const defaultShowLimit = 500

var (
	showOutput   string
	showOffset   int
	showLimit    int
	showTools    bool
	showThinking bool
)

var showCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Print a session transcript as markdown",
	Long: `Print the conversation of a Claude Code session as markdown.

Tool calls and model thinking are hidden unless asked for. Long sessions are
paged with --offset and --limit. Use --output to write the transcript to a
file instead of stdout.

Examples:
  ccdash show 0ccfddc4-00e7-443a-bb82-58ede5936619
  ccdash show 0ccfddc4-00e7-443a-bb82-58ede5936619 --tools
  ccdash show 0ccfddc4-00e7-443a-bb82-58ede5936619 -o session.md`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "", "Write the transcript to this file")
	showCmd.Flags().IntVar(&showOffset, "offset", 0, "Skip this many messages")
	showCmd.Flags().IntVar(&showLimit, "limit", defaultShowLimit, "Maximum number of messages to print (0 for all)")
	showCmd.Flags().BoolVar(&showTools, "tools", false, "Include tool calls and results")
	showCmd.Flags().BoolVar(&showThinking, "thinking", false, "Include thinking blocks")
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	sessionID := args[0]

	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = app.Close()
	}()

	meta, err := findSession(cmd, app, sessionID)
	if err != nil {
		return err
	}

	loader := transcript.NewLoader(app.lister(), app.ClaudeDir(), nil)
	loader.Load(ctx, meta.ID, meta.ProjectPath)
	state := loader.State()
	if state.Error != "" {
		return fmt.Errorf("failed to load transcript: %s", state.Error)
	}

	opts := renderOptions{
		Offset:   showOffset,
		Limit:    showLimit,
		Tools:    showTools,
		Thinking: showThinking,
	}

	if showOutput == "" {
		w := bufio.NewWriter(os.Stdout)
		renderMarkdown(w, meta, state.Messages, opts)
		return w.Flush()
	}

	outputPath, err := filepath.Abs(showOutput)
	if err != nil {
		return fmt.Errorf("failed to resolve output path: %w", err)
	}

	var b strings.Builder
	renderMarkdown(&b, meta, state.Messages, opts)
	if err := os.WriteFile(outputPath, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	fmt.Printf("Exported session to: %s\n", outputPath)
	return nil
}

// findSession looks a session up in the session logs, then in the index
func findSession(cmd *cobra.Command, app *App, sessionID string) (models.SessionMeta, error) {
	if err := app.Catalog.Refresh(cmd.Context()); err != nil {
		app.Logger.Warn("failed to list sessions", "error", err)
	}
	if meta, ok := app.Catalog.Find(sessionID); ok {
		return meta, nil
	}

	database, err := app.DB()
	if err != nil {
		return models.SessionMeta{}, err
	}
	meta, err := database.GetSessionMeta(cmd.Context(), sessionID)
	if errors.Is(err, db.ErrSessionNotFound) {
		return models.SessionMeta{}, fmt.Errorf("session %s not found", sessionID)
	}
	if err != nil {
		return models.SessionMeta{}, err
	}
	return *meta, nil
}

type renderOptions struct {
	Offset   int
	Limit    int
	Tools    bool
	Thinking bool
}

// renderMarkdown writes the session header and one section per message
func renderMarkdown(w io.Writer, meta models.SessionMeta, messages []transcript.Message, opts renderOptions) {
	fmt.Fprintf(w, "# %s\n\n", meta.Summary)
	fmt.Fprintf(w, "**Session ID:** `%s`  \n", meta.ID)
	fmt.Fprintf(w, "**Project:** `%s`  \n", meta.ProjectPath)
	fmt.Fprintf(w, "**Updated:** %s  \n", formatTimestampForExport(meta.LastTimestamp))
	fmt.Fprintf(w, "**Messages:** %d\n\n", len(messages))
	fmt.Fprint(w, "---\n\n")

	start := min(max(opts.Offset, 0), len(messages))
	end := len(messages)
	if opts.Limit > 0 && start+opts.Limit < end {
		end = start + opts.Limit
	}

	for _, msg := range messages[start:end] {
		body := renderBlocks(msg.Blocks, opts)
		if body == "" {
			continue
		}
		fmt.Fprintf(w, "**%s** _%s_\n\n", strings.ToUpper(string(msg.Role)), formatTimestampForExport(msg.Timestamp))
		fmt.Fprint(w, body)
		fmt.Fprint(w, "---\n\n")
	}

	if end < len(messages) {
		fmt.Fprintf(w, "_%d more messages; use --offset %d to continue_\n", len(messages)-end, end)
	}
}

func renderBlocks(blocks []transcript.Block, opts renderOptions) string {
	var b strings.Builder
	for _, block := range blocks {
		switch bl := block.(type) {
		case transcript.TextBlock:
			b.WriteString(bl.Text)
			b.WriteString("\n\n")
		case transcript.ToolUseBlock:
			if !opts.Tools {
				continue
			}
			fmt.Fprintf(&b, "**Tool:** %s\n\n```json\n%s\n```\n\n", bl.Name, bl.Input)
		case transcript.ToolResultBlock:
			if !opts.Tools {
				continue
			}
			label := "Result"
			if bl.IsError {
				label = "Error"
			}
			fmt.Fprintf(&b, "**%s:**\n\n```\n%s\n```\n\n", label, bl.Output)
		case transcript.ThinkingBlock:
			if !opts.Thinking {
				continue
			}
			fmt.Fprintf(&b, "> _thinking:_ %s\n\n", strings.ReplaceAll(bl.Text, "\n", "\n> "))
		}
	}
	return b.String()
}

func formatTimestampForExport(ts string) string {
	formats := []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, ts); err == nil {
			return t.Format("Jan 02, 2006 15:04:05")
		}
	}

	// If parsing fails, return as-is
	return ts
}
