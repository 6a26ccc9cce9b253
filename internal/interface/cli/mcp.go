package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/neilberkman/ccdash/cmd/ccdash/mcp"
	"github.com/neilberkman/ccdash/internal/core/search"
)

var mcpCmd = &cobra.Command{
	Use:   "serve-mcp",
	Short: "Start MCP server for Claude Code integration",
	Long: `Start an MCP (Model Context Protocol) server that lets Claude Code
search your session history, read past transcripts, check rate limit usage,
and read project and activity stats, MCP server health and account details.

Register it with Claude Code:
  claude mcp add ccdash -- ccdash serve-mcp

or in a config file:
  {
    "mcpServers": {
      "ccdash": {
        "command": "ccdash",
        "args": ["serve-mcp"]
      }
    }
  }
`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer func() {
		_ = app.Close()
	}()

	deps := mcp.Deps{
		Catalog: app.Catalog,
		Searcher: func() (mcp.Searcher, error) {
			database, err := app.DB()
			if err != nil {
				return nil, err
			}
			return search.NewAdapter(database), nil
		},
		Sync: func(ctx context.Context) error {
			return quietSync(ctx, app)
		},
		Reader:    app.lister(),
		ClaudeDir: app.ClaudeDir,
		Usage:     app.Usage,
		Connect: func(ctx context.Context) error {
			return ensureConnected(ctx, app)
		},
		ClaudeJSON: app.ClaudeJSON,
	}

	if err := mcp.StartServer(serverVersion(), deps); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

func serverVersion() string {
	if versionInfo == "" {
		return "dev"
	}
	v, _, _ := strings.Cut(versionInfo, " ")
	return v
}
