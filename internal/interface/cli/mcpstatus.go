package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/neilberkman/ccdash/internal/core/claudejson"
)

var mcpStatusCmd = &cobra.Command{
	Use:   "mcp-status",
	Short: "Check the MCP servers Claude Code is configured with",
	Long: `List the MCP servers from ~/.claude.json (user and per-project local
scope) and each project's .mcp.json, and check that they are reachable.

Remote servers get a HEAD request; stdio servers must have their command on
PATH.`,
	Args: cobra.NoArgs,
	RunE: runMCPStatus,
}

var mcpStatusNoCheck bool

func init() {
	mcpStatusCmd.Flags().BoolVar(&mcpStatusNoCheck, "no-check", false, "List servers without checking them")
	rootCmd.AddCommand(mcpStatusCmd)
}

func runMCPStatus(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer func() {
		_ = app.Close()
	}()

	reader := app.ClaudeJSON()
	servers, err := reader.MCPServers()
	if err != nil {
		return err
	}
	if len(servers) == 0 {
		fmt.Printf("No MCP servers configured in %s\n", reader.ConfigPath())
		return nil
	}

	var statuses []claudejson.ServerStatus
	if mcpStatusNoCheck {
		for _, s := range servers {
			statuses = append(statuses, claudejson.ServerStatus{ServerConfig: s, Status: "-"})
		}
	} else {
		statuses = claudejson.NewChecker().CheckAll(cmd.Context(), servers)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTYPE\tSCOPE\tSTATUS\tTARGET\tPROJECT")
	for _, s := range statuses {
		status := s.Status
		if s.Error != "" {
			status += ": " + s.Error
		}
		target := s.URL
		if target == "" {
			target = s.Command
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", s.Name, s.Type, s.Scope, status, orDash(target), orDash(s.ProjectPath))
	}
	return tw.Flush()
}
