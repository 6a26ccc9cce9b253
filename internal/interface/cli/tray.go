package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/neilberkman/ccdash/internal/core/usage"
)

var (
	trayJSON    bool
	trayTooltip bool
)

var trayCmd = &cobra.Command{
	Use:   "tray",
	Short: "Print the cached usage snapshot",
	Long: `Print the last usage snapshot written by usage, watch or the TUI
without contacting the API. Status bar tools can poll this cheaply.

--tooltip prints only the one-line summary, for example
"ccdash - 5h: 42% | 7d: 18%".`,
	Args: cobra.NoArgs,
	RunE: runTray,
}

func init() {
	rootCmd.AddCommand(trayCmd)
	trayCmd.Flags().BoolVar(&trayJSON, "json", false, "Print the snapshot as JSON")
	trayCmd.Flags().BoolVar(&trayTooltip, "tooltip", false, "Print only the tooltip line")
}

func runTray(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = app.Close()
	}()

	snap, found, err := usage.ReadCache(ctx, app.KV)
	if err != nil {
		return fmt.Errorf("failed to read usage cache: %w", err)
	}

	if trayJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if !found {
			return enc.Encode(nil)
		}
		return enc.Encode(snap)
	}

	if !found {
		fmt.Println(usage.IdleTooltip)
		return nil
	}

	u := snap.Usage()
	fmt.Println(usage.Tooltip(u))
	if trayTooltip {
		return nil
	}

	fmt.Println()
	printUsage(os.Stdout, u, snap.CachedTime(), time.Now())
	return nil
}
