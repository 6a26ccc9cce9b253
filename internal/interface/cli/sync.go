package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/neilberkman/ccdash/internal/core/importer"
)

var syncCmd = &cobra.Command{
	Use:   "sync [path]",
	Short: "Index Claude Code sessions for content search",
	Long: `Index sessions from <claude dir>/projects/ or a specified directory.

Performs incremental sync - only new or changed session files are parsed,
and sessions whose file is gone are dropped from the index.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = app.Close()
	}()

	sourcePath := app.ProjectsDir()
	if len(args) > 0 {
		sourcePath = args[0]
	}

	fmt.Printf("Syncing sessions from: %s\n", sourcePath)
	fmt.Printf("Database: %s\n\n", app.Config.DBPath)

	files, err := importer.FindSessionFiles(sourcePath)
	if err != nil {
		return fmt.Errorf("failed to count files: %w", err)
	}
	if len(files) == 0 {
		fmt.Println("No session files found")
		return nil
	}

	imp, err := app.Importer()
	if err != nil {
		return err
	}

	progress := importer.NewProgressReporter(os.Stdout, len(files))
	res, err := imp.ImportDirectory(ctx, sourcePath, progress)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	fmt.Printf("Imported %d, unchanged %d, failed %d, removed %d\n", res.Imported, res.Skipped, res.Failed, res.Pruned)
	return nil
}

// quietSync brings the index up to date without progress output
func quietSync(ctx context.Context, app *App) error {
	imp, err := app.Importer()
	if err != nil {
		return err
	}
	res, err := imp.ImportDirectory(ctx, app.ProjectsDir(), nil)
	if err != nil {
		return fmt.Errorf("failed to sync: %w", err)
	}
	app.Logger.Debug("index synced", "imported", res.Imported, "skipped", res.Skipped, "failed", res.Failed, "pruned", res.Pruned)
	return nil
}
