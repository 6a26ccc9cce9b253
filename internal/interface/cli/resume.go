package cli

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/neilberkman/ccdash/internal/core/models"
	"github.com/neilberkman/ccdash/internal/core/session"
)

var (
	resumeCopy bool
	resumeFork bool
	resumeHere bool
)

var resumeCmd = &cobra.Command{
	Use:   "resume <session-id>",
	Short: "Resume a Claude Code session in a new terminal",
	Long: `Open a new terminal in the session's project and run claude --resume,
with a prompt telling Claude when the session was last active and where you
were working.

Examples:
  ccdash resume 0ccfddc4-00e7-443a-bb82-58ede5936619
  ccdash resume 0ccfddc4-00e7-443a-bb82-58ede5936619 --fork
  ccdash resume 0ccfddc4-00e7-443a-bb82-58ede5936619 --copy`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func init() {
	rootCmd.AddCommand(resumeCmd)

	resumeCmd.Flags().BoolVar(&resumeCopy, "copy", false, "Copy the resume command to the clipboard instead of running it")
	resumeCmd.Flags().BoolVar(&resumeFork, "fork", false, "Fork the session instead of continuing it")
	resumeCmd.Flags().BoolVar(&resumeHere, "here", false, "Run claude in this terminal instead of opening a new one")
}

func runResume(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = app.Close()
	}()

	meta, err := findSession(cmd, app, args[0])
	if err != nil {
		return err
	}

	req := resumeRequest(ctx, app, meta, resumeFork)
	resumer := app.Resumer()

	switch {
	case resumeCopy:
		line, err := resumer.Copy(req)
		if err != nil {
			return fmt.Errorf("failed to copy resume command: %w", err)
		}
		fmt.Printf("Copied to clipboard:\n%s\n", line)
		return nil
	case resumeHere:
		return launchClaude(req, resumer.Options)
	default:
		fmt.Printf("Resuming session %s in %s\n", meta.ID, meta.ProjectPath)
		return resumer.Resume(req)
	}
}

// resumeRequest fills in the last working directory from the index when the
// session has been synced
func resumeRequest(ctx context.Context, app *App, meta models.SessionMeta, fork bool) session.ResumeRequest {
	req := session.ResumeRequest{
		SessionID:   meta.ID,
		ProjectPath: meta.ProjectPath,
		LastCwd:     meta.ProjectPath,
		UpdatedAt:   meta.LastTimestamp,
		Fork:        fork,
	}

	database, err := app.DB()
	if err != nil {
		return req
	}
	if _, lastCwd, err := database.GetSessionLaunchInfo(ctx, meta.ID); err == nil && lastCwd != "" {
		req.LastCwd = lastCwd
	}
	return req
}

// launchClaude runs the resume command attached to this terminal
func launchClaude(req session.ResumeRequest, opts session.CommandOptions) error {
	opts.InlinePrompt = true
	command, cleanup, err := session.BuildResumeCommand(req, opts)
	if err != nil {
		return err
	}
	defer cleanup()

	var c *exec.Cmd
	if runtime.GOOS == "windows" {
		c = exec.Command("cmd", "/c", command)
	} else {
		shell := os.Getenv("SHELL")
		if shell == "" {
			shell = "/bin/bash"
		}
		// -l loads the user's profile so version managers put claude on PATH
		c = exec.Command(shell, "-l", "-c", command)
	}

	c.Dir = session.ResolveWorkingDir(req.ProjectPath, req.LastCwd)
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	return c.Run()
}
