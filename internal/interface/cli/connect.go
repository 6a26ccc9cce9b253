package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	connectToken     string
	connectOrg       string
	connectClaudeDir string
	connectWSL       bool
	connectDistro    string
	disconnectKeep   bool
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect ccdash to your Claude account",
	Long: `Store the OAuth token used to read rate limit usage.

Without --token the token is detected the same way Claude Code stores it:
the CLAUDE_CODE_OAUTH_TOKEN environment variable, ~/.claude/.credentials.json,
the macOS keychain, the Linux secret service, or a WSL distro on Windows.
The token is validated with one usage request before it is saved.

Examples:
  ccdash connect
  ccdash connect --token sk-ant-oat01-...
  ccdash connect --wsl --distro Ubuntu`,
	Args: cobra.NoArgs,
	RunE: runConnect,
}

var disconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Forget the stored token",
	Long: `Remove the stored token. With --keep-dir the Claude directory and WSL
settings are kept so a later connect only needs a new token.`,
	Args: cobra.NoArgs,
	RunE: runDisconnect,
}

func init() {
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(disconnectCmd)

	connectCmd.Flags().StringVar(&connectToken, "token", "", "OAuth token (detected when omitted)")
	connectCmd.Flags().StringVar(&connectOrg, "org", "", "Organization ID to record with the token")
	connectCmd.Flags().StringVar(&connectClaudeDir, "sessions-dir", "", "Remember this Claude directory for reading sessions")
	connectCmd.Flags().BoolVar(&connectWSL, "wsl", false, "Read credentials and sessions from a WSL distro (Windows)")
	connectCmd.Flags().StringVar(&connectDistro, "distro", "", "WSL distro name (default: the default distro)")

	disconnectCmd.Flags().BoolVar(&disconnectKeep, "keep-dir", false, "Keep the Claude directory and WSL settings")
}

func runConnect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = app.Close()
	}()

	if connectWSL {
		distro := connectDistro
		if distro == "" {
			if d, ok := app.Detector.DefaultDistro(ctx); ok {
				distro = d
			}
		}
		if err := app.Connection.SetWSL(ctx, true, distro); err != nil {
			return fmt.Errorf("failed to save WSL settings: %w", err)
		}
	}
	if connectClaudeDir != "" {
		if err := app.Connection.SetClaudeDir(ctx, connectClaudeDir); err != nil {
			return fmt.Errorf("failed to save Claude directory: %w", err)
		}
	}

	token := connectToken
	if token == "" {
		token, err = app.Detector.DetectOAuthToken(ctx, app.Connection.Current().WSLDistro)
		if err != nil {
			return err
		}
	}

	if err := app.Connection.Connect(ctx, connectOrg, token); err != nil {
		return err
	}

	fmt.Println("Connected.")
	if cred := app.Connection.Current(); cred.UseWSL {
		fmt.Printf("Reading sessions from WSL distro %s\n", cred.WSLDistro)
	}
	return nil
}

func runDisconnect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = app.Close()
	}()

	if disconnectKeep {
		err = app.Connection.Demote(ctx)
	} else {
		err = app.Connection.Disconnect(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to disconnect: %w", err)
	}
	app.Usage.Clear(ctx)

	fmt.Println("Disconnected.")
	return nil
}
