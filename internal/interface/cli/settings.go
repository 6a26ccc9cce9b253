package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	settingsInterval      time.Duration
	settingsNotifications string
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change runtime settings",
	Long: `Show the usage refresh interval and notification setting, or change them.

Settings are stored in the ccdash database and override config.toml.

Examples:
  ccdash settings
  ccdash settings --interval 2m
  ccdash settings --notifications off`,
	Args: cobra.NoArgs,
	RunE: runSettings,
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.Flags().DurationVar(&settingsInterval, "interval", 0, "Usage refresh interval (minimum 10s)")
	settingsCmd.Flags().StringVar(&settingsNotifications, "notifications", "", "Threshold notifications: on or off")
}

func runSettings(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = app.Close()
	}()

	if cmd.Flags().Changed("interval") {
		if err := app.Settings.SetRefreshInterval(ctx, settingsInterval); err != nil {
			return err
		}
	}

	if cmd.Flags().Changed("notifications") {
		enabled, err := parseOnOff(settingsNotifications)
		if err != nil {
			return err
		}
		if err := app.Settings.SetNotifications(ctx, enabled); err != nil {
			return err
		}
	}

	s := app.Settings.Current()
	fmt.Printf("Refresh interval:  %s\n", s.RefreshInterval)
	fmt.Printf("Notifications:     %s\n", onOff(s.NotificationsEnabled))

	cred := app.Connection.Current()
	fmt.Printf("Connected:         %s\n", yesNo(cred.IsConnected()))
	fmt.Printf("Claude directory:  %s\n", app.ClaudeDir())
	if cred.UseWSL {
		fmt.Printf("WSL distro:        %s\n", cred.WSLDistro)
	}
	return nil
}

func parseOnOff(s string) (bool, error) {
	switch s {
	case "on", "true", "yes", "1":
		return true, nil
	case "off", "false", "no", "0":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
