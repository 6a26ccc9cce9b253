package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/neilberkman/ccdash/internal/core/claudejson"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Show the Claude account Claude Code is signed in with",
	Args:  cobra.NoArgs,
	RunE:  runAccount,
}

func init() {
	rootCmd.AddCommand(accountCmd)
}

func runAccount(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer func() {
		_ = app.Close()
	}()

	acct, err := app.ClaudeJSON().Account()
	if errors.Is(err, claudejson.ErrNoAccount) {
		fmt.Println("Claude Code is not signed in with a Claude account. Run 'claude' and use /login.")
		return nil
	}
	if err != nil {
		return err
	}

	for _, row := range accountRows(acct) {
		fmt.Printf("%-18s %s\n", row[0]+":", row[1])
	}
	return nil
}

// accountRows lists the fields that are set, in display order
func accountRows(a *claudejson.Account) [][2]string {
	var rows [][2]string
	add := func(label, value string) {
		if value != "" {
			rows = append(rows, [2]string{label, value})
		}
	}
	add("Name", a.DisplayName)
	add("Email", a.EmailAddress)
	add("Organization", a.OrganizationName)
	add("Org Role", a.OrganizationRole)
	add("Workspace Role", a.WorkspaceRole)
	add("Billing", a.BillingType)
	add("Subscribed", a.SubscriptionCreatedAt)
	if a.HasExtraUsageEnabled {
		add("Extra Usage", "enabled")
	}
	add("Account ID", a.AccountUUID)
	add("Organization ID", a.OrganizationUUID)
	return rows
}
