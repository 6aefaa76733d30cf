// File: cmd/run.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/inmate-bot/internal/service"
)

// newRunCmd creates the `run` command: one login-or-register followed by a record
// search that stops on the payment page.
func newRunCmd(a *app) *cobra.Command {
	var req service.Request

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Sign in (or register) and open the payment page for a record",
		Long: `Signs in with the configured account, registering it first when the login is
rejected, then searches for the record by id and name and selects it. The run
stops on the payment page; no transaction is ever submitted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runner := service.NewRunner(a.cfg, a.factory)
			res := runner.Run(cmd.Context(), req)

			fmt.Fprintln(cmd.OutOrStdout(), res.Text)
			if !res.Success {
				return errUnsuccessful
			}
			return nil
		},
	}

	runCmd.Flags().StringVar(&req.RecordID, "record-id", "", "record id to search first")
	runCmd.Flags().StringVar(&req.FirstName, "first-name", "", "first name of the record")
	runCmd.Flags().StringVar(&req.LastName, "last-name", "", "last name of the record")
	runCmd.Flags().StringVar(&req.Address, "address", "", "account address (overrides profile.address)")
	runCmd.Flags().StringVar(&req.Username, "username", "", "account email (overrides profile.username)")
	return runCmd
}
