// File: cmd/discover.go
package cmd

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/inmate-bot/internal/bot"
	"github.com/xkilldash9x/inmate-bot/internal/observability"
	"github.com/xkilldash9x/inmate-bot/internal/service"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// newDiscoverCmd creates the `discover` command, which sweeps every state and agency
// for records matching a name and prints them as JSON.
func newDiscoverCmd(a *app) *cobra.Command {
	var (
		name       string
		username   string
		maxResults int
	)

	discoverCmd := &cobra.Command{
		Use:   "discover",
		Short: "Find records matching a name across every state and agency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runner := service.NewRunner(a.cfg, a.factory)
			results, err := runner.Discover(cmd.Context(), username, name, maxResults)
			if err != nil && len(results) > 0 {
				observability.GetLogger().Warn("Discovery stopped early, printing partial results.",
					zap.Int("results", len(results)), zap.Error(err))
			}
			if len(results) > 0 || err == nil {
				if results == nil {
					results = []bot.SearchResult{}
				}
				out, mErr := json.MarshalIndent(results, "", "  ")
				if mErr != nil {
					return mErr
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
			}
			return err
		},
	}

	discoverCmd.Flags().StringVar(&name, "name", "", "name to search for (required)")
	discoverCmd.Flags().IntVar(&maxResults, "max", 0, "maximum number of results (default search.max_results)")
	discoverCmd.Flags().StringVar(&username, "username", "", "account email (overrides profile.username)")
	_ = discoverCmd.MarkFlagRequired("name")
	return discoverCmd
}
