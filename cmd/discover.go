// ABOUTME: Discover command
// ABOUTME: Lists rehearsal engines advertised over mDNS
package cmd

import (
	"fmt"
	"time"

	"github.com/choirless/rehearsal/internal/discovery"
	"github.com/spf13/cobra"
)

// DiscoverCmd lists rehearsal engines advertised on the local network.
var DiscoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find rehearsal engines on the local network",
	RunE: func(cmd *cobra.Command, _ []string) error {
		timeout, _ := cmd.Flags().GetDuration("timeout")
		servers, err := discovery.Lookup(cmd.Context(), timeout)
		if err != nil {
			return err
		}
		if len(servers) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No engines found")
			return nil
		}
		for _, s := range servers {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", s.Name, s.URL(), s.Version)
		}
		return nil
	},
}

func init() {
	DiscoverCmd.Flags().Duration("timeout", 3*time.Second, "How long to wait for answers")
}
