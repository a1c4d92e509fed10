// ABOUTME: Version command
// ABOUTME: Prints the product and build version
package cmd

import (
	"fmt"

	"github.com/choirless/rehearsal/internal/version"
	"github.com/spf13/cobra"
)

// VersionCmd prints the build version.
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.String())
	},
}
