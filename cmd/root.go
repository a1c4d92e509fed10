// ABOUTME: Root command
// ABOUTME: Loads configuration and logging before any subcommand runs
package cmd

import (
	"github.com/choirless/rehearsal/internal/config"
	"github.com/choirless/rehearsal/internal/logging"
	"github.com/spf13/cobra"
)

// NewRootCmd builds the command tree. Options are shared by every
// subcommand and filled from flags, environment and the TOML file.
func NewRootCmd() *cobra.Command {
	var opts config.Options

	root := &cobra.Command{
		Use:           "rehearsal",
		Short:         "Real-time choir rehearsal audio engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadConfig(&opts, cmd); err != nil {
				return err
			}
			logging.Initialize(config.LoggingConfig(&opts))
			return nil
		},
	}
	config.RegisterFlags(root.PersistentFlags(), &opts)

	root.AddCommand(NewRunCmd(&opts))
	root.AddCommand(NewDevicesCmd(&opts))
	root.AddCommand(NewCalibrateCmd(&opts))
	root.AddCommand(CtlCmd)
	root.AddCommand(WatchCmd)
	root.AddCommand(DiscoverCmd)
	root.AddCommand(VersionCmd)
	return root
}
