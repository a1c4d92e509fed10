// ABOUTME: Devices command
// ABOUTME: Lists audio devices and the current selection
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/choirless/rehearsal/internal/config"
	"github.com/choirless/rehearsal/internal/device"
	"github.com/spf13/cobra"
)

// NewDevicesCmd lists audio devices and the current selection.
func NewDevicesCmd(opts *config.Options) *cobra.Command {
	var asJSON bool
	c := &cobra.Command{
		Use:   "devices",
		Short: "List audio input and output devices",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer func() { _ = a.close() }()

			set, err := a.orch.InitDevices(cmd.Context(), true)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(set)
			}
			return printDevices(cmd.OutOrStdout(), set)
		},
	}
	c.Flags().BoolVar(&asJSON, "json", false, "Print devices as JSON")
	return c
}

func printDevices(w io.Writer, set device.Set) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tSELECTED\tDEFAULT\tID\tNAME")
	rows := func(kind string, list []device.Info, selected string) {
		for _, d := range list {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", kind, mark(d.ID == selected), mark(d.IsDefault), d.ID, d.Name)
		}
	}
	rows("input", set.Inputs, set.SelectedInputID)
	rows("output", set.Outputs, set.SelectedOutputID)
	return tw.Flush()
}

func mark(b bool) string {
	if b {
		return "*"
	}
	return ""
}

// initSession selects devices and opens the stream.
func initSession(ctx context.Context, a *app, input, output string) error {
	if _, err := a.orch.InitDevices(ctx, false); err != nil {
		return err
	}
	return a.orch.Init(ctx, input, output)
}
