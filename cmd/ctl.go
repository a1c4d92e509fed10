// ABOUTME: Ctl and watch commands
// ABOUTME: Talk to a running engine over the control protocol
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/choirless/rehearsal/internal/client"
	"github.com/spf13/cobra"
)

func connect(ctx context.Context, addr string) (*client.Client, error) {
	c := client.NewClient(client.Config{ServerAddr: addr})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// CtlCmd sends one control message to a running engine and prints the reply.
var CtlCmd = &cobra.Command{
	Use:   "ctl <type> [json-payload]",
	Short: "Send a control message to a running engine",
	Example: `  rehearsal ctl session/status
  rehearsal ctl transport/play '{"time": 12.5}'`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		c, err := connect(cmd.Context(), addr)
		if err != nil {
			return err
		}
		defer c.Close()

		var payload any
		if len(args) == 2 {
			if !json.Valid([]byte(args[1])) {
				return fmt.Errorf("payload is not valid JSON: %s", args[1])
			}
			payload = json.RawMessage(args[1])
		}
		reply, err := c.Request(cmd.Context(), args[0], payload)
		if err != nil {
			return err
		}
		if len(reply) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		}
		return printJSON(cmd, reply)
	},
}

// WatchCmd prints events pushed by a running engine until interrupted.
var WatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print events from a running engine",
	RunE: func(cmd *cobra.Command, _ []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		c, err := connect(cmd.Context(), addr)
		if err != nil {
			return err
		}
		defer c.Close()
		fmt.Fprintf(cmd.OutOrStdout(), "Connected to %s\n", c.Hello.Name)

		for {
			select {
			case <-cmd.Context().Done():
				return nil
			case e := <-c.Events:
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", e.Name(), e.Payload)
			case l := <-c.Layers:
				fmt.Fprintf(cmd.OutOrStdout(), "layer %s %d samples\n", l.ID, len(l.Samples))
			case <-time.After(time.Second):
				if !c.IsConnected() {
					return fmt.Errorf("connection to %s lost", addr)
				}
			}
		}
	},
}

func printJSON(cmd *cobra.Command, raw json.RawMessage) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	for _, c := range []*cobra.Command{CtlCmd, WatchCmd} {
		c.Flags().String("addr", "localhost:8928", "Engine control address")
	}
}
