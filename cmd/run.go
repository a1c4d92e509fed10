// ABOUTME: Run command
// ABOUTME: Opens the devices and serves the control endpoint with an optional TUI
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/choirless/rehearsal/internal/config"
	"github.com/choirless/rehearsal/internal/control"
	"github.com/choirless/rehearsal/internal/logging"
	"github.com/choirless/rehearsal/internal/metrics"
	"github.com/choirless/rehearsal/internal/session"
	"github.com/choirless/rehearsal/internal/ui"
	"github.com/choirless/rehearsal/internal/version"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

const statusInterval = 100 * time.Millisecond

// NewRunCmd starts a session with the control server and, unless disabled,
// the terminal UI.
func NewRunCmd(opts *config.Options) *cobra.Command {
	var input, output, backing string
	c := &cobra.Command{
		Use:   "run",
		Short: "Open the audio devices and serve the control endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts, input, output, backing)
		},
	}
	c.Flags().StringVar(&input, "input", "", "Input device id (default: last used or system default)")
	c.Flags().StringVar(&output, "output", "", "Output device id (default: last used or system default)")
	c.Flags().StringVar(&backing, "backing", "", "Backing track URL or path to load at startup")
	return c
}

func run(ctx context.Context, opts *config.Options, input, output, backing string) error {
	useTUI := !opts.NoTUI

	f, err := os.OpenFile(opts.LogFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
	if err != nil {
		return fmt.Errorf("error opening log file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: log only to file
		logging.SetOutput(f)
	} else {
		logging.SetOutput(io.MultiWriter(os.Stdout, f))
	}
	logger := logging.GetLogger("main")

	name := sessionName(opts)
	logger.Info("Starting rehearsal engine", "name", name, "version", version.Version)

	a, err := newApp(opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.close(); err != nil {
			logger.Warn("Shutdown failed", "error", err)
		}
	}()

	if err := initSession(ctx, a, input, output); err != nil {
		return err
	}

	if backing != "" {
		info, err := a.orch.LoadBackingTrack(ctx, session.ItemSpec{
			ItemID:   "backing",
			AudioURL: backing,
		})
		if err != nil {
			return err
		}
		logger.Info("Loaded backing track", "file", path.Base(backing), "duration", info.Duration)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var registry *prometheus.Registry
	if opts.MetricsEnabled {
		registry = metrics.NewRegistry(a.orch)
	}
	srv := control.New(control.Config{
		Addr:       opts.ControlAddr,
		Name:       name,
		Version:    version.Version,
		EnableMDNS: opts.ControlMDNS,
		Metrics:    registry,
	}, a.orch)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(ctx)
	}()

	if !useTUI {
		logger.Info("TUI disabled, press Ctrl-C to stop")
		select {
		case <-ctx.Done():
		case err := <-errCh:
			return err
		}
		cancel()
		return <-errCh
	}

	p := ui.Run(name, a.orch)
	go ui.Feed(ctx, p, a.orch, a.bus, statusInterval)
	go func() {
		// A failing server or a signal ends the TUI too
		select {
		case <-ctx.Done():
		case err := <-errCh:
			if err != nil {
				logger.Error("Control server failed", "error", err)
			}
			errCh <- err
		}
		p.Quit()
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	cancel()
	return <-errCh
}
