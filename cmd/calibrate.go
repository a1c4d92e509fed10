// ABOUTME: Calibrate command
// ABOUTME: Measures round-trip latency and stores it for the device pair
package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/choirless/rehearsal/internal/config"
	"github.com/choirless/rehearsal/internal/events"
	"github.com/choirless/rehearsal/internal/logging"
	"github.com/spf13/cobra"
)

// ErrCalibrationTimeout is returned when no stable latency was found in time.
var ErrCalibrationTimeout = errors.New("calibration did not converge")

// NewCalibrateCmd measures round-trip latency for the selected devices and
// stores it for the pair.
func NewCalibrateCmd(opts *config.Options) *cobra.Command {
	var input, output string
	var timeout time.Duration
	c := &cobra.Command{
		Use:   "calibrate",
		Short: "Measure and store the round-trip latency of the selected devices",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer func() { _ = a.close() }()

			if err := initSession(cmd.Context(), a, input, output); err != nil {
				return err
			}
			done, err := calibrate(cmd.Context(), a, timeout, func(e events.CalibrationSampleEvent) {
				fmt.Fprintf(cmd.OutOrStdout(), "sample %.1f ms (mean %.1f ms, sd %.2f ms)\n",
					e.Latency*1000, e.Mean*1000, e.SD*1000)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "latency %.1f ms from %d samples (sd %.2f ms)\n",
				done.Latency*1000, done.SampleCount, done.SD*1000)
			return nil
		},
	}
	c.Flags().StringVar(&input, "input", "", "Input device id")
	c.Flags().StringVar(&output, "output", "", "Output device id")
	c.Flags().DurationVar(&timeout, "timeout", time.Minute, "Give up after this long")
	return c
}

// calibrate runs one calibration and waits for its result.
func calibrate(ctx context.Context, a *app, timeout time.Duration, onSample func(events.CalibrationSampleEvent)) (events.CalibrationDoneEvent, error) {
	logger := logging.GetLogger("main")

	doneCh := make(chan events.CalibrationDoneEvent, 1)
	unsubDone := a.bus.Subscribe(func(e events.CalibrationDoneEvent) {
		select {
		case doneCh <- e:
		default:
		}
	})
	defer unsubDone()
	if onSample != nil {
		unsubSample := a.bus.Subscribe(onSample)
		defer unsubSample()
	}
	unsubQuiet := a.bus.Subscribe(func(e events.QuietCalibrationEndEvent) {
		logger.Info("Ambient level measured", "mean", e.Mean, "max", e.Max, "sd", e.SD)
	})
	defer unsubQuiet()

	if err := a.orch.StartCalibration(ctx); err != nil {
		return events.CalibrationDoneEvent{}, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case done := <-doneCh:
		return done, nil
	case <-timer.C:
		_ = a.orch.StopCalibration(context.Background())
		return events.CalibrationDoneEvent{}, ErrCalibrationTimeout
	case <-ctx.Done():
		_ = a.orch.StopCalibration(context.Background())
		return events.CalibrationDoneEvent{}, ctx.Err()
	}
}
