// SPDX-License-Identifier: EPL-2.0

package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/ik5/audstream/backend/portaudio"
	"github.com/ik5/audstream/internal/run"
	"github.com/ik5/audstream/stream"
)

func newMonitorCmd(a *app) *cobra.Command {
	var (
		loopback bool
		refresh  time.Duration
		duration time.Duration
	)

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Show the level of the input device",
		Long: "Show the level of the input device until interrupted. With --loopback\n" +
			"the input is played back on the output device.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer run.Recover(a.log)

			flags := cmd.Flags()
			for key, name := range map[string]string{
				"portaudio.input_device":  "input",
				"portaudio.output_device": "output",
				"portaudio.latency":       "latency",
			} {
				if err := a.cfg.BindFlag(key, flags.Lookup(name)); err != nil {
					return err
				}
			}

			latency, err := portaudio.ParseLatency(a.cfg.Latency())
			if err != nil {
				return err
			}
			cfg, err := a.cfg.Stream()
			if err != nil {
				return err
			}
			if cfg.Settings.InChannels == 0 {
				cfg.Settings.InChannels = 1
			}
			if loopback && cfg.Settings.OutChannels == 0 {
				cfg.Settings.OutChannels = cfg.Settings.InChannels
			}
			if !loopback {
				cfg.Settings.OutChannels = 0
			}

			backend := portaudio.New(
				portaudio.WithInputDevice(a.cfg.InputDevice()),
				portaudio.WithOutputDevice(a.cfg.OutputDevice()),
				portaudio.WithLatency(latency),
				portaudio.WithLogger(a.log),
			)
			if cfg.Settings, err = backend.Resolve(cfg.Settings); err != nil {
				return err
			}

			ctx, cancel := run.Context(cmd.Context(), a.log)
			defer cancel()
			if duration > 0 {
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}

			h, err := stream.Run(ctx, cfg, backend, stream.WithLogger(a.log))
			if err != nil {
				return err
			}
			a.log.WithField("stream", h.ID()).Info("monitoring, interrupt to stop")

			m := newMeter(cmd.OutOrStdout(), a.log, h.Settings(), refresh, loopback)
			err = m.run(ctx, h)
			printStats(cmd.OutOrStdout(), a.log, h)
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&loopback, "loopback", false, "Play the input on the output device")
	flags.DurationVar(&refresh, "refresh", 250*time.Millisecond, "Time between level lines")
	flags.DurationVar(&duration, "duration", 0, "Stop after this long, 0 runs until interrupted")
	flags.String("input", "", "Input device name, empty for the default")
	flags.String("output", "", "Output device name, empty for the default")
	flags.String("latency", "low", "Suggested latency: low or high")
	return cmd
}
