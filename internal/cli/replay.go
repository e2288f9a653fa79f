// SPDX-License-Identifier: EPL-2.0

package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/ik5/audstream/backend/replay"
	"github.com/ik5/audstream/formats"
	"github.com/ik5/audstream/internal/run"
	"github.com/ik5/audstream/stream"
)

func newReplayCmd(a *app) *cobra.Command {
	var (
		refresh      time.Duration
		maxCallbacks int
	)

	cmd := &cobra.Command{
		Use:   "replay FILE",
		Short: "Stream a decoded audio file as input events",
		Long: "Stream a WAV, AIFF, MP3 or Ogg Vorbis file through the callback bridge\n" +
			"as if it were captured live, then print the stream statistics.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer run.Recover(a.log)

			if err := a.cfg.BindFlag("replay.pace", cmd.Flags().Lookup("pace")); err != nil {
				return err
			}
			cfg, err := a.cfg.Stream()
			if err != nil {
				return err
			}

			src, err := formats.Open(formats.NewRegistry(), args[0])
			if err != nil {
				return err
			}
			if cfg.Settings.SampleRate == 0 {
				cfg.Settings.SampleRate = float64(src.SampleRate())
			}
			if cfg.Settings.InChannels == 0 {
				cfg.Settings.InChannels = uint16(src.Channels())
			}

			log := a.log.WithField("file", args[0])
			backend := replay.New(src,
				replay.WithPace(a.cfg.Pace()),
				replay.WithMaxCallbacks(maxCallbacks),
				replay.WithLogger(log),
			)

			ctx, cancel := run.Context(cmd.Context(), a.log)
			defer cancel()

			h, err := runOwned(ctx, cfg, backend, stream.WithLogger(log))
			if err != nil {
				return err
			}
			log.WithField("stream", h.ID()).Info("replay started")

			m := newMeter(cmd.OutOrStdout(), log, h.Settings(), refresh, false)
			err = m.run(ctx, h)
			printStats(cmd.OutOrStdout(), log, h)
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}

	flags := cmd.Flags()
	flags.Bool("pace", true, "Run callbacks at the real buffer cadence")
	flags.DurationVar(&refresh, "refresh", 250*time.Millisecond, "Time between level lines")
	flags.IntVar(&maxCallbacks, "max-callbacks", 0, "Stop after this many callbacks, 0 plays the whole file")
	return cmd
}

// runOwned runs a stream on backend and closes backend when the stream
// could not start, so the backend owns its source on every path. Run closes
// a backend that fails to start; a second Close is a no-op.
func runOwned(ctx context.Context, cfg stream.Config, backend stream.Backend, opts ...stream.Option) (*stream.Handle, error) {
	h, err := stream.Run(ctx, cfg, backend, opts...)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	return h, nil
}
