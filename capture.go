// SPDX-License-Identifier: EPL-2.0

package audstream

import (
	"context"
	"errors"
	"fmt"

	"github.com/ik5/audstream/stream"
)

// ErrNoInput is returned by Capture for settings without input channels.
var ErrNoInput = errors.New("audstream: capture needs input channels")

// Capture runs a stream on backend and collects frames frames of
// interleaved input from its In events. The stream is stopped before
// Capture returns.
//
// A stream that ends early returns the frames it got. A backend failure or a
// done ctx returns the frames collected so far together with the error.
func Capture(ctx context.Context, backend stream.Backend, cfg stream.Config, frames int, opts ...stream.Option) ([]float32, error) {
	if cfg.Settings.InChannels == 0 {
		return nil, ErrNoInput
	}
	if frames <= 0 {
		return nil, fmt.Errorf("audstream: invalid frame count %d", frames)
	}

	h, err := stream.Run(ctx, cfg, backend, opts...)
	if err != nil {
		return nil, err
	}

	want := frames * int(cfg.Settings.InChannels)
	out := make([]float32, 0, want)

	for ev, err := range h.Events(ctx) {
		if err != nil {
			return out, err
		}
		if ev.Kind != stream.KindIn {
			continue
		}
		samples := ev.Buffer.Samples()
		out = append(out, samples[:min(len(samples), want-len(out))]...)
		if len(out) == want {
			break
		}
	}

	if err := h.Stop(); err != nil {
		return out, err
	}
	// a done ctx also stops the stream, which may end the loop first
	if len(out) < want && ctx.Err() != nil {
		return out, ctx.Err()
	}
	return out, nil
}
