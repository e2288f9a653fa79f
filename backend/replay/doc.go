// SPDX-License-Identifier: EPL-2.0

// Package replay is a stream.Backend that feeds a decoded audio.Source into
// the input side of a stream, one buffer per callback, from its own
// goroutine.
//
// The source is converted to the stream's sample rate with audio.Resampler
// and to its input channel count with audio.NewChannelMapper. By default
// callbacks are paced at the real buffer duration, so a file plays in real
// time; WithPace(false) runs them back to back. When the source ends the
// last buffer is padded with silence and the stream finishes normally.
//
//	src, _ := formats.Open(formats.NewRegistry(), "take.wav")
//	h, err := stream.Run(ctx, cfg, replay.New(src))
//
// Output buffers of a duplex stream are handed to WithOutputSink after
// every callback.
package replay
