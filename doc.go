// SPDX-License-Identifier: EPL-2.0

// Package audstream turns a real-time audio callback into a pull iterator.
//
// The driver invokes a callback at a fixed cadence and must never wait. The
// stream package bridges that callback to a bounded queue of Events that an
// ordinary goroutine pulls at its own pace:
//
//	h, err := stream.Run(ctx, cfg, portaudio.New())
//	if err != nil {
//		return err
//	}
//	for ev, err := range h.Events(ctx) {
//		if err != nil {
//			return err
//		}
//		switch ev.Kind {
//		case stream.KindIn:
//			// ev.Buffer holds captured samples
//		case stream.KindOut:
//			// fill ev.Buffer, it plays on a later callback
//		case stream.KindUpdate:
//			// ev.Elapsed since the previous Update
//		}
//	}
//
// When the consumer falls behind, the newest Events are dropped and counted
// in Stats; the callback never blocks.
//
// # Backends
//
//   - backend/portaudio drives the stream from a sound card.
//   - backend/replay drives it from a decoded file, see formats.Open.
//
// # Supported Formats
//
// formats.NewRegistry knows WAV and AIFF (PCM 16, 24 and 32 bit), MP3 and
// Ogg Vorbis. audio.Resampler and audio.ChannelMapper adapt any of them to
// the stream settings.
//
// This package holds small helpers built on top of stream: Capture collects
// a fixed number of input frames and Measure reports signal levels.
package audstream
