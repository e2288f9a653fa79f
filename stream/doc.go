// SPDX-License-Identifier: EPL-2.0

// Package stream turns a real-time audio callback into a blocking, pull-based
// sequence of events.
//
// An audio driver calls back on its own real-time thread once per buffer. That
// thread must never block or allocate, so the callback only copies samples
// into preallocated Buffers and enqueues Events without waiting. The consumer
// pulls those Events on an ordinary goroutine.
//
// # Events
//
// Every invocation produces, in order:
//   - an In event holding the captured input (when InChannels > 0)
//   - an Out event holding a zeroed Buffer to fill (when OutChannels > 0)
//   - an Update event with the time elapsed since the previous Update (when
//     Config.UpdateInterval is zero; otherwise Updates come from a ticker)
//
// # Running a stream
//
//	h, err := stream.Run(ctx, stream.Config{
//	    Settings: stream.Settings{
//	        SampleRate:      48000,
//	        FramesPerBuffer: 480,
//	        InChannels:      1,
//	        OutChannels:     1,
//	    },
//	}, backend)
//	if err != nil {
//	    return err
//	}
//
//	var last []float32
//	for ev, err := range h.Events(ctx) {
//	    if err != nil {
//	        return err // *BackendError or ctx.Err()
//	    }
//	    switch ev.Kind {
//	    case stream.KindIn:
//	        last = append(last[:0], ev.Buffer.Samples()...)
//	    case stream.KindOut:
//	        copy(ev.Buffer.Samples(), last)
//	    case stream.KindUpdate:
//	        ui.Advance(ev.Elapsed)
//	    }
//	}
//
// Breaking out of the loop stops the stream. Handle.Next offers the same
// sequence one call at a time.
//
// # Buffer ownership
//
// Buffers come from fixed pools and are released implicitly: the Buffer of an
// Event is valid until the next Next call or loop iteration. Copy what you need
// to keep. Filled Out Buffers are queued and played on a following invocation,
// so output runs at least one buffer behind the consumer.
//
// # Backpressure
//
// The channel holds Config.ChannelCapacity Events. When it is full the newest
// Event is dropped and counted in Stats; the driver is never held up.
//
// # Errors
//
//   - *SettingsError: invalid Config, returned by Run
//   - *BackendError: the backend failed to open or start (returned by Run) or
//     failed while running (returned once by Next after draining)
//   - ErrChannelClosed: the stream ended; wraps io.EOF
package stream
