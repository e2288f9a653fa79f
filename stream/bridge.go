// SPDX-License-Identifier: EPL-2.0

package stream

import (
	"errors"
	"sync/atomic"
)

// bridge is the Host handed to the Backend. Process runs on the driver's
// real-time thread: it only copies into preallocated Buffers and uses
// non-blocking channel operations.
type bridge struct {
	settings Settings
	events   *EventChannel
	stats    *counters

	// in and out are nil when the direction is inactive.
	in  *BufferPool
	out *BufferPool

	// playback holds Out buffers filled by the consumer, oldest first.
	playback chan *Buffer

	// sched is set when updates follow the callback cadence.
	sched *scheduler

	closing atomic.Bool
	failure atomic.Pointer[BackendError]

	// state is the Handle's lifecycle state, nil in unit tests.
	state *atomic.Int32
}

func newBridge(settings Settings, events *EventChannel, capacity int, stats *counters) *bridge {
	b := &bridge{
		settings: settings,
		events:   events,
		stats:    stats,
	}
	frames := int(settings.FramesPerBuffer)
	if settings.InChannels > 0 {
		b.in = NewBufferPool(Input, capacity+2, frames, int(settings.InChannels))
	}
	if settings.OutChannels > 0 {
		b.out = NewBufferPool(Output, 2*capacity+2, frames, int(settings.OutChannels))
		b.playback = make(chan *Buffer, capacity+1)
	}
	return b
}

// Process turns one invocation into an In event, an Out event and, with a
// per-callback cadence, an Update event, in that order.
func (b *bridge) Process(in, out []float32, info TimeInfo) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			b.stats.faults.Add(1)
			clear(out)
			res = Continue
		}
	}()

	if b.closing.Load() {
		clear(out)
		return Complete
	}

	b.stats.callbacks.Add(1)
	if info.Flags.Xrun() {
		b.stats.xruns.Add(1)
	}

	if b.in != nil {
		b.capture(in)
	}
	if b.out != nil {
		b.play(out)
		b.request()
	} else {
		clear(out)
	}
	if b.sched != nil {
		b.sched.tick()
	}

	return Continue
}

func (b *bridge) capture(in []float32) {
	buf := b.in.Get()
	if buf == nil {
		b.stats.droppedIn.Add(1)
		return
	}

	n := copy(buf.samples, in)
	clear(buf.samples[n:])

	if err := b.events.TrySend(Event{Kind: KindIn, Buffer: buf, Settings: b.settings}); err != nil {
		b.in.Put(buf)
		if err == ErrOverrun {
			b.stats.droppedIn.Add(1)
		}
	}
}

// play copies the oldest filled Buffer into the device output.
func (b *bridge) play(out []float32) {
	select {
	case buf := <-b.playback:
		n := copy(out, buf.samples)
		clear(out[n:])
		b.out.Put(buf)
	default:
		clear(out)
		b.stats.underflows.Add(1)
	}
}

// request hands an empty output Buffer to the consumer.
func (b *bridge) request() {
	buf := b.out.Get()
	if buf == nil {
		b.stats.droppedOut.Add(1)
		return
	}

	clear(buf.samples)

	if err := b.events.TrySend(Event{Kind: KindOut, Buffer: buf, Settings: b.settings}); err != nil {
		b.out.Put(buf)
		if err == ErrOverrun {
			b.stats.droppedOut.Add(1)
		}
	}
}

// submit queues a consumer-filled Buffer for playback. Consumer side only.
func (b *bridge) submit(buf *Buffer) {
	if b.closing.Load() {
		b.out.Put(buf)
		return
	}

	select {
	case b.playback <- buf:
	default:
		b.out.Put(buf)
		b.stats.lateOutput.Add(1)
	}
}

// release returns a consumed Buffer to where it belongs.
func (b *bridge) release(buf *Buffer) {
	if buf.dir == Input {
		b.in.Put(buf)
		return
	}
	b.submit(buf)
}

func (b *bridge) Fail(err error) {
	if err == nil {
		return
	}

	var be *BackendError
	if !errors.As(err, &be) {
		be = &BackendError{Op: "stream", Err: err}
	}
	b.failure.CompareAndSwap(nil, be)
	b.end()
}

func (b *bridge) Finish() {
	b.end()
}

// end stops event production after the backend failed or ran out of data.
// The consumer still drains what is queued.
func (b *bridge) end() {
	b.closing.Store(true)
	if b.state != nil {
		b.state.CompareAndSwap(int32(Running), int32(Closing))
	}
	b.events.Close()
}
