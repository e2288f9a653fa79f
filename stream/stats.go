// SPDX-License-Identifier: EPL-2.0

package stream

import "sync/atomic"

// Stats is a snapshot of a stream's counters.
type Stats struct {
	// Callbacks is the number of invocations processed while running.
	Callbacks uint64
	// Delivered is the number of Events handed to the consumer.
	Delivered uint64
	// DroppedIn, DroppedOut and DroppedUpdates count Events lost because the
	// channel was full or no Buffer was free.
	DroppedIn      uint64
	DroppedOut     uint64
	DroppedUpdates uint64
	// Underflows counts invocations that played silence because no filled
	// output Buffer was queued.
	Underflows uint64
	// LateOutput counts filled output Buffers discarded because the
	// playback queue was full or the stream was closing.
	LateOutput uint64
	// Faults counts invocations that recovered from a panic.
	Faults uint64
	// Xruns counts invocations the driver flagged as under- or overflowing.
	Xruns uint64
}

// Dropped is the total number of Events lost to backpressure.
func (s Stats) Dropped() uint64 { return s.DroppedIn + s.DroppedOut + s.DroppedUpdates }

type counters struct {
	callbacks      atomic.Uint64
	delivered      atomic.Uint64
	droppedIn      atomic.Uint64
	droppedOut     atomic.Uint64
	droppedUpdates atomic.Uint64
	underflows     atomic.Uint64
	lateOutput     atomic.Uint64
	faults         atomic.Uint64
	xruns          atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Callbacks:      c.callbacks.Load(),
		Delivered:      c.delivered.Load(),
		DroppedIn:      c.droppedIn.Load(),
		DroppedOut:     c.droppedOut.Load(),
		DroppedUpdates: c.droppedUpdates.Load(),
		Underflows:     c.underflows.Load(),
		LateOutput:     c.lateOutput.Load(),
		Faults:         c.faults.Load(),
		Xruns:          c.xruns.Load(),
	}
}
