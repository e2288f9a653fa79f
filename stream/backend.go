// SPDX-License-Identifier: EPL-2.0

package stream

import "time"

// Result is the decision returned to the driver after every invocation.
type Result int

const (
	// Continue keeps the callback running.
	Continue Result = iota
	// Complete asks the driver to finish once pending output is played.
	Complete
	// Abort asks the driver to stop immediately.
	Abort
)

func (r Result) String() string {
	switch r {
	case Continue:
		return "continue"
	case Complete:
		return "complete"
	case Abort:
		return "abort"
	default:
		return "unknown"
	}
}

// Flags are driver status bits reported with an invocation.
type Flags uint32

const (
	InputUnderflow Flags = 1 << iota
	InputOverflow
	OutputUnderflow
	OutputOverflow
	PrimingOutput
)

// Xrun reports whether any under- or overflow bit is set.
func (f Flags) Xrun() bool {
	return f&(InputUnderflow|InputOverflow|OutputUnderflow|OutputOverflow) != 0
}

// TimeInfo is the driver's timing for one invocation. Times are on the
// driver's stream clock.
type TimeInfo struct {
	InputADC  time.Duration
	Current   time.Duration
	OutputDAC time.Duration
	Flags     Flags
}

// Host is what a Backend drives. Process is called from the real-time
// thread; it never blocks and never allocates.
type Host interface {
	// Process handles one invocation. in holds FramesPerBuffer*InChannels
	// captured samples and out must be filled with
	// FramesPerBuffer*OutChannels samples before Process returns.
	Process(in, out []float32, info TimeInfo) Result
	// Fail reports a driver failure while running. The stream ends with a
	// *BackendError once its queued events are drained.
	Fail(err error)
	// Finish reports that the driver has no more data. The stream ends
	// normally once its queued events are drained.
	Finish()
}

// Backend is an audio driver. Run calls Open, Start, and on teardown Stop
// then Close. After Stop returns, Process must not be called again.
type Backend interface {
	Open(settings Settings, host Host) error
	Start() error
	Stop() error
	Close() error
}
