// SPDX-License-Identifier: EPL-2.0

package stream

import (
	"fmt"
	"time"
)

// Kind tags the variant held by an Event.
type Kind uint8

const (
	// KindIn carries captured input samples.
	KindIn Kind = iota + 1
	// KindOut carries a Buffer the consumer fills for playback.
	KindOut
	// KindUpdate carries the time elapsed since the previous update.
	KindUpdate
)

func (k Kind) String() string {
	switch k {
	case KindIn:
		return "in"
	case KindOut:
		return "out"
	case KindUpdate:
		return "update"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Event is one item of a stream. In and Out events carry a Buffer,
// Update events carry Elapsed. Every event carries the stream Settings.
type Event struct {
	Kind     Kind
	Buffer   *Buffer
	Elapsed  time.Duration
	Settings Settings
}

func (e Event) String() string {
	switch e.Kind {
	case KindUpdate:
		return fmt.Sprintf("update(%s)", e.Elapsed)
	case KindIn, KindOut:
		n := 0
		if e.Buffer != nil {
			n = e.Buffer.Frames()
		}
		return fmt.Sprintf("%s(%d frames)", e.Kind, n)
	default:
		return e.Kind.String()
	}
}
