// SPDX-License-Identifier: EPL-2.0

package stream

import (
	"context"
	"sync"
)

// EventChannel is a bounded FIFO of Events. Producers use TrySend, which never
// blocks; a single consumer uses Receive.
//
// The ring itself is never closed. Close only closes done, so producers racing
// with Close cannot panic and the consumer can still drain what was queued.
type EventChannel struct {
	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
}

// NewEventChannel returns a channel that holds at most capacity Events.
func NewEventChannel(capacity int) *EventChannel {
	return &EventChannel{
		events: make(chan Event, max(capacity, 1)),
		done:   make(chan struct{}),
	}
}

// TrySend enqueues ev without blocking. It returns ErrOverrun when the
// channel is full and ErrChannelClosed after Close.
func (c *EventChannel) TrySend(ev Event) error {
	select {
	case <-c.done:
		return ErrChannelClosed
	default:
	}

	select {
	case c.events <- ev:
		return nil
	default:
		return ErrOverrun
	}
}

// Receive blocks until an Event is queued, the channel is closed and empty,
// or ctx is done. Events queued before Close are still delivered.
func (c *EventChannel) Receive(ctx context.Context) (Event, error) {
	select {
	case ev := <-c.events:
		return ev, nil
	default:
	}

	select {
	case ev := <-c.events:
		return ev, nil
	case <-c.done:
		select {
		case ev := <-c.events:
			return ev, nil
		default:
			return Event{}, ErrChannelClosed
		}
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

// Close stops accepting Events. It is safe to call more than once.
func (c *EventChannel) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Done is closed by Close.
func (c *EventChannel) Done() <-chan struct{} { return c.done }

func (c *EventChannel) Len() int { return len(c.events) }
func (c *EventChannel) Cap() int { return cap(c.events) }
