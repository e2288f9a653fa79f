// SPDX-License-Identifier: EPL-2.0

package stream

import (
	"context"
	"errors"
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultChannelCapacity is used when Config.ChannelCapacity is zero.
const DefaultChannelCapacity = 32

// ErrNoBackend is returned by Run when no Backend is given.
var ErrNoBackend = errors.New("stream: no backend")

// State of a stream. A stream is Closing from Stop, the end of the
// backend's data or a backend failure until its queued events are drained,
// then Stopped.
type State int32

const (
	Stopped State = iota
	Running
	Closing
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	case Closing:
		return "closing"
	default:
		return "unknown"
	}
}

// Config describes a stream to Run.
type Config struct {
	Settings Settings
	// ChannelCapacity bounds the number of queued Events. Zero selects
	// DefaultChannelCapacity.
	ChannelCapacity int
	// UpdateInterval is the cadence of Update events. Zero emits one Update
	// after every processed invocation.
	UpdateInterval time.Duration
}

// DefaultConfig returns CD quality duplex settings with per-callback updates.
func DefaultConfig() Config {
	return Config{
		Settings:        CDQuality(),
		ChannelCapacity: DefaultChannelCapacity,
	}
}

// Validate checks the Settings and the channel options.
func (c Config) Validate() error {
	if err := c.Settings.Validate(); err != nil {
		return err
	}
	if c.ChannelCapacity < 0 {
		return &SettingsError{Field: "channel_capacity", Reason: "must not be negative"}
	}
	if c.UpdateInterval < 0 {
		return &SettingsError{Field: "update_interval", Reason: "must not be negative"}
	}
	return nil
}

// Option customizes Run.
type Option func(*options)

type options struct {
	log logrus.FieldLogger
	now func() time.Time
}

// WithLogger sets the logger used for lifecycle messages.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithClock replaces time.Now for Update elapsed times.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// Handle is a running stream. Next, Events and the Buffers they yield belong
// to a single consumer goroutine; Stop, State, Stats and Active may be
// called from anywhere.
//
// A yielded Buffer is released implicitly: it is valid until the next call to
// Next, the next iteration of Events, or teardown, whichever comes first.
type Handle struct {
	id      string
	cfg     Config
	backend Backend
	events  *EventChannel
	bridge  *bridge
	sched   *scheduler
	stats   counters
	state   atomic.Int32
	log     logrus.FieldLogger

	// consumer owned
	held     *Buffer
	reported bool

	mu       sync.Mutex
	stopCtx  func() bool
	stopOnce sync.Once
	stopErr  error
}

// Run opens and starts backend with cfg and returns the Handle to consume
// its Events. The stream stops when ctx is done, when Stop is called, when an
// Events loop ends, or when the backend finishes or fails.
func Run(ctx context.Context, cfg Config, backend Backend, opts ...Option) (*Handle, error) {
	if backend == nil {
		return nil, ErrNoBackend
	}
	if cfg.ChannelCapacity == 0 {
		cfg.ChannelCapacity = DefaultChannelCapacity
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{log: logrus.StandardLogger(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	s := cfg.Settings
	h := &Handle{
		id:      uuid.NewString(),
		cfg:     cfg,
		backend: backend,
		events:  NewEventChannel(cfg.ChannelCapacity),
	}
	h.log = o.log.WithFields(logrus.Fields{
		"stream":       h.id,
		"sample_rate":  s.SampleRate,
		"frames":       s.FramesPerBuffer,
		"in_channels":  s.InChannels,
		"out_channels": s.OutChannels,
		"capacity":     cfg.ChannelCapacity,
	})
	h.sched = newScheduler(h.events, s, cfg.UpdateInterval, o.now, &h.stats.droppedUpdates)
	h.bridge = newBridge(s, h.events, cfg.ChannelCapacity, &h.stats)
	h.bridge.state = &h.state
	if h.sched.perCallback() {
		h.bridge.sched = h.sched
	}

	if err := backend.Open(s, h.bridge); err != nil {
		h.log.WithError(err).Error("open backend")
		return nil, backendErr("open", err)
	}

	h.sched.start(o.now())
	h.state.Store(int32(Running))

	if err := backend.Start(); err != nil {
		h.log.WithError(err).Error("start backend")
		h.bridge.closing.Store(true)
		h.sched.stop()
		if cerr := backend.Close(); cerr != nil {
			h.log.WithError(cerr).Warn("close backend")
		}
		h.events.Close()
		h.state.Store(int32(Stopped))
		return nil, backendErr("start", err)
	}

	h.mu.Lock()
	h.stopCtx = context.AfterFunc(ctx, func() { _ = h.Stop() })
	h.mu.Unlock()

	h.log.Debug("stream started")
	return h, nil
}

// Next blocks until the next Event. Once the stream is torn down and drained
// it returns ErrChannelClosed, preceded by a single *BackendError if the
// backend failed while running. A done ctx returns ctx.Err() and leaves the
// stream running.
func (h *Handle) Next(ctx context.Context) (Event, error) {
	h.release()

	ev, err := h.events.Receive(ctx)
	if err == nil {
		h.stats.delivered.Add(1)
		h.held = ev.Buffer
		return ev, nil
	}
	if !errors.Is(err, ErrChannelClosed) {
		return Event{}, err
	}

	_ = h.Stop()
	h.state.Store(int32(Stopped))

	if be := h.bridge.failure.Load(); be != nil && !h.reported {
		h.reported = true
		return Event{}, be
	}
	return Event{}, ErrChannelClosed
}

// Events returns an iterator over the stream. Breaking out of the loop stops
// the stream. A backend failure or a done ctx is yielded once as an error and
// ends the loop; a normal end of stream just ends it.
func (h *Handle) Events(ctx context.Context) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		defer func() {
			h.release()
			_ = h.Stop()
		}()

		for {
			ev, err := h.Next(ctx)
			if errors.Is(err, ErrChannelClosed) {
				return
			}
			if err != nil {
				yield(Event{}, err)
				return
			}
			if !yield(ev, nil) {
				return
			}
		}
	}
}

func (h *Handle) release() {
	if h.held == nil {
		return
	}
	buf := h.held
	h.held = nil
	h.bridge.release(buf)
}

// Stop tears the stream down: the backend is stopped and closed, the
// channel is closed and the update ticker is joined. Events queued before
// Stop can still be drained with Next. It is safe to call Stop more than once
// and concurrently with a running callback.
func (h *Handle) Stop() error {
	h.stopOnce.Do(func() { h.stopErr = h.teardown() })
	return h.stopErr
}

func (h *Handle) teardown() error {
	h.state.CompareAndSwap(int32(Running), int32(Closing))
	h.bridge.closing.Store(true)

	var errs []error
	if err := h.backend.Stop(); err != nil {
		errs = append(errs, backendErr("stop", err))
	}
	if err := h.backend.Close(); err != nil {
		errs = append(errs, backendErr("close", err))
	}
	h.events.Close()
	h.sched.stop()
	if h.events.Len() == 0 {
		h.state.Store(int32(Stopped))
	}

	h.mu.Lock()
	if h.stopCtx != nil {
		h.stopCtx()
	}
	h.mu.Unlock()

	st := h.Stats()
	entry := h.log.WithFields(logrus.Fields{
		"callbacks":  st.Callbacks,
		"delivered":  st.Delivered,
		"dropped":    st.Dropped(),
		"underflows": st.Underflows,
		"faults":     st.Faults,
	})

	err := errors.Join(errs...)
	if err != nil {
		entry.WithError(err).Warn("stream stopped with errors")
		return err
	}
	entry.Debug("stream stopped")
	return nil
}

// State returns the current lifecycle state.
func (h *Handle) State() State { return State(h.state.Load()) }

// Active reports whether the backend is still delivering callbacks.
func (h *Handle) Active() bool { return h.State() == Running && !h.bridge.closing.Load() }

// Stats returns a snapshot of the stream counters.
func (h *Handle) Stats() Stats { return h.stats.snapshot() }

func (h *Handle) Settings() Settings { return h.cfg.Settings }
func (h *Handle) Config() Config     { return h.cfg }

// ID is a unique identifier used in log fields.
func (h *Handle) ID() string { return h.id }
