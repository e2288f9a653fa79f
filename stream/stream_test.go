// SPDX-License-Identifier: EPL-2.0

package stream_test

import (
	"context"
	"errors"
	"io"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ik5/audstream/internal/audiotest"
	"github.com/ik5/audstream/stream"
)

// noUpdates keeps the ticker from firing during a test.
const noUpdates = time.Hour

type received struct {
	kind    stream.Kind
	samples []float32
	elapsed time.Duration
}

func quietLogger() logrus.FieldLogger {
	l, _ := test.NewNullLogger()
	return l
}

func run(t *testing.T, cfg stream.Config, b stream.Backend, opts ...stream.Option) *stream.Handle {
	t.Helper()

	opts = append([]stream.Option{stream.WithLogger(quietLogger())}, opts...)
	h, err := stream.Run(context.Background(), cfg, b, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Stop() })
	return h
}

// collect drains h with the range iterator, copying every Buffer.
func collect(t *testing.T, h *stream.Handle) ([]received, error) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var got []received
	for ev, err := range h.Events(ctx) {
		if err != nil {
			return got, err
		}
		r := received{kind: ev.Kind, elapsed: ev.Elapsed}
		if ev.Buffer != nil {
			r.samples = slices.Clone(ev.Buffer.Samples())
		}
		got = append(got, r)
	}
	return got, nil
}

func uniform(s []float32) bool {
	for _, v := range s {
		if v != s[0] {
			return false
		}
	}
	return true
}

func TestRun_InputOnlyCallbacks(t *testing.T) {
	t.Parallel()

	cfg := stream.Config{
		Settings:        stream.Settings{SampleRate: 44100, FramesPerBuffer: 512, InChannels: 1},
		ChannelCapacity: 32,
		UpdateInterval:  noUpdates,
	}
	b := audiotest.NewManualBackend()
	h := run(t, cfg, b)

	for i := range 10 {
		_, res, ok := b.InvokeValue(float32(i) / 10)
		require.True(t, ok)
		assert.Equal(t, stream.Continue, res)
	}
	b.Finish()

	got, err := collect(t, h)
	require.NoError(t, err)
	require.Len(t, got, 10)

	for i, r := range got {
		assert.Equal(t, stream.KindIn, r.kind)
		assert.Len(t, r.samples, 512)
		assert.InDelta(t, float32(i)/10, r.samples[0], 1e-6, "event %d out of order", i)
	}

	st := h.Stats()
	assert.EqualValues(t, 10, st.Callbacks)
	assert.EqualValues(t, 10, st.Delivered)
	assert.Zero(t, st.Dropped())
	assert.Equal(t, stream.Stopped, h.State())
}

func TestRun_OutputOnlyCallbacks(t *testing.T) {
	t.Parallel()

	cfg := stream.Config{
		Settings:        stream.Settings{SampleRate: 48000, FramesPerBuffer: 64, OutChannels: 2},
		ChannelCapacity: 16,
		UpdateInterval:  noUpdates,
	}
	b := audiotest.NewManualBackend()
	h := run(t, cfg, b)

	for range 4 {
		b.Invoke(nil)
	}
	b.Finish()

	got, err := collect(t, h)
	require.NoError(t, err)
	require.Len(t, got, 4)
	for _, r := range got {
		assert.Equal(t, stream.KindOut, r.kind)
		assert.Len(t, r.samples, 128)
	}
}

func TestRun_CapacityOneDropsNewest(t *testing.T) {
	t.Parallel()

	cfg := stream.Config{
		Settings:        stream.Settings{SampleRate: 44100, FramesPerBuffer: 32, InChannels: 1},
		ChannelCapacity: 1,
		UpdateInterval:  noUpdates,
	}
	b := audiotest.NewManualBackend()
	h := run(t, cfg, b)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := range 3 {
			b.InvokeValue(float32(i + 1))
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("producer blocked on a full channel")
	}
	b.Finish()

	got, err := collect(t, h)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, float32(1), got[0].samples[0])
	assert.EqualValues(t, 2, h.Stats().DroppedIn)
}

func TestRun_DuplexLoopback(t *testing.T) {
	t.Parallel()

	cfg := stream.Config{
		Settings:        stream.Settings{SampleRate: 8000, FramesPerBuffer: 4, InChannels: 1, OutChannels: 1},
		ChannelCapacity: 8,
	}
	b := audiotest.NewManualBackend()
	h := run(t, cfg, b)
	ctx := context.Background()

	out, _, _ := b.InvokeValue(0.5)
	assert.Equal(t, []float32{0, 0, 0, 0}, out, "nothing queued yet")

	in, err := h.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, stream.KindIn, in.Kind)
	captured := slices.Clone(in.Buffer.Samples())

	req, err := h.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, stream.KindOut, req.Kind)
	copy(req.Buffer.Samples(), captured)

	upd, err := h.Next(ctx) // releases the filled Out buffer
	require.NoError(t, err)
	require.Equal(t, stream.KindUpdate, upd.Kind)

	out, _, _ = b.InvokeValue(0)
	assert.Equal(t, []float32{0.5, 0.5, 0.5, 0.5}, out)
	assert.EqualValues(t, 1, h.Stats().Underflows)
}

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestRun_UpdatesSumToStreamTime(t *testing.T) {
	t.Parallel()

	clock := &stepClock{now: time.Unix(1000, 0)}
	start := clock.Now()

	cfg := stream.Config{
		Settings:        stream.Settings{SampleRate: 44100, FramesPerBuffer: 441, InChannels: 1},
		ChannelCapacity: 3,
	}
	b := audiotest.NewManualBackend()
	h := run(t, cfg, b, stream.WithClock(clock.Now))

	// a small channel forces updates to be dropped: In, Update, In fit
	for range 6 {
		clock.Advance(10 * time.Millisecond)
		b.Invoke(nil)
	}

	var total time.Duration
	for range 3 {
		ev, err := h.Next(context.Background())
		require.NoError(t, err)
		if ev.Kind == stream.KindUpdate {
			total += ev.Elapsed
		}
	}
	assert.Equal(t, 10*time.Millisecond, total)

	clock.Advance(10 * time.Millisecond)
	b.Invoke(nil)
	b.Finish()

	got, err := collect(t, h)
	require.NoError(t, err)
	require.Len(t, got, 2)

	for _, r := range got {
		if r.kind == stream.KindUpdate {
			assert.Equal(t, 60*time.Millisecond, r.elapsed, "dropped updates carry their time")
			total += r.elapsed
		}
	}
	assert.Equal(t, clock.Now().Sub(start), total)
	assert.EqualValues(t, 5, h.Stats().DroppedUpdates)
}

func TestRun_StopDuringCallbacks(t *testing.T) {
	t.Parallel()

	cfg := stream.Config{
		Settings:        stream.Settings{SampleRate: 44100, FramesPerBuffer: 256, InChannels: 2},
		ChannelCapacity: 4,
		UpdateInterval:  noUpdates,
	}
	b := audiotest.NewManualBackend()
	h := run(t, cfg, b)

	driverDone := make(chan struct{})
	go func() {
		defer close(driverDone)
		for i := 0; ; i++ {
			if _, _, ok := b.InvokeValue(float32(i % 1000)); !ok {
				return
			}
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	n := 0
	stopped := false
	for {
		ev, err := h.Next(ctx)
		if errors.Is(err, stream.ErrChannelClosed) {
			break
		}
		require.NoError(t, err)
		require.Equal(t, stream.KindIn, ev.Kind)
		require.Len(t, ev.Buffer.Samples(), 512)
		require.True(t, uniform(ev.Buffer.Samples()), "corrupted buffer delivered")

		n++
		if n == 5 && !stopped {
			stopped = true
			go func() { _ = h.Stop() }()
		}
	}

	select {
	case <-driverDone:
	case <-time.After(time.Second):
		t.Fatal("callbacks still running after Stop")
	}

	calls := b.Calls()
	_, _, ok := b.InvokeValue(1)
	assert.False(t, ok)
	assert.Equal(t, calls, b.Calls())
	assert.True(t, b.Stopped())
	assert.True(t, b.Closed())
	assert.Equal(t, stream.Stopped, h.State())
}

func TestEvents_BreakStopsStream(t *testing.T) {
	t.Parallel()

	cfg := stream.Config{
		Settings:        stream.Settings{SampleRate: 8000, FramesPerBuffer: 8, InChannels: 1},
		ChannelCapacity: 8,
		UpdateInterval:  noUpdates,
	}
	b := audiotest.NewManualBackend()
	h := run(t, cfg, b)

	for range 6 {
		b.Invoke(nil)
	}

	seen := 0
	for _, err := range h.Events(context.Background()) {
		require.NoError(t, err)
		seen++
		if seen == 3 {
			break
		}
	}

	assert.Equal(t, 3, seen)
	assert.True(t, b.Stopped())
	assert.True(t, b.Closed())
	assert.False(t, h.Active())

	_, _, ok := b.Invoke(nil)
	assert.False(t, ok, "callback ran after the iterator was dropped")

	// the remaining events can still be drained
	drained := 0
	for {
		_, err := h.Next(context.Background())
		if err != nil {
			assert.ErrorIs(t, err, io.EOF)
			break
		}
		drained++
	}
	assert.Equal(t, 3, drained)
	assert.Equal(t, stream.Stopped, h.State())
}

func TestRun_BackendFailure(t *testing.T) {
	t.Parallel()

	cfg := stream.Config{
		Settings:        stream.Settings{SampleRate: 8000, FramesPerBuffer: 8, InChannels: 1},
		ChannelCapacity: 8,
		UpdateInterval:  noUpdates,
	}
	b := audiotest.NewManualBackend()
	h := run(t, cfg, b)

	cause := errors.New("device lost")
	b.Invoke(nil)
	b.Invoke(nil)
	b.Fail(cause)

	got, err := collect(t, h)
	assert.Len(t, got, 2)

	var be *stream.BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "stream", be.Op)
	assert.ErrorIs(t, err, cause)

	_, err = h.Next(context.Background())
	assert.ErrorIs(t, err, stream.ErrChannelClosed, "failure is reported once")
	assert.True(t, b.Closed())
}

func TestRun_FailureReportedByNext(t *testing.T) {
	t.Parallel()

	cfg := stream.Config{
		Settings:       stream.Settings{SampleRate: 8000, FramesPerBuffer: 8, InChannels: 1},
		UpdateInterval: noUpdates,
	}
	b := audiotest.NewManualBackend()
	h := run(t, cfg, b)
	ctx := context.Background()

	b.Fail(&stream.BackendError{Op: "read", Err: io.ErrUnexpectedEOF})

	_, err := h.Next(ctx)
	var be *stream.BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "read", be.Op)

	for range 2 {
		_, err = h.Next(ctx)
		assert.ErrorIs(t, err, stream.ErrChannelClosed)
	}
}

func TestRun_Errors(t *testing.T) {
	t.Parallel()

	valid := stream.Config{
		Settings: stream.Settings{SampleRate: 8000, FramesPerBuffer: 8, InChannels: 1},
	}

	tests := []struct {
		name    string
		cfg     stream.Config
		backend func() *audiotest.ManualBackend
		check   func(t *testing.T, err error, b *audiotest.ManualBackend)
	}{
		{
			name: "invalid settings",
			cfg:  stream.Config{Settings: stream.Settings{SampleRate: 8000, InChannels: 1}},
			backend: func() *audiotest.ManualBackend {
				return audiotest.NewManualBackend()
			},
			check: func(t *testing.T, err error, b *audiotest.ManualBackend) {
				var se *stream.SettingsError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, "frames_per_buffer", se.Field)
				assert.False(t, b.Opened())
			},
		},
		{
			name: "open failure",
			cfg:  valid,
			backend: func() *audiotest.ManualBackend {
				b := audiotest.NewManualBackend()
				b.OpenErr = errors.New("no such device")
				return b
			},
			check: func(t *testing.T, err error, b *audiotest.ManualBackend) {
				var be *stream.BackendError
				require.ErrorAs(t, err, &be)
				assert.Equal(t, "open", be.Op)
			},
		},
		{
			name: "start failure",
			cfg:  valid,
			backend: func() *audiotest.ManualBackend {
				b := audiotest.NewManualBackend()
				b.StartErr = errors.New("device busy")
				return b
			},
			check: func(t *testing.T, err error, b *audiotest.ManualBackend) {
				var be *stream.BackendError
				require.ErrorAs(t, err, &be)
				assert.Equal(t, "start", be.Op)
				assert.True(t, b.Closed(), "backend not closed after failed start")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b := tt.backend()
			h, err := stream.Run(context.Background(), tt.cfg, b, stream.WithLogger(quietLogger()))
			assert.Nil(t, h)
			require.Error(t, err)
			tt.check(t, err, b)
		})
	}
}

func TestRun_NilBackend(t *testing.T) {
	t.Parallel()

	_, err := stream.Run(context.Background(), stream.DefaultConfig(), nil)
	assert.ErrorIs(t, err, stream.ErrNoBackend)
}

func TestRun_ContextCancelStops(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cfg := stream.Config{
		Settings:       stream.Settings{SampleRate: 8000, FramesPerBuffer: 8, InChannels: 1},
		UpdateInterval: noUpdates,
	}
	b := audiotest.NewManualBackend()
	h, err := stream.Run(ctx, cfg, b, stream.WithLogger(quietLogger()))
	require.NoError(t, err)
	assert.True(t, h.Active())

	cancel()

	require.Eventually(t, b.Stopped, time.Second, time.Millisecond)
	_, err = h.Next(context.Background())
	assert.ErrorIs(t, err, stream.ErrChannelClosed)
}

func TestHandle_StopIdempotent(t *testing.T) {
	t.Parallel()

	cfg := stream.Config{
		Settings:       stream.Settings{SampleRate: 8000, FramesPerBuffer: 8, OutChannels: 1},
		UpdateInterval: noUpdates,
	}
	b := audiotest.NewManualBackend()
	b.StopErr = errors.New("stop failed")
	h := run(t, cfg, b)

	assert.Equal(t, stream.Running, h.State())
	assert.NotEmpty(t, h.ID())
	assert.Equal(t, cfg.Settings, h.Settings())

	err := h.Stop()
	var be *stream.BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "stop", be.Op)
	assert.Equal(t, err, h.Stop())
	assert.Equal(t, stream.Stopped, h.State(), "nothing left to drain")

	_, err = h.Next(context.Background())
	assert.ErrorIs(t, err, stream.ErrChannelClosed)
	assert.Equal(t, stream.Stopped, h.State())
}

func TestHandle_StateTransitions(t *testing.T) {
	t.Parallel()

	cfg := stream.Config{
		Settings:       stream.Settings{SampleRate: 8000, FramesPerBuffer: 8, InChannels: 1},
		UpdateInterval: noUpdates,
	}
	ctx := context.Background()

	t.Run("fail", func(t *testing.T) {
		t.Parallel()

		b := audiotest.NewManualBackend()
		h := run(t, cfg, b)
		b.InvokeValue(0.5)
		b.Fail(errors.New("device lost"))

		assert.Equal(t, stream.Closing, h.State())
		assert.False(t, h.Active())

		_, err := h.Next(ctx)
		require.NoError(t, err, "queued event is still delivered")
		_, err = h.Next(ctx)
		var be *stream.BackendError
		require.ErrorAs(t, err, &be)
		assert.Equal(t, stream.Stopped, h.State())
	})

	t.Run("finish", func(t *testing.T) {
		t.Parallel()

		b := audiotest.NewManualBackend()
		h := run(t, cfg, b)
		b.InvokeValue(0.5)
		b.Finish()

		assert.Equal(t, stream.Closing, h.State())

		_, err := h.Next(ctx)
		require.NoError(t, err)
		_, err = h.Next(ctx)
		assert.ErrorIs(t, err, stream.ErrChannelClosed)
		assert.Equal(t, stream.Stopped, h.State())
	})

	t.Run("stop with events queued", func(t *testing.T) {
		t.Parallel()

		b := audiotest.NewManualBackend()
		h := run(t, cfg, b)
		b.InvokeValue(0.5)

		require.NoError(t, h.Stop())
		assert.Equal(t, stream.Closing, h.State())

		_, err := h.Next(ctx)
		require.NoError(t, err)
		_, err = h.Next(ctx)
		assert.ErrorIs(t, err, stream.ErrChannelClosed)
		assert.Equal(t, stream.Stopped, h.State())
	})

	t.Run("stop on empty channel", func(t *testing.T) {
		t.Parallel()

		b := audiotest.NewManualBackend()
		h := run(t, cfg, b)
		assert.Equal(t, stream.Running, h.State())

		require.NoError(t, h.Stop())
		assert.Equal(t, stream.Stopped, h.State())
	})
}

func TestRun_LogsLifecycle(t *testing.T) {
	t.Parallel()

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	cfg := stream.Config{
		Settings:       stream.Settings{SampleRate: 8000, FramesPerBuffer: 8, InChannels: 1},
		UpdateInterval: noUpdates,
	}
	h, err := stream.Run(context.Background(), cfg, audiotest.NewManualBackend(), stream.WithLogger(logger))
	require.NoError(t, err)
	require.NoError(t, h.Stop())

	entries := hook.AllEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, "stream started", entries[0].Message)
	assert.Equal(t, h.ID(), entries[0].Data["stream"])
	assert.Equal(t, "stream stopped", entries[1].Message)
}
