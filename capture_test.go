// SPDX-License-Identifier: EPL-2.0

package audstream

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ik5/audstream/backend/replay"
	"github.com/ik5/audstream/internal/audiotest"
	"github.com/ik5/audstream/stream"
)

func quiet() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func captureConfig(in uint16) stream.Config {
	return stream.Config{
		Settings: stream.Settings{
			SampleRate:      8000,
			FramesPerBuffer: 80,
			InChannels:      in,
		},
		ChannelCapacity: 64,
		UpdateInterval:  time.Hour,
	}
}

func TestCapture(t *testing.T) {
	t.Parallel()

	src := audiotest.NewConstantSource(8000, 2, 8000, 0.5)
	backend := replay.New(src, replay.WithLogger(quiet()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got, err := Capture(ctx, backend, captureConfig(2), 200, stream.WithLogger(quiet()))
	require.NoError(t, err)
	require.Len(t, got, 400)
	for i, v := range got {
		if v != 0.5 {
			t.Fatalf("sample %d = %v, want 0.5", i, v)
		}
	}
	assert.True(t, src.Closed(), "source not closed after capture")
}

func TestCapture_EndsEarly(t *testing.T) {
	t.Parallel()

	src := audiotest.NewConstantSource(8000, 1, 160, 0.25)
	backend := replay.New(src, replay.WithLogger(quiet()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got, err := Capture(ctx, backend, captureConfig(1), 1000, stream.WithLogger(quiet()))
	require.NoError(t, err)
	assert.Len(t, got, 160)
}

func TestCapture_Invalid(t *testing.T) {
	t.Parallel()

	backend := audiotest.NewManualBackend()
	ctx := context.Background()

	_, err := Capture(ctx, backend, captureConfig(0), 10)
	assert.ErrorIs(t, err, ErrNoInput)

	_, err = Capture(ctx, backend, captureConfig(1), 0)
	assert.Error(t, err)

	assert.False(t, backend.Opened())
}

func TestCapture_StartFailure(t *testing.T) {
	t.Parallel()

	cause := errors.New("device busy")
	backend := audiotest.NewManualBackend()
	backend.StartErr = cause

	_, err := Capture(context.Background(), backend, captureConfig(1), 10, stream.WithLogger(quiet()))

	var be *stream.BackendError
	require.True(t, errors.As(err, &be), "error = %v", err)
	assert.Equal(t, "start", be.Op)
	assert.ErrorIs(t, err, cause)
}

func TestCapture_Cancelled(t *testing.T) {
	t.Parallel()

	backend := audiotest.NewManualBackend()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	got, err := Capture(ctx, backend, captureConfig(1), 10, stream.WithLogger(quiet()))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, got)
	assert.True(t, backend.Closed())
}
