// SPDX-License-Identifier: EPL-2.0

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ik5/audstream/stream"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audstream.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaults(t *testing.T) {
	c := New()

	assert.Equal(t, "info", c.Level())
	assert.Equal(t, "text", c.Format())
	assert.Equal(t, "", c.LogFile())
	assert.Equal(t, "low", c.Latency())
	assert.True(t, c.Pace())

	cfg, err := c.Stream()
	require.NoError(t, err)
	assert.Equal(t, stream.Settings{SampleRate: 44100, FramesPerBuffer: 256, InChannels: 1}, cfg.Settings)
	assert.Equal(t, stream.DefaultChannelCapacity, cfg.ChannelCapacity)
	assert.Equal(t, time.Duration(0), cfg.UpdateInterval)
	assert.NoError(t, cfg.Validate())
}

func TestRead(t *testing.T) {
	path := writeConfig(t, `
[stream]
sample_rate = 48000
frames_per_buffer = 128
in_channels = 2
out_channels = 2
channel_capacity = 8
update_interval = "50ms"

[log]
level = "debug"
format = "json"

[portaudio]
input_device = "USB Mic"
latency = "high"

[replay]
pace = false
`)
	c := New()
	require.NoError(t, c.Read(path))
	assert.Equal(t, path, c.ConfigFile())

	cfg, err := c.Stream()
	require.NoError(t, err)
	assert.Equal(t, stream.Settings{SampleRate: 48000, FramesPerBuffer: 128, InChannels: 2, OutChannels: 2}, cfg.Settings)
	assert.Equal(t, 8, cfg.ChannelCapacity)
	assert.Equal(t, 50*time.Millisecond, cfg.UpdateInterval)

	assert.Equal(t, "debug", c.Level())
	assert.Equal(t, "json", c.Format())
	assert.Equal(t, "USB Mic", c.InputDevice())
	assert.Equal(t, "", c.OutputDevice())
	assert.Equal(t, "high", c.Latency())
	assert.False(t, c.Pace())
}

func TestRead_MissingExplicitFile(t *testing.T) {
	c := New()
	err := c.Read(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestRead_NoFileInSearchPath(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	c := New()
	assert.NoError(t, c.Read(""))
}

func TestStream_BufferHz(t *testing.T) {
	tt := []struct {
		name     string
		rate     float64
		hz       float64
		expected uint32
	}{
		{"100 per second at 48k", 48000, 100, 480},
		{"rounds", 44100, 1000, 44},
		{"never below one frame", 8000, 100000, 1},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			c := New()
			c.Set("stream.sample_rate", tc.rate)
			c.Set("stream.buffer_hz", tc.hz)
			cfg, err := c.Stream()
			require.NoError(t, err)
			assert.Equal(t, tc.expected, cfg.Settings.FramesPerBuffer)
		})
	}
}

func TestStream_Invalid(t *testing.T) {
	tt := []struct {
		name  string
		key   string
		value any
		field string
	}{
		{"negative rate", "stream.sample_rate", -1.0, "sample_rate"},
		{"zero frames", "stream.frames_per_buffer", 0, "frames_per_buffer"},
		{"negative channels", "stream.in_channels", -2, "in_channels"},
		{"too many channels", "stream.out_channels", 70000, "out_channels"},
		{"buffer hz too low", "stream.buffer_hz", 1e-5, "buffer_hz"},
		{"negative update frames", "stream.update_frames", -1, "update_frames"},
		{"negative updates per buffer", "stream.updates_per_buffer", -4, "updates_per_buffer"},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			c := New()
			c.Set(tc.key, tc.value)
			_, err := c.Stream()
			var se *stream.SettingsError
			require.True(t, errors.As(err, &se), "error = %v", err)
			assert.Equal(t, tc.field, se.Field)
			assert.ErrorIs(t, err, stream.ErrInvalidSettings)
		})
	}
}

func TestStream_UpdateCadence(t *testing.T) {
	tt := []struct {
		name     string
		set      map[string]any
		expected time.Duration
	}{
		{"per callback by default", nil, 0},
		{"every 480 frames", map[string]any{"stream.update_frames": 480}, 10 * time.Millisecond},
		{"four per buffer", map[string]any{"stream.updates_per_buffer": 4}, 2500 * time.Microsecond},
		{"frames before per buffer", map[string]any{
			"stream.update_frames":      4800,
			"stream.updates_per_buffer": 4,
		}, 100 * time.Millisecond},
		{"interval wins", map[string]any{
			"stream.update_interval": "40ms",
			"stream.update_frames":   480,
		}, 40 * time.Millisecond},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			c := New()
			c.Set("stream.sample_rate", 48000.0)
			c.Set("stream.frames_per_buffer", 480)
			for k, v := range tc.set {
				c.Set(k, v)
			}
			cfg, err := c.Stream()
			require.NoError(t, err)
			assert.Equal(t, tc.expected, cfg.UpdateInterval)
		})
	}
}

func TestStream_UpdateFramesNeedsRate(t *testing.T) {
	c := New()
	c.Set("stream.sample_rate", 0.0)
	c.Set("stream.update_frames", 480)
	_, err := c.Stream()
	assert.ErrorIs(t, err, stream.ErrInvalidSettings)
}

func TestStream_BufferHzNeedsRate(t *testing.T) {
	c := New()
	c.Set("stream.sample_rate", 0.0)
	c.Set("stream.buffer_hz", 100.0)
	_, err := c.Stream()
	assert.ErrorIs(t, err, stream.ErrInvalidSettings)
}

func TestEnvironment(t *testing.T) {
	t.Setenv("AUDSTREAM_LOG_LEVEL", "error")
	t.Setenv("AUDSTREAM_STREAM_IN_CHANNELS", "4")

	c := New()
	assert.Equal(t, "error", c.Level())
	cfg, err := c.Stream()
	require.NoError(t, err)
	assert.Equal(t, uint16(4), cfg.Settings.InChannels)
}

func TestBindFlag(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("log-level", "info", "")
	require.NoError(t, fs.Parse([]string{"--log-level", "debug"}))

	c := New()
	require.NoError(t, c.BindFlag("log.level", fs.Lookup("log-level")))
	assert.Equal(t, "debug", c.Level())

	assert.Error(t, c.BindFlag("log.format", fs.Lookup("missing")))
}
