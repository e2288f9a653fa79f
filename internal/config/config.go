// SPDX-License-Identifier: EPL-2.0

// Package config reads the audstream configuration.
//
// Example TOML:
//
//	[stream]
//	sample_rate = 48000
//	buffer_hz = 100
//	in_channels = 2
//	update_interval = "50ms"
//
//	[portaudio]
//	input_device = "USB"
//	latency = "high"
//
// Every key can be overridden by an environment variable with the AUDSTREAM
// prefix, dots replaced by underscores: AUDSTREAM_STREAM_SAMPLE_RATE.
package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ik5/audstream/stream"
)

const EnvPrefix = "AUDSTREAM"

// Config is a view over a viper instance.
type Config struct {
	v *viper.Viper
}

// New returns a Config carrying the defaults and the standard search paths.
func New() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)
	v.SetConfigType("toml")
	v.SetConfigName("config")
	v.AddConfigPath("/etc/audstream")
	v.AddConfigPath("$HOME/.config/audstream")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("stream.sample_rate", 44100.0)
	v.SetDefault("stream.frames_per_buffer", 256)
	v.SetDefault("stream.buffer_hz", 0.0)
	v.SetDefault("stream.in_channels", 1)
	v.SetDefault("stream.out_channels", 0)
	v.SetDefault("stream.channel_capacity", stream.DefaultChannelCapacity)
	v.SetDefault("stream.update_interval", time.Duration(0))
	v.SetDefault("stream.update_frames", 0)
	v.SetDefault("stream.updates_per_buffer", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.logfile", "")

	v.SetDefault("portaudio.input_device", "")
	v.SetDefault("portaudio.output_device", "")
	v.SetDefault("portaudio.latency", "low")

	v.SetDefault("replay.pace", true)

	return &Config{v: v}
}

// Read loads a config file. An empty path searches the default locations
// and a missing file there is not an error.
func (c *Config) Read(path string) error {
	if path != "" {
		c.v.SetConfigFile(path)
	}
	err := c.v.ReadInConfig()
	if err == nil {
		return nil
	}
	var notFound viper.ConfigFileNotFoundError
	if path == "" && errors.As(err, &notFound) {
		return nil
	}
	return fmt.Errorf("config: %w", err)
}

// BindFlag binds a command line flag to key so the flag wins when set.
func (c *Config) BindFlag(key string, flag *pflag.Flag) error {
	if flag == nil {
		return fmt.Errorf("config: no flag for %q", key)
	}
	return c.v.BindPFlag(key, flag)
}

// Set overrides a key.
func (c *Config) Set(key string, value any) { c.v.Set(key, value) }

// ConfigFile is the file that was read, if any.
func (c *Config) ConfigFile() string { return c.v.ConfigFileUsed() }

func (c *Config) Level() string   { return c.v.GetString("log.level") }
func (c *Config) Format() string  { return c.v.GetString("log.format") }
func (c *Config) LogFile() string { return c.v.GetString("log.logfile") }

func (c *Config) InputDevice() string  { return c.v.GetString("portaudio.input_device") }
func (c *Config) OutputDevice() string { return c.v.GetString("portaudio.output_device") }
func (c *Config) Latency() string      { return c.v.GetString("portaudio.latency") }

// Pace reports whether the replay backend runs callbacks in real time.
func (c *Config) Pace() bool { return c.v.GetBool("replay.pace") }

// Stream builds the stream configuration. A positive stream.buffer_hz
// replaces stream.frames_per_buffer. Without an update_interval, a positive
// stream.update_frames or else stream.updates_per_buffer sets the Update
// cadence. The sample rate may still be zero,
// meaning the device default, so the result is validated by the caller once
// the backend resolved it.
func (c *Config) Stream() (stream.Config, error) {
	rate := c.v.GetFloat64("stream.sample_rate")
	if rate < 0 {
		return stream.Config{}, &stream.SettingsError{Field: "sample_rate", Reason: "must not be negative"}
	}

	frames := c.v.GetInt("stream.frames_per_buffer")
	if hz := c.v.GetFloat64("stream.buffer_hz"); hz > 0 {
		if rate == 0 {
			return stream.Config{}, &stream.SettingsError{Field: "buffer_hz", Reason: "needs an explicit sample_rate"}
		}
		frames = int(stream.FramesForHz(rate, hz))
		if frames == 0 {
			return stream.Config{}, &stream.SettingsError{Field: "buffer_hz", Reason: "out of range"}
		}
	}
	if frames <= 0 || uint64(frames) > math.MaxUint32 {
		return stream.Config{}, &stream.SettingsError{Field: "frames_per_buffer", Reason: "must be between 1 and 2^32-1"}
	}
	settings := stream.Settings{SampleRate: rate, FramesPerBuffer: uint32(frames)}

	interval, err := updateInterval(c.v, settings)
	if err != nil {
		return stream.Config{}, err
	}

	in, err := channels(c.v.GetInt("stream.in_channels"), "in_channels")
	if err != nil {
		return stream.Config{}, err
	}
	out, err := channels(c.v.GetInt("stream.out_channels"), "out_channels")
	if err != nil {
		return stream.Config{}, err
	}

	settings.InChannels = in
	settings.OutChannels = out
	return stream.Config{
		Settings:        settings,
		ChannelCapacity: c.v.GetInt("stream.channel_capacity"),
		UpdateInterval:  interval,
	}, nil
}

func updateInterval(v *viper.Viper, s stream.Settings) (time.Duration, error) {
	if d := v.GetDuration("stream.update_interval"); d != 0 {
		return d, nil
	}

	frames := v.GetInt("stream.update_frames")
	perBuffer := v.GetInt("stream.updates_per_buffer")
	switch {
	case frames < 0 || uint64(frames) > math.MaxUint32:
		return 0, &stream.SettingsError{Field: "update_frames", Reason: "out of range"}
	case perBuffer < 0:
		return 0, &stream.SettingsError{Field: "updates_per_buffer", Reason: "must not be negative"}
	case frames == 0 && perBuffer == 0:
		return 0, nil
	case s.SampleRate == 0:
		return 0, &stream.SettingsError{Field: "update_frames", Reason: "needs an explicit sample_rate"}
	case frames > 0:
		return s.FramesDuration(uint32(frames)), nil
	default:
		return s.UpdatesPerBuffer(perBuffer), nil
	}
}

func channels(n int, field string) (uint16, error) {
	if n < 0 || n > 1<<16-1 {
		return 0, &stream.SettingsError{Field: field, Reason: "out of range"}
	}
	return uint16(n), nil
}
