// SPDX-License-Identifier: EPL-2.0

package stream

import (
	"math"
	"time"
)

// Settings are the negotiated parameters of a running stream.
// They never change once the stream starts and every Event carries a copy.
type Settings struct {
	// SampleRate in Hz.
	SampleRate float64
	// FramesPerBuffer is the number of frames per callback invocation.
	FramesPerBuffer uint32
	// InChannels is the number of interleaved input channels, 0 for output only.
	InChannels uint16
	// OutChannels is the number of interleaved output channels, 0 for input only.
	OutChannels uint16
}

// CDQuality returns duplex stereo settings at 44.1kHz with 256 frames per buffer.
func CDQuality() Settings {
	return Settings{
		SampleRate:      44100,
		FramesPerBuffer: 256,
		InChannels:      2,
		OutChannels:     2,
	}
}

// FramesForHz returns the frames per buffer closest to a callback rate of hz
// invocations per second, at least 1. It returns 0, which Validate rejects,
// when either argument is not a positive number or the result does not fit
// in a uint32.
func FramesForHz(sampleRate, hz float64) uint32 {
	if !positive(sampleRate) || !positive(hz) {
		return 0
	}
	frames := max(1, math.Round(sampleRate/hz))
	if frames > math.MaxUint32 {
		return 0
	}
	return uint32(frames)
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}

// FramesDuration is the wall time covered by frames frames. As an
// UpdateInterval it gives one Update every frames frames.
func (s Settings) FramesDuration(frames uint32) time.Duration {
	if s.SampleRate <= 0 {
		return 0
	}
	return time.Duration(math.Round(float64(frames) * float64(time.Second) / s.SampleRate))
}

// UpdatesPerBuffer is the UpdateInterval giving n Updates per callback
// invocation. It returns 0, one Update per invocation, for n < 1.
func (s Settings) UpdatesPerBuffer(n int) time.Duration {
	if n < 1 {
		return 0
	}
	return s.BufferDuration() / time.Duration(n)
}

// Validate reports the first invalid field as a *SettingsError.
func (s Settings) Validate() error {
	switch {
	case math.IsNaN(s.SampleRate) || math.IsInf(s.SampleRate, 0) || s.SampleRate <= 0:
		return &SettingsError{Field: "sample_rate", Reason: "must be a positive number"}
	case s.FramesPerBuffer == 0:
		return &SettingsError{Field: "frames_per_buffer", Reason: "must be greater than zero"}
	case s.InChannels == 0 && s.OutChannels == 0:
		return &SettingsError{Field: "channels", Reason: "at least one of in_channels or out_channels must be set"}
	}
	return nil
}

// Channels returns the channel count for one direction.
func (s Settings) Channels(dir Direction) int {
	if dir == Input {
		return int(s.InChannels)
	}
	return int(s.OutChannels)
}

// BufferLen is the number of samples in a Buffer of the given direction.
func (s Settings) BufferLen(dir Direction) int {
	return int(s.FramesPerBuffer) * s.Channels(dir)
}

// BufferDuration is the wall time covered by one callback invocation.
func (s Settings) BufferDuration() time.Duration {
	return s.FramesDuration(s.FramesPerBuffer)
}

// Duplex reports whether both directions are active.
func (s Settings) Duplex() bool { return s.InChannels > 0 && s.OutChannels > 0 }
