// SPDX-License-Identifier: EPL-2.0

package portaudio

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	pa "github.com/gordonklaus/portaudio"
	"github.com/sirupsen/logrus"

	"github.com/ik5/audstream/stream"
)

// Latency selects the suggested latency of the opened devices.
type Latency int

const (
	LowLatency Latency = iota
	HighLatency
)

// ParseLatency accepts "low" and "high".
func ParseLatency(s string) (Latency, error) {
	switch strings.ToLower(s) {
	case "", "low":
		return LowLatency, nil
	case "high":
		return HighLatency, nil
	}
	return LowLatency, fmt.Errorf("%w: %q", ErrBadLatency, s)
}

func (l Latency) String() string {
	if l == HighLatency {
		return "high"
	}
	return "low"
}

type Option func(*Backend)

// WithInputDevice selects the capture device by name. Empty means the
// default input device.
func WithInputDevice(name string) Option {
	return func(b *Backend) { b.inName = name }
}

// WithOutputDevice selects the playback device by name. Empty means the
// default output device.
func WithOutputDevice(name string) Option {
	return func(b *Backend) { b.outName = name }
}

func WithLatency(l Latency) Option {
	return func(b *Backend) { b.latency = l }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(b *Backend) {
		if l != nil {
			b.log = l
		}
	}
}

// Backend runs a stream on a PortAudio callback stream.
type Backend struct {
	inName, outName string
	latency         Latency
	log             logrus.FieldLogger

	mu     sync.Mutex
	host   stream.Host
	pstr   *pa.Stream
	active bool
}

func New(opts ...Option) *Backend {
	b := &Backend{log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Resolve fills in a zero SampleRate with the default rate of the device
// the stream would open: the input device when the stream captures,
// otherwise the output device.
func (b *Backend) Resolve(s stream.Settings) (stream.Settings, error) {
	if s.SampleRate != 0 {
		return s, nil
	}
	if err := acquire(); err != nil {
		return s, err
	}
	defer release()

	name, input := b.outName, false
	if s.InChannels > 0 {
		name, input = b.inName, true
	}
	d, err := lookup(name, input)
	if err != nil {
		return s, err
	}
	s.SampleRate = d.DefaultSampleRate
	return s, nil
}

func (b *Backend) Open(s stream.Settings, host stream.Host) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pstr != nil {
		return stream.ErrAlreadyOpen
	}
	if err := acquire(); err != nil {
		return err
	}

	params, err := b.parameters(s)
	if err == nil {
		b.host = host
		b.pstr, err = pa.OpenStream(params, b.callback)
		if err != nil {
			err = fmt.Errorf("portaudio: open stream: %w", err)
		}
	}
	if err != nil {
		b.host = nil
		return errors.Join(err, release())
	}

	entry := b.log.WithFields(logrus.Fields{
		"sample_rate": params.SampleRate,
		"frames":      params.FramesPerBuffer,
		"latency":     b.latency,
	})
	if params.Input.Device != nil {
		entry = entry.WithField("input", params.Input.Device.Name)
	}
	if params.Output.Device != nil {
		entry = entry.WithField("output", params.Output.Device.Name)
	}
	entry.Debug("portaudio stream opened")
	return nil
}

func (b *Backend) parameters(s stream.Settings) (pa.StreamParameters, error) {
	var in, out *pa.DeviceInfo
	var err error
	if s.InChannels > 0 {
		if in, err = lookup(b.inName, true); err != nil {
			return pa.StreamParameters{}, err
		}
	}
	if s.OutChannels > 0 {
		if out, err = lookup(b.outName, false); err != nil {
			return pa.StreamParameters{}, err
		}
	}
	return buildParameters(s, in, out, b.latency), nil
}

// buildParameters turns stream settings into PortAudio parameters for the
// given devices. Either device may be nil when its direction is unused.
func buildParameters(s stream.Settings, in, out *pa.DeviceInfo, l Latency) pa.StreamParameters {
	var p pa.StreamParameters
	if l == HighLatency {
		p = pa.HighLatencyParameters(in, out)
	} else {
		p = pa.LowLatencyParameters(in, out)
	}
	p.Input.Channels = int(s.InChannels)
	p.Output.Channels = int(s.OutChannels)
	p.SampleRate = s.SampleRate
	p.FramesPerBuffer = int(s.FramesPerBuffer)
	return p
}

func (b *Backend) callback(in, out []float32, ti pa.StreamCallbackTimeInfo, flags pa.StreamCallbackFlags) {
	// The binding has no way to end the stream from the callback, so the
	// result is left to the host's own teardown.
	_ = b.host.Process(in, out, stream.TimeInfo{
		InputADC:  ti.InputBufferAdcTime,
		Current:   ti.CurrentTime,
		OutputDAC: ti.OutputBufferDacTime,
		Flags:     convertFlags(flags),
	})
}

func convertFlags(f pa.StreamCallbackFlags) stream.Flags {
	var out stream.Flags
	if f&pa.InputUnderflow != 0 {
		out |= stream.InputUnderflow
	}
	if f&pa.InputOverflow != 0 {
		out |= stream.InputOverflow
	}
	if f&pa.OutputUnderflow != 0 {
		out |= stream.OutputUnderflow
	}
	if f&pa.OutputOverflow != 0 {
		out |= stream.OutputOverflow
	}
	if f&pa.PrimingOutput != 0 {
		out |= stream.PrimingOutput
	}
	return out
}

func (b *Backend) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pstr == nil {
		return stream.ErrNotOpen
	}
	if b.active {
		return nil
	}
	if err := b.pstr.Start(); err != nil {
		return fmt.Errorf("portaudio: start: %w", err)
	}
	b.active = true
	return nil
}

// Stop waits for the running callback to return; PortAudio invokes no
// callback after it.
func (b *Backend) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pstr == nil || !b.active {
		return nil
	}
	b.active = false
	if err := b.pstr.Stop(); err != nil {
		return fmt.Errorf("portaudio: stop: %w", err)
	}
	return nil
}

func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pstr == nil {
		return nil
	}
	var errs []error
	if b.active {
		b.active = false
		if err := b.pstr.Abort(); err != nil {
			errs = append(errs, fmt.Errorf("portaudio: abort: %w", err))
		}
	}
	if err := b.pstr.Close(); err != nil {
		errs = append(errs, fmt.Errorf("portaudio: close: %w", err))
	}
	b.pstr = nil
	errs = append(errs, release())

	b.log.Debug("portaudio stream closed")
	return errors.Join(errs...)
}
