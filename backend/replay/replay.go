// SPDX-License-Identifier: EPL-2.0

package replay

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ik5/audstream/audio"
	"github.com/ik5/audstream/stream"
)

var ErrNoInput = errors.New("replay: stream has no input channels")

type Option func(*Backend)

// WithPace sets whether callbacks run at the real buffer cadence. Unpaced
// replay runs callbacks back to back, which fills a slow consumer's
// channel and drops events.
func WithPace(pace bool) Option {
	return func(b *Backend) { b.pace = pace }
}

// WithOutputSink receives the output buffer after every callback of a
// stream with output channels. It runs on the replay goroutine and must
// not keep out.
func WithOutputSink(sink func(out []float32)) Option {
	return func(b *Backend) { b.sink = sink }
}

// WithMaxCallbacks ends the replay after n callbacks. Zero means no limit.
func WithMaxCallbacks(n int) Option {
	return func(b *Backend) { b.max = n }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(b *Backend) {
		if l != nil {
			b.log = l
		}
	}
}

// Backend plays an audio.Source into a stream as if it were captured by a
// device. The source is resampled and channel mapped to the stream
// settings on Open. It owns the source and closes it on Close.
type Backend struct {
	src  audio.Source
	pace bool
	sink func([]float32)
	max  int
	log  logrus.FieldLogger

	mu       sync.Mutex
	settings stream.Settings
	host     stream.Host
	input    audio.Source
	in, out  []float32
	opened   bool
	running  bool
	closed   bool
	stop     chan struct{}
	done     chan struct{}
}

func New(src audio.Source, opts ...Option) *Backend {
	b := &Backend{
		src:  src,
		pace: true,
		log:  logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Backend) Open(s stream.Settings, host stream.Host) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.opened {
		return stream.ErrAlreadyOpen
	}
	if s.InChannels == 0 {
		return ErrNoInput
	}

	rate := int(math.Round(s.SampleRate))
	input, err := audio.NewChannelMapper(audio.NewResampler(b.src, rate), int(s.InChannels))
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}

	b.settings = s
	b.host = host
	b.input = input
	b.in = make([]float32, s.BufferLen(stream.Input))
	b.out = make([]float32, s.BufferLen(stream.Output))
	b.opened = true

	b.log.WithFields(logrus.Fields{
		"source_rate":     b.src.SampleRate(),
		"source_channels": b.src.Channels(),
		"sample_rate":     rate,
		"in_channels":     s.InChannels,
		"paced":           b.pace,
	}).Debug("replay opened")
	return nil
}

func (b *Backend) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.opened || b.closed {
		return stream.ErrNotOpen
	}
	if b.running {
		return nil
	}
	b.running = true
	b.stop = make(chan struct{})
	b.done = make(chan struct{})
	go b.loop(b.stop, b.done)
	return nil
}

// Stop ends the replay goroutine and waits for it, so no callback runs
// after Stop returns.
func (b *Backend) Stop() error {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return nil
	}
	b.running = false
	close(b.stop)
	done := b.done
	b.mu.Unlock()

	<-done
	return nil
}

// Close releases the source. It stops the replay first if needed.
func (b *Backend) Close() error {
	if err := b.Stop(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	src := b.src
	if b.input != nil {
		src = b.input
	}
	if err := src.Close(); err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	return nil
}

func (b *Backend) loop(stop, done chan struct{}) {
	defer close(done)

	period := b.settings.BufferDuration()
	var tick <-chan time.Time
	if b.pace {
		t := time.NewTicker(period)
		defer t.Stop()
		tick = t.C
	}

	for n := 0; ; n++ {
		if b.max > 0 && n >= b.max {
			b.host.Finish()
			return
		}

		if tick != nil {
			select {
			case <-stop:
				return
			case <-tick:
			}
		} else {
			select {
			case <-stop:
				return
			default:
			}
		}

		read, err := b.fill()
		eof := errors.Is(err, io.EOF)
		if err != nil && !eof {
			b.log.WithError(err).Warn("replay read failed")
			b.host.Fail(&stream.BackendError{Op: "replay", Err: err})
			return
		}
		if read == 0 && eof {
			b.host.Finish()
			return
		}

		at := time.Duration(n) * period
		res := b.host.Process(b.in, b.out, stream.TimeInfo{
			InputADC:  at,
			Current:   at,
			OutputDAC: at + period,
		})
		if b.sink != nil && len(b.out) > 0 {
			b.sink(b.out)
		}

		if eof {
			b.host.Finish()
			return
		}
		if res != stream.Continue {
			return
		}
	}
}

// fill reads one buffer of input, padding a short final read with
// silence. It returns the number of samples read from the source.
func (b *Backend) fill() (int, error) {
	total := 0
	for total < len(b.in) {
		n, err := b.input.ReadSamples(b.in[total:])
		total += n
		if err != nil {
			clear(b.in[total:])
			return total, err
		}
		if n == 0 {
			break
		}
	}
	clear(b.in[total:])
	return total, nil
}
