// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"errors"
	"fmt"
	"io"
)

// Resampler converts src to another sample rate using Catmull-Rom
// interpolation over a four frame window. Channel count is preserved.
// When downsampling, a one-pole low-pass filter is applied to incoming
// frames to reduce aliasing.
type Resampler struct {
	src      Source
	dstRate  int
	step     float64 // source frames advanced per output frame
	channels int

	// window[1] and window[2] bracket the current position,
	// window[0] and window[3] are the outer control points.
	window [4][]float32
	valid  [4]bool
	primed bool
	done   bool

	pos   float64
	frame []float32
	eof   bool

	lowpass bool
	alpha   float32
	state   []float32
}

// NewResampler wraps src so that it produces samples at dstRate.
// A dstRate equal to the source rate passes samples through unchanged.
func NewResampler(src Source, dstRate int) *Resampler {
	ch := src.Channels()
	step := float64(src.SampleRate()) / float64(dstRate)

	r := &Resampler{
		src:      src,
		dstRate:  dstRate,
		step:     step,
		channels: ch,
		frame:    make([]float32, ch),
		lowpass:  step > 1,
		alpha:    0.5,
		state:    make([]float32, ch),
	}
	for i := range r.window {
		r.window[i] = make([]float32, ch)
	}

	return r
}

func (r *Resampler) SampleRate() int { return r.dstRate }
func (r *Resampler) Channels() int   { return r.channels }

// Passthrough reports whether the source already runs at the target rate.
func (r *Resampler) Passthrough() bool { return r.src.SampleRate() == r.dstRate }

func (r *Resampler) Close() error {
	if err := r.src.Close(); err != nil {
		return fmt.Errorf("resampler: %w", err)
	}
	return nil
}

// readFrame pulls one frame from src into r.frame. ok is false when the
// source had nothing left.
func (r *Resampler) readFrame() (ok bool, err error) {
	if r.eof {
		return false, io.EOF
	}

	n, err := r.src.ReadSamples(r.frame)
	if errors.Is(err, io.EOF) {
		r.eof = true
		err = nil
	}
	if err != nil {
		return false, fmt.Errorf("resampler: %w", err)
	}
	if n < r.channels {
		// a short final frame is discarded
		return false, nil
	}

	if r.lowpass {
		for c, v := range r.frame {
			v = r.alpha*v + (1-r.alpha)*r.state[c]
			r.state[c] = v
			r.frame[c] = v
		}
	}

	return true, nil
}

// prime fills the window with the first frames of the source. Missing
// trailing frames repeat the last one that was read.
func (r *Resampler) prime() error {
	r.primed = true

	for i := range r.window {
		if i == 0 && r.lowpass {
			// start the filter at the first sample to avoid a fade in
			n, err := r.src.ReadSamples(r.frame)
			if errors.Is(err, io.EOF) {
				r.eof = true
			} else if err != nil {
				return fmt.Errorf("resampler: %w", err)
			}
			if n < r.channels {
				return io.EOF
			}
			copy(r.state, r.frame)
			copy(r.window[0], r.frame)
			r.valid[0] = true
			continue
		}

		ok, err := r.readFrame()
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		if !ok {
			if i == 0 {
				return io.EOF
			}
			for j := i; j < len(r.window); j++ {
				copy(r.window[j], r.window[i-1])
				r.valid[j] = true
			}
			return nil
		}
		copy(r.window[i], r.frame)
		r.valid[i] = true
	}

	return nil
}

// advance shifts the window left by one frame and reads a new frame
// into the last slot.
func (r *Resampler) advance() error {
	r.window[0], r.window[1], r.window[2], r.window[3] = r.window[1], r.window[2], r.window[3], r.window[0]
	r.valid[0], r.valid[1], r.valid[2] = r.valid[1], r.valid[2], r.valid[3]

	ok, err := r.readFrame()
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	if ok {
		copy(r.window[3], r.frame)
	}
	r.valid[3] = ok

	if !r.valid[2] {
		return io.EOF
	}
	return nil
}

// ReadSamples produces interleaved samples at the target rate.
// dst length must be a multiple of the channel count.
func (r *Resampler) ReadSamples(dst []float32) (int, error) {
	if len(dst)%r.channels != 0 {
		return 0, ErrInvalidDstSize
	}
	if r.Passthrough() {
		return r.src.ReadSamples(dst)
	}

	if r.done {
		return 0, io.EOF
	}
	if !r.primed {
		if err := r.prime(); err != nil {
			r.done = true
			return 0, err
		}
	}

	frames := len(dst) / r.channels
	written := 0

	for written < frames {
		for r.pos >= 1 {
			r.pos--
			if err := r.advance(); err != nil {
				r.done = errors.Is(err, io.EOF)
				return written * r.channels, err
			}
		}

		x := float32(r.pos)
		y0, y1, y2, y3 := r.window[0], r.window[1], r.window[2], r.window[3]
		if !r.valid[0] {
			y0 = y1
		}
		if !r.valid[3] {
			y3 = y2
		}

		out := dst[written*r.channels : (written+1)*r.channels]
		for c := range out {
			out[c] = catmullRom(y0[c], y1[c], y2[c], y3[c], x)
		}

		written++
		r.pos += r.step
	}

	return written * r.channels, nil
}
