// SPDX-License-Identifier: EPL-2.0

// Package pcm adapts go-audio integer decoders to audio.Source.
package pcm

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
)

var ErrUnsupportedBitDepth = errors.New("unsupported bit depth")

// Reader is the part of the go-audio wav and aiff decoders used here.
type Reader interface {
	Format() *goaudio.Format
	PCMBuffer(buf *goaudio.IntBuffer) (int, error)
}

// Source streams integer PCM from a Reader as float32 samples.
type Source struct {
	dec      Reader
	rate     int
	channels int
	scale    float32
	buf      *goaudio.IntBuffer
	done     bool
}

// NewSource wraps dec, whose samples are bitDepth bits wide.
func NewSource(dec Reader, bitDepth int) (*Source, error) {
	scale, err := Scale(bitDepth)
	if err != nil {
		return nil, err
	}
	f := dec.Format()
	if f == nil || f.NumChannels <= 0 || f.SampleRate <= 0 {
		return nil, fmt.Errorf("pcm: invalid format %+v", f)
	}

	return &Source{
		dec:      dec,
		rate:     f.SampleRate,
		channels: f.NumChannels,
		scale:    scale,
		buf:      &goaudio.IntBuffer{Format: f, SourceBitDepth: bitDepth},
	}, nil
}

// Scale returns the divisor that maps a signed sample of bitDepth bits
// into [-1, 1].
func Scale(bitDepth int) (float32, error) {
	switch bitDepth {
	case 16, 24, 32:
		return float32(int64(1) << (bitDepth - 1)), nil
	}
	return 0, fmt.Errorf("pcm: %w: %d", ErrUnsupportedBitDepth, bitDepth)
}

func (s *Source) SampleRate() int { return s.rate }
func (s *Source) Channels() int   { return s.channels }

// Close marks the source exhausted. The underlying reader belongs to the
// caller.
func (s *Source) Close() error {
	s.done = true
	return nil
}

func (s *Source) ReadSamples(dst []float32) (int, error) {
	if s.done {
		return 0, io.EOF
	}
	want := len(dst) - len(dst)%s.channels
	if want == 0 {
		return 0, nil
	}

	if cap(s.buf.Data) < want {
		s.buf.Data = make([]int, want)
	}
	s.buf.Data = s.buf.Data[:want]

	n, err := s.dec.PCMBuffer(s.buf)
	if errors.Is(err, io.EOF) || (n == 0 && err == nil) {
		s.done = true
		err = io.EOF
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("pcm: %w", err)
	}

	for i, v := range s.buf.Data[:n] {
		dst[i] = float32(v) / s.scale
	}
	return n, err
}

// NewReadSeeker returns r itself when it can seek, and otherwise buffers
// it fully in memory. The go-audio decoders need to seek between chunks.
func NewReadSeeker(r io.Reader) (io.ReadSeeker, error) {
	if rs, ok := r.(io.ReadSeeker); ok {
		return rs, nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("pcm: buffering input: %w", err)
	}
	return bytes.NewReader(data), nil
}
