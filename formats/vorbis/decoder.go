// SPDX-License-Identifier: EPL-2.0

package vorbis

import (
	"errors"
	"fmt"
	"io"

	"github.com/jfreymuth/oggvorbis"

	"github.com/ik5/audstream/audio"
)

// floatReader is the part of oggvorbis.Reader used by source. Read fills p
// with interleaved samples and returns the number of values written.
type floatReader interface {
	SampleRate() int
	Channels() int
	Read(p []float32) (int, error)
}

type source struct {
	dec floatReader
	eof bool
}

func (s *source) SampleRate() int { return s.dec.SampleRate() }
func (s *source) Channels() int   { return s.dec.Channels() }
func (s *source) Close() error    { return nil }

func (s *source) ReadSamples(dst []float32) (int, error) {
	if s.eof {
		return 0, io.EOF
	}

	ch := s.dec.Channels()
	dst = dst[:len(dst)-len(dst)%ch]
	if len(dst) == 0 {
		return 0, nil
	}

	// the decoder hands out at most one packet per call
	total := 0
	for total < len(dst) {
		n, err := s.dec.Read(dst[total:])
		total += n
		if errors.Is(err, io.EOF) {
			s.eof = true
			return total, io.EOF
		}
		if err != nil {
			return total, fmt.Errorf("vorbis: %w", err)
		}
		if n == 0 {
			break
		}
	}
	return total, nil
}

type Decoder struct{}

func (Decoder) Decode(r io.Reader) (audio.Source, error) {
	dec, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("vorbis: %w", err)
	}
	return &source{dec: dec}, nil
}
