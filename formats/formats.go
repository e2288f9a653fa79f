// SPDX-License-Identifier: EPL-2.0

// Package formats wires the bundled decoders into an audio.Registry and
// opens audio files by extension.
package formats

import (
	"errors"
	"fmt"
	"os"

	"github.com/ik5/audstream/audio"
	"github.com/ik5/audstream/formats/aiff"
	"github.com/ik5/audstream/formats/mp3"
	"github.com/ik5/audstream/formats/vorbis"
	"github.com/ik5/audstream/formats/wav"
)

// NewRegistry returns a registry holding every bundled decoder under its
// usual file extensions.
func NewRegistry() *audio.Registry {
	r := audio.NewRegistry()
	for _, ext := range []string{"wav", "wave"} {
		r.Register(ext, wav.Decoder{})
	}
	r.Register("mp3", mp3.Decoder{})
	for _, ext := range []string{"ogg", "oga"} {
		r.Register(ext, vorbis.Decoder{})
	}
	for _, ext := range []string{"aif", "aiff", "aifc"} {
		r.Register(ext, aiff.Decoder{})
	}
	return r
}

// fileSource closes the file backing a decoded source.
type fileSource struct {
	audio.Source
	f *os.File
}

func (s *fileSource) Close() error {
	return errors.Join(s.Source.Close(), s.f.Close())
}

// Open decodes the file at path with the decoder registered for its
// extension. Closing the returned Source closes the file.
func Open(reg *audio.Registry, path string) (audio.Source, error) {
	dec, err := reg.ForPath(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("formats: %w", err)
	}

	src, err := dec.Decode(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("formats: %s: %w", path, err)
	}
	return &fileSource{Source: src, f: f}, nil
}
