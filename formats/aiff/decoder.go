// SPDX-License-Identifier: EPL-2.0

package aiff

import (
	"fmt"
	"io"

	goaiff "github.com/go-audio/aiff"

	"github.com/ik5/audstream/audio"
	"github.com/ik5/audstream/formats/internal/pcm"
)

type Decoder struct{}

// Decode parses the COMM chunk of r. Samples are read from the SSND chunk
// on demand.
func (Decoder) Decode(r io.Reader) (audio.Source, error) {
	rs, err := pcm.NewReadSeeker(r)
	if err != nil {
		return nil, fmt.Errorf("aiff: %w", err)
	}

	dec := goaiff.NewDecoder(rs)
	if !dec.IsValidFile() {
		return nil, ErrNotAiffFile
	}
	dec.ReadInfo()
	if err := dec.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotAiffFile, err)
	}

	src, err := pcm.NewSource(dec, int(dec.BitDepth))
	if err != nil {
		return nil, fmt.Errorf("%w: %d bits", ErrUnsupportedBitDepth, dec.BitDepth)
	}
	return src, nil
}
