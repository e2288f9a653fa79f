// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidDstSize  = errors.New("dst size must be multiple of channels")
	ErrInvalidChannels = errors.New("channel count must be positive")
	ErrUnknownFormat   = errors.New("unknown audio format")
)

// FormatError is returned when no decoder is registered for a path.
type FormatError struct {
	Path   string
	Format string
}

func (e *FormatError) Error() string {
	if e.Format == "" {
		return fmt.Sprintf("%s: no file extension", e.Path)
	}
	return fmt.Sprintf("%s: no decoder for %q", e.Path, e.Format)
}

func (e *FormatError) Unwrap() error { return ErrUnknownFormat }
