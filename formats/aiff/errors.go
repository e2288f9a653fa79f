// SPDX-License-Identifier: EPL-2.0

package aiff

import "errors"

var (
	// ErrNotAiffFile indicates the input is not a FORM/AIFF container.
	ErrNotAiffFile = errors.New("not an AIFF file")

	// ErrUnsupportedBitDepth is returned for sample sizes other than 16, 24 or 32 bits.
	ErrUnsupportedBitDepth = errors.New("only 16, 24 and 32-bit AIFF supported")
)
