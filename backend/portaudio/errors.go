// SPDX-License-Identifier: EPL-2.0

package portaudio

import "errors"

var (
	ErrDeviceNotFound = errors.New("portaudio: device not found")
	ErrNoDevice       = errors.New("portaudio: no default device")
	ErrBadLatency     = errors.New("portaudio: latency must be low or high")
)
