// SPDX-License-Identifier: EPL-2.0

package portaudio

import (
	"fmt"
	"strings"
	"sync"

	pa "github.com/gordonklaus/portaudio"
)

// PortAudio keeps process wide state between Initialize and Terminate.
// Every user holds a reference for as long as it talks to the library.
var (
	refMu sync.Mutex
	refs  int
)

func acquire() error {
	refMu.Lock()
	defer refMu.Unlock()

	if refs == 0 {
		if err := pa.Initialize(); err != nil {
			return fmt.Errorf("portaudio: initialize: %w", err)
		}
	}
	refs++
	return nil
}

func release() error {
	refMu.Lock()
	defer refMu.Unlock()

	if refs == 0 {
		return nil
	}
	refs--
	if refs == 0 {
		if err := pa.Terminate(); err != nil {
			return fmt.Errorf("portaudio: terminate: %w", err)
		}
	}
	return nil
}

// Device describes an audio device as reported by PortAudio.
type Device struct {
	Index             int
	Name              string
	HostAPI           string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
	DefaultInput      bool
	DefaultOutput     bool
}

// Devices lists the devices of every host API.
func Devices() ([]Device, error) {
	if err := acquire(); err != nil {
		return nil, err
	}
	defer release()

	infos, err := pa.Devices()
	if err != nil {
		return nil, fmt.Errorf("portaudio: list devices: %w", err)
	}
	defIn, _ := pa.DefaultInputDevice()
	defOut, _ := pa.DefaultOutputDevice()

	out := make([]Device, 0, len(infos))
	for _, d := range infos {
		dev := Device{
			Index:             d.Index,
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			MaxOutputChannels: d.MaxOutputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
			DefaultInput:      defIn != nil && d.Index == defIn.Index,
			DefaultOutput:     defOut != nil && d.Index == defOut.Index,
		}
		if d.HostApi != nil {
			dev.HostAPI = d.HostApi.Name
		}
		out = append(out, dev)
	}
	return out, nil
}

// findDevice picks the device called name, preferring an exact
// case-insensitive match over a substring match. Only devices with at least
// one channel in the wanted direction are considered.
func findDevice(devices []*pa.DeviceInfo, name string, input bool) (*pa.DeviceInfo, error) {
	usable := func(d *pa.DeviceInfo) bool {
		if input {
			return d.MaxInputChannels > 0
		}
		return d.MaxOutputChannels > 0
	}

	var partial *pa.DeviceInfo
	want := strings.ToLower(name)
	for _, d := range devices {
		if d == nil || !usable(d) {
			continue
		}
		got := strings.ToLower(d.Name)
		if got == want {
			return d, nil
		}
		if partial == nil && strings.Contains(got, want) {
			partial = d
		}
	}
	if partial != nil {
		return partial, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrDeviceNotFound, name)
}

// lookup resolves a device by name, or the default device when name is
// empty. PortAudio must be initialized.
func lookup(name string, input bool) (*pa.DeviceInfo, error) {
	if name == "" {
		var (
			d   *pa.DeviceInfo
			err error
		)
		if input {
			d, err = pa.DefaultInputDevice()
		} else {
			d, err = pa.DefaultOutputDevice()
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoDevice, err)
		}
		if d == nil {
			return nil, ErrNoDevice
		}
		return d, nil
	}

	devices, err := pa.Devices()
	if err != nil {
		return nil, fmt.Errorf("portaudio: list devices: %w", err)
	}
	return findDevice(devices, name, input)
}
