// SPDX-License-Identifier: EPL-2.0

// Package portaudio is a stream.Backend on top of
// github.com/gordonklaus/portaudio. Each invocation of the PortAudio
// callback becomes one Host.Process call with float32 interleaved buffers.
//
// PortAudio needs Initialize and Terminate around any use; the package
// counts references so several backends and Devices can overlap. Open
// takes a reference and Close drops it, on every path.
//
//	b := portaudio.New(portaudio.WithInputDevice("USB"), portaudio.WithLatency(portaudio.HighLatency))
//	settings, err := b.Resolve(stream.Settings{FramesPerBuffer: 256, InChannels: 1})
//	h, err := stream.Run(ctx, stream.Config{Settings: settings}, b)
//
// Devices are matched by case-insensitive name, exact match first and then
// substring. Building this package needs cgo and the PortAudio headers.
package portaudio
