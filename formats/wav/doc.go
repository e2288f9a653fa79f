// SPDX-License-Identifier: EPL-2.0

// Package wav decodes RIFF/WAVE files into an audio.Source.
//
// Integer PCM at 16, 24 and 32 bits is supported, with any channel count
// and sample rate. Chunk parsing is done by github.com/go-audio/wav, so
// files carrying LIST, fact or other extra chunks decode normally.
//
//	f, _ := os.Open("take.wav")
//	src, err := wav.Decoder{}.Decode(f)
//	if err != nil {
//	    // ErrNotWavFile, ErrUnsupportedWavLayout or ErrUnsupportedBitDepth
//	}
//	buf := make([]float32, 4096)
//	n, err := src.ReadSamples(buf)
//
// Samples are returned as float32 in [-1.0, 1.0].
package wav
