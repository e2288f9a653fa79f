// SPDX-License-Identifier: EPL-2.0

// Package aiff decodes AIFF files into an audio.Source using
// github.com/go-audio/aiff.
//
// Big-endian integer PCM at 16, 24 and 32 bits is supported with any
// channel count and sample rate.
//
//	f, _ := os.Open("take.aif")
//	src, err := aiff.Decoder{}.Decode(f)
package aiff
