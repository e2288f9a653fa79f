// SPDX-License-Identifier: EPL-2.0

// Package vorbis decodes Ogg Vorbis files with github.com/jfreymuth/oggvorbis.
//
// Vorbis decodes straight to float32, so samples are passed through
// without conversion at the channel count and rate of the stream.
//
//	f, _ := os.Open("take.ogg")
//	src, err := vorbis.Decoder{}.Decode(f)
package vorbis
