// SPDX-License-Identifier: EPL-2.0

// Package mp3 decodes MPEG-1 Layer III files with
// github.com/hajimehoshi/go-mp3.
//
// The decoder always yields two channels at the sample rate of the file;
// mono files are duplicated by go-mp3. Use audio.NewChannelMapper or
// audio.NewMonoMixer to change the layout.
//
//	f, _ := os.Open("take.mp3")
//	src, err := mp3.Decoder{}.Decode(f)
package mp3
