// SPDX-License-Identifier: EPL-2.0

// Package audio holds the pull based PCM pipeline that feeds decoded files
// into a stream: Source, the Decoder Registry, and the Resampler, MonoMixer
// and ChannelMapper processors.
//
// Every decoder and processor is a Source, so they chain, and closing the
// outermost one closes everything below it:
//
//	src, _ := wav.Decoder{}.Decode(f)
//	resampled := audio.NewResampler(src, 48000)
//	stereo, _ := audio.NewChannelMapper(resampled, 2)
//	defer stereo.Close()
//
// Samples are interleaved float32 frames, nominally in [-1, 1].
//
// The Resampler interpolates with a Catmull-Rom spline over a four frame
// window. Downsampling runs a one-pole low-pass first. A source already at
// the target rate is read directly.
//
// ChannelMapper feeds output channel c from source channel c mod n, so a
// mono file plays on both sides of a stereo device; mapping to one channel
// averages with a MonoMixer instead.
//
// ReadSamples may return the last samples together with io.EOF, so consume
// n before looking at the error:
//
//	n, err := src.ReadSamples(buf)
//	use(buf[:n])
//	if errors.Is(err, io.EOF) {
//		return nil
//	}
package audio
