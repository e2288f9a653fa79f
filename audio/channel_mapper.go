// SPDX-License-Identifier: EPL-2.0

package audio

import "fmt"

// ChannelMapper adapts the channel layout of a source to a fixed count.
// Output channel c is taken from source channel c modulo the source
// channel count, so mono is duplicated into every output channel and
// extra source channels are dropped.
type ChannelMapper struct {
	src      Source
	channels int
	tmp      []float32
}

// NewChannelMapper returns a Source producing channels channels from src.
// It returns src itself when the counts already match and a MonoMixer
// when channels is 1.
func NewChannelMapper(src Source, channels int) (Source, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("channel mapper: %w: %d", ErrInvalidChannels, channels)
	}
	switch {
	case src.Channels() == channels:
		return src, nil
	case channels == 1:
		return NewMonoMixer(src), nil
	}
	return &ChannelMapper{src: src, channels: channels}, nil
}

func (m *ChannelMapper) SampleRate() int { return m.src.SampleRate() }
func (m *ChannelMapper) Channels() int   { return m.channels }

func (m *ChannelMapper) Close() error {
	if err := m.src.Close(); err != nil {
		return fmt.Errorf("channel mapper: %w", err)
	}
	return nil
}

func (m *ChannelMapper) ReadSamples(dst []float32) (int, error) {
	if len(dst)%m.channels != 0 {
		return 0, ErrInvalidDstSize
	}

	srcCh := m.src.Channels()
	frames := len(dst) / m.channels
	m.tmp = grow(m.tmp, frames*srcCh)

	n, err := m.src.ReadSamples(m.tmp)
	got := n / srcCh
	for f := range got {
		in := m.tmp[f*srcCh : (f+1)*srcCh]
		out := dst[f*m.channels : (f+1)*m.channels]
		for c := range out {
			out[c] = in[c%srcCh]
		}
	}

	return got * m.channels, err
}
