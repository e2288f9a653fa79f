// SPDX-License-Identifier: EPL-2.0

package stream

import (
	"sync/atomic"

	goaudio "github.com/go-audio/audio"
)

// Direction tells whether a Buffer holds captured or requested samples.
type Direction uint8

const (
	Input Direction = iota
	Output
)

func (d Direction) String() string {
	if d == Input {
		return "input"
	}
	return "output"
}

// Buffer is a fixed-size block of interleaved float32 samples in [-1, 1].
// A Buffer belongs to exactly one party at a time: the pool, the bridge,
// the channel, or the consumer holding the Event that carries it.
type Buffer struct {
	samples  []float32
	frames   int
	channels int
	dir      Direction
	pool     *BufferPool
	out      atomic.Bool
}

// Samples returns the interleaved samples. The slice is only valid until
// the Buffer is released.
func (b *Buffer) Samples() []float32 { return b.samples }

func (b *Buffer) Len() int             { return len(b.samples) }
func (b *Buffer) Frames() int          { return b.frames }
func (b *Buffer) Channels() int        { return b.channels }
func (b *Buffer) Direction() Direction { return b.dir }

// Frame returns the samples of frame i, one per channel.
func (b *Buffer) Frame(i int) []float32 {
	off := i * b.channels
	return b.samples[off : off+b.channels : off+b.channels]
}

// PCM exposes the samples as a go-audio buffer without copying them.
func (b *Buffer) PCM(sampleRate int) *goaudio.Float32Buffer {
	return &goaudio.Float32Buffer{
		Format: &goaudio.Format{
			NumChannels: b.channels,
			SampleRate:  sampleRate,
		},
		Data:           b.samples,
		SourceBitDepth: 32,
	}
}

// BufferPool is a fixed set of Buffers allocated up front. Get and Put never
// block and never allocate.
type BufferPool struct {
	free     chan *Buffer
	all      []Buffer
	dir      Direction
	frames   int
	channels int
}

// NewBufferPool allocates count Buffers of frames*channels samples.
func NewBufferPool(dir Direction, count, frames, channels int) *BufferPool {
	p := &BufferPool{
		free:     make(chan *Buffer, count),
		all:      make([]Buffer, count),
		dir:      dir,
		frames:   frames,
		channels: channels,
	}
	backing := make([]float32, count*frames*channels)
	for i := range p.all {
		b := &p.all[i]
		n := frames * channels
		b.samples = backing[i*n : (i+1)*n : (i+1)*n]
		b.frames = frames
		b.channels = channels
		b.dir = dir
		b.pool = p
		p.free <- b
	}
	return p
}

// Get checks out a Buffer, or returns nil when every Buffer is in use.
func (p *BufferPool) Get() *Buffer {
	select {
	case b := <-p.free:
		b.out.Store(true)
		return b
	default:
		return nil
	}
}

// Put returns b to the pool. It reports false, and does nothing, for nil
// Buffers, Buffers of another pool, and Buffers that are already returned.
func (p *BufferPool) Put(b *Buffer) bool {
	if b == nil || b.pool != p || !b.out.CompareAndSwap(true, false) {
		return false
	}
	select {
	case p.free <- b:
		return true
	default:
		// unreachable while every Buffer comes from this pool
		return false
	}
}

// Available is the number of Buffers ready to be checked out.
func (p *BufferPool) Available() int { return len(p.free) }

// Cap is the total number of Buffers owned by the pool.
func (p *BufferPool) Cap() int { return len(p.all) }

func (p *BufferPool) Direction() Direction { return p.dir }
