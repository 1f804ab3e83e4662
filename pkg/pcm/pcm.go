// Package pcm provides the in-memory audio buffer shared by the renderer and
// the mixer, plus the sample-level operations between them.
package pcm

import (
	"errors"
	"fmt"
	"math"
)

// DefaultHeadroom is the peak level buffers are normalized to before export.
const DefaultHeadroom = 0.8

// ErrInvalidFormat is returned for a zero sample rate or channel count.
var ErrInvalidFormat = errors.New("invalid audio format")

// Buffer holds interleaved samples in [-1, 1].
type Buffer struct {
	SampleRate int
	Channels   int
	Data       []float64
}

// New allocates a silent buffer of the given number of frames.
func New(sampleRate, channels, frames int) *Buffer {
	return &Buffer{
		SampleRate: sampleRate,
		Channels:   channels,
		Data:       make([]float64, frames*channels),
	}
}

// Validate reports whether the format fields are usable.
func (b *Buffer) Validate() error {
	if b.SampleRate <= 0 || b.Channels <= 0 {
		return fmt.Errorf("%w: %d Hz, %d channels", ErrInvalidFormat, b.SampleRate, b.Channels)
	}
	return nil
}

// Frames returns the number of sample frames.
func (b *Buffer) Frames() int {
	if b.Channels <= 0 {
		return 0
	}
	return len(b.Data) / b.Channels
}

// Duration returns the length in seconds.
func (b *Buffer) Duration() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(b.Frames()) / float64(b.SampleRate)
}

// Clone returns a deep copy.
func (b *Buffer) Clone() *Buffer {
	c := *b
	c.Data = make([]float64, len(b.Data))
	copy(c.Data, b.Data)
	return &c
}

// Peak returns the maximum absolute sample value.
func (b *Buffer) Peak() float64 {
	var peak float64
	for _, s := range b.Data {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	return peak
}

// Scale multiplies every sample by gain.
func (b *Buffer) Scale(gain float64) {
	for i := range b.Data {
		b.Data[i] *= gain
	}
}

// Normalize scales b so that its peak equals headroom. Silent buffers are
// left untouched.
func Normalize(b *Buffer, headroom float64) {
	if headroom <= 0 {
		headroom = DefaultHeadroom
	}
	peak := b.Peak()
	if peak == 0 {
		return
	}
	b.Scale(headroom / peak)
}

// Int16 quantizes the buffer to 16-bit integers, truncating toward zero so
// the quantized peak never exceeds the float peak.
func (b *Buffer) Int16() []int {
	out := make([]int, len(b.Data))
	for i, s := range b.Data {
		v := int(s * math.MaxInt16)
		out[i] = min(max(v, math.MinInt16), math.MaxInt16)
	}
	return out
}

// FromInts converts integer PCM of the given bit depth. 8-bit data is
// unsigned; wider depths are signed.
func FromInts(data []int, bitDepth, sampleRate, channels int) *Buffer {
	if bitDepth <= 0 {
		bitDepth = 16
	}
	full := float64(int64(1) << (bitDepth - 1))
	b := &Buffer{SampleRate: sampleRate, Channels: channels, Data: make([]float64, len(data))}
	for i, v := range data {
		if bitDepth == 8 {
			v -= 128
		}
		b.Data[i] = float64(v) / full
	}
	return b
}

// FromStereoFloat32 interleaves separate left and right channels.
func FromStereoFloat32(sampleRate int, left, right []float32) *Buffer {
	n := min(len(left), len(right))
	b := New(sampleRate, 2, n)
	for i := 0; i < n; i++ {
		b.Data[2*i] = float64(left[i])
		b.Data[2*i+1] = float64(right[i])
	}
	return b
}

// Channel returns a copy of one channel.
func (b *Buffer) Channel(ch int) []float64 {
	frames := b.Frames()
	out := make([]float64, frames)
	for i := 0; i < frames; i++ {
		out[i] = b.Data[i*b.Channels+ch]
	}
	return out
}

// Remix converts the buffer to the given channel count. A mono target
// averages all channels; a wider target repeats the source channels.
func Remix(b *Buffer, channels int) *Buffer {
	if channels <= 0 || channels == b.Channels {
		return b
	}
	frames := b.Frames()
	out := New(b.SampleRate, channels, frames)
	for i := 0; i < frames; i++ {
		src := b.Data[i*b.Channels : (i+1)*b.Channels]
		if channels == 1 {
			var sum float64
			for _, s := range src {
				sum += s
			}
			out.Data[i] = sum / float64(b.Channels)
			continue
		}
		for ch := 0; ch < channels; ch++ {
			if b.Channels == 1 {
				out.Data[i*channels+ch] = src[0]
			} else {
				out.Data[i*channels+ch] = src[ch%b.Channels]
			}
		}
	}
	return out
}

// MixInto sums src into dst sample by sample, growing dst when src is
// longer. Both buffers must share the same format.
func MixInto(dst, src *Buffer) {
	if len(src.Data) > len(dst.Data) {
		grown := make([]float64, len(src.Data))
		copy(grown, dst.Data)
		dst.Data = grown
	}
	for i, s := range src.Data {
		dst.Data[i] += s
	}
}
