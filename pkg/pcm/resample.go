package pcm

import (
	"fmt"

	resampler "github.com/tphakala/go-audio-resampler"
)

// Resample converts b to sampleRate. Each channel is resampled on its own
// and the results are re-interleaved, trimmed to the shortest channel.
func Resample(b *Buffer, sampleRate int) (*Buffer, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: target rate %d", ErrInvalidFormat, sampleRate)
	}
	if sampleRate == b.SampleRate {
		return b, nil
	}
	if b.Frames() == 0 {
		return &Buffer{SampleRate: sampleRate, Channels: b.Channels}, nil
	}

	channels := make([][]float64, b.Channels)
	frames := -1
	for ch := range channels {
		out, err := resampler.ResampleMono(b.Channel(ch), float64(b.SampleRate), float64(sampleRate), resampler.QualityHigh)
		if err != nil {
			return nil, fmt.Errorf("failed to resample channel %d from %d Hz to %d Hz: %w", ch, b.SampleRate, sampleRate, err)
		}
		channels[ch] = out
		if frames < 0 || len(out) < frames {
			frames = len(out)
		}
	}

	out := New(sampleRate, b.Channels, frames)
	for i := 0; i < frames; i++ {
		for ch := range channels {
			out.Data[i*b.Channels+ch] = channels[ch][i]
		}
	}
	return out, nil
}
