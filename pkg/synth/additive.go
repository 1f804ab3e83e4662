package synth

import (
	"math"

	"github.com/zurustar/bandforge/pkg/note"
	"github.com/zurustar/bandforge/pkg/pcm"
)

// partialWeights are the amplitudes of the fundamental and the 2nd to 4th
// harmonics.
var partialWeights = [...]float64{1, 0.5, 0.25, 0.125}

// Envelope breakpoints as fractions of the note duration.
const (
	attackEnd     = 0.1
	decayEnd      = 0.2
	releaseStart  = 0.8
	sustainLevel  = 0.7
	additiveGain  = 0.3
	maxMIDIVolume = 127
)

// PitchFrequency returns the equal-tempered frequency of a MIDI pitch.
func PitchFrequency(pitch int) float64 {
	return 440 * math.Pow(2, float64(pitch-69)/12)
}

// envelope returns the ADSR gain at position x in [0, 1] of a note.
func envelope(x float64) float64 {
	switch {
	case x < attackEnd:
		return x / attackEnd
	case x < decayEnd:
		return 1 - (1-sustainLevel)*(x-attackEnd)/(decayEnd-attackEnd)
	case x < releaseStart:
		return sustainLevel
	case x < 1:
		return sustainLevel * (1 - (x-releaseStart)/(1-releaseStart))
	default:
		return 0
	}
}

// RenderAdditive renders notes with a fixed additive voice into a mono
// buffer that lasts until the latest note end plus tail seconds. The output
// depends only on its inputs.
func RenderAdditive(notes []note.Event, sampleRate int, tail float64, velocity int) *pcm.Buffer {
	if !(tail >= 0) {
		tail = 0
	}
	tail = math.Min(tail, note.MaxExtent)
	end := note.Extent(notes)
	if !(end <= note.MaxExtent) {
		end = note.MaxExtent
	}
	total := int(math.Round((end + tail) * float64(sampleRate)))
	out := pcm.New(sampleRate, 1, total)

	var weightSum float64
	for _, w := range partialWeights {
		weightSum += w
	}
	amp := additiveGain * float64(velocity) / maxMIDIVolume / weightSum
	nyquist := float64(sampleRate) / 2

	for _, n := range notes {
		// Notes past the bounded extent are not rendered.
		if !(n.Start >= 0 && n.Start < end) || !(n.Duration > 0) {
			continue
		}
		start := int(math.Round(n.Start * float64(sampleRate)))
		length := int(math.Round(math.Min(n.Duration, end-n.Start) * float64(sampleRate)))
		if length <= 0 || start >= total {
			continue
		}
		freq := PitchFrequency(n.Pitch)
		for i := 0; i < length && start+i < total; i++ {
			t := float64(i) / float64(sampleRate)
			var v float64
			for k, w := range partialWeights {
				f := freq * float64(k+1)
				if f >= nyquist {
					break
				}
				v += w * math.Sin(2*math.Pi*f*t)
			}
			out.Data[start+i] += amp * envelope(float64(i)/float64(length)) * v
		}
	}
	return out
}
