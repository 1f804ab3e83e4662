package note

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestNormalizeProperties checks clamping and ordering for arbitrary inputs.
func TestNormalizeProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("pitches land in the MIDI range", prop.ForAll(
		func(pitches []int) bool {
			events := make([]Event, len(pitches))
			for i, p := range pitches {
				events[i] = Event{Pitch: p, Start: float64(i), Duration: 1}
			}
			for _, e := range Normalize(events) {
				if e.Pitch < MinPitch || e.Pitch > MaxPitch {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(-1000, 1000)),
	))

	properties.Property("duplicate starts keep their input order", prop.ForAll(
		func(starts []int) bool {
			// Pitch carries the input index so order can be recovered.
			events := make([]Event, len(starts))
			for i, s := range starts {
				events[i] = Event{Pitch: i % 128, Start: float64(s), Duration: 0.5}
			}
			out := Normalize(events)
			if len(out) != len(events) {
				return false
			}
			for i := 1; i < len(out); i++ {
				if out[i-1].Start > out[i].Start {
					return false
				}
				if out[i-1].Start == out[i].Start && out[i-1].Pitch >= out[i].Pitch {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(100, gen.IntRange(0, 5)),
	))

	properties.Property("start and duration are never negative", prop.ForAll(
		func(start, duration float64) bool {
			out := Normalize([]Event{{Pitch: 60, Start: start, Duration: duration}})
			return len(out) == 1 && out[0].Start >= 0 && out[0].Duration >= 0
		},
		gen.Float64Range(-100, 100),
		gen.Float64Range(-100, 100),
	))

	properties.Property("no note ends past MaxExtent", prop.ForAll(
		func(start, duration float64) bool {
			for _, e := range Normalize([]Event{{Pitch: 60, Start: start, Duration: duration}}) {
				if e.End() > MaxExtent+1e-9 {
					return false
				}
			}
			return true
		},
		gen.Float64Range(-1e12, 1e12),
		gen.Float64Range(-1e12, 1e12),
	))

	properties.TestingRun(t)
}
