// Package note defines the note event model and the timeline normalizer that
// turns untrusted note lists into a clean, ordered timeline.
package note

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
)

// MIDI pitch range.
const (
	MinPitch = 0
	MaxPitch = 127
)

// MaxExtent is the latest time, in seconds, a normalized note may end.
const MaxExtent = 600.0

// ErrMalformedTimeline is returned when input cannot be read as a list of notes.
var ErrMalformedTimeline = errors.New("malformed note timeline")

// Event is a single note in seconds.
type Event struct {
	Pitch    int     `json:"pitch"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// End returns the time at which the note stops.
func (e Event) End() float64 {
	return e.Start + e.Duration
}

// record is the wire shape of a note. Fields are pointers so that missing
// values can be told apart from zero. "name" is an older key for the pitch.
type record struct {
	Pitch    *float64 `json:"pitch"`
	Name     *float64 `json:"name"`
	Start    *float64 `json:"start"`
	Duration *float64 `json:"duration"`
}

// Parse reads a note list from data. The data may be a bare JSON array or
// free text that contains one; the first array is decoded and any text
// after it is ignored. Records without a pitch, start or duration are
// dropped.
//
// Returns ErrMalformedTimeline when no array can be decoded, or when a
// non-empty array holds no usable record.
func Parse(data []byte) ([]Event, error) {
	i := bytes.IndexByte(data, '[')
	if i < 0 {
		return nil, fmt.Errorf("%w: no note array found", ErrMalformedTimeline)
	}

	var records []record
	if err := json.NewDecoder(bytes.NewReader(data[i:])).Decode(&records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTimeline, err)
	}

	events := make([]Event, 0, len(records))
	for _, r := range records {
		pitch := r.Pitch
		if pitch == nil {
			pitch = r.Name
		}
		if pitch == nil || r.Start == nil || r.Duration == nil {
			continue
		}
		// Bounded before conversion; Normalize does the real clamping.
		p := math.Max(-1e6, math.Min(1e6, *pitch))
		events = append(events, Event{
			Pitch:    int(math.Round(p)),
			Start:    *r.Start,
			Duration: *r.Duration,
		})
	}
	if len(records) > 0 && len(events) == 0 {
		return nil, fmt.Errorf("%w: none of %d records has a pitch, start and duration", ErrMalformedTimeline, len(records))
	}
	return events, nil
}

// Normalize returns a cleaned copy of events: pitches are clamped into the
// MIDI range, negative times clamp to zero, events with non-finite times or
// starting at or after MaxExtent are dropped, durations are cut so no note
// ends past MaxExtent, and the result is stably sorted by start time.
func Normalize(events []Event) []Event {
	out := make([]Event, 0, len(events))
	for _, e := range events {
		if !finite(e.Start) || !finite(e.Duration) || e.Start >= MaxExtent {
			continue
		}
		e.Pitch = clamp(e.Pitch, MinPitch, MaxPitch)
		e.Start = math.Max(e.Start, 0)
		e.Duration = math.Min(math.Max(e.Duration, 0), MaxExtent-e.Start)
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// ParseOrFallback parses and normalizes data. When data is malformed, or
// normalization leaves nothing of a non-empty timeline, it logs a warning
// and returns the fallback timeline instead; the boolean reports whether
// the fallback was used.
func ParseOrFallback(data []byte, log *slog.Logger) ([]Event, bool) {
	events, err := Parse(data)
	if err == nil {
		out := Normalize(events)
		if len(events) == 0 || len(out) > 0 {
			return out, false
		}
		err = fmt.Errorf("%w: every note is out of range", ErrMalformedTimeline)
	}
	if log != nil {
		log.Warn("Using fallback timeline", "error", err)
	}
	return Normalize(FallbackTimeline()), true
}

// FallbackTimeline returns a fixed C-major arpeggio fragment. Every call
// returns a fresh, identical slice.
func FallbackTimeline() []Event {
	return []Event{
		{Pitch: 60, Duration: 1, Start: 0},
		{Pitch: 64, Duration: 1, Start: 1},
		{Pitch: 67, Duration: 1, Start: 2},
		{Pitch: 60, Duration: 3, Start: 5},
		{Pitch: 64, Duration: 1, Start: 10},
		{Pitch: 67, Duration: 1, Start: 12},
		{Pitch: 60, Duration: 1, Start: 13},
		{Pitch: 64, Duration: 2, Start: 16},
		{Pitch: 67, Duration: 1, Start: 19},
	}
}

// Extent returns the latest end time in events.
func Extent(events []Event) float64 {
	var end float64
	for _, e := range events {
		end = math.Max(end, e.End())
	}
	return end
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
