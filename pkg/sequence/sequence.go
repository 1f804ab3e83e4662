// Package sequence turns a normalized note timeline into a tick-delta
// NoteOn/NoteOff stream and reads or writes it as a Standard MIDI File.
package sequence

import (
	"sort"

	"github.com/zurustar/bandforge/pkg/note"
	"github.com/zurustar/bandforge/pkg/tempo"
)

// DefaultVelocity is the velocity given to generated notes.
const DefaultVelocity = 80

// Kind is the type of a tick event.
type Kind int

const (
	NoteOn Kind = iota
	NoteOff
)

func (k Kind) String() string {
	switch k {
	case NoteOn:
		return "NoteOn"
	case NoteOff:
		return "NoteOff"
	default:
		return "Unknown"
	}
}

// TickEvent is one note message, timed relative to the previous event of
// its track.
type TickEvent struct {
	Kind     Kind
	Channel  int
	Pitch    int
	Velocity int
	Delta    int64 // Ticks since the previous event; never negative
}

// Track is an ordered list of tick events.
type Track []TickEvent

// Score is a complete symbolic timeline.
type Score struct {
	TicksPerBeat int
	Tempo        []tempo.Change
	Programs     map[int]int // Channel -> program number
	Tracks       []Track
}

// TempoMap returns the tempo map of the score.
func (s *Score) TempoMap() *tempo.Map {
	return tempo.NewMap(s.TicksPerBeat, s.Tempo)
}

// Event ordering at a shared tick: releases of sounding notes come first,
// then attacks, then releases of notes that have no length.
const (
	rankRelease = iota
	rankAttack
	rankZeroLengthRelease
)

type pending struct {
	tick  int64
	rank  int
	index int
	event TickEvent
}

// Build converts a normalized timeline into a track on channel.
// Every note yields one NoteOn and one NoteOff of the same pitch, and
// deltas are measured against a cursor that never moves backward.
func Build(events []note.Event, ctx tempo.Context, channel, velocity int) Track {
	list := make([]pending, 0, len(events)*2)
	for i, e := range events {
		on := tempo.SecondsToTicks(e.Start, ctx)
		off := on + tempo.SecondsToTicks(e.Duration, ctx)

		offRank := rankRelease
		if off == on {
			offRank = rankZeroLengthRelease
		}
		list = append(list,
			pending{tick: on, rank: rankAttack, index: i, event: TickEvent{
				Kind: NoteOn, Channel: channel, Pitch: e.Pitch, Velocity: velocity,
			}},
			pending{tick: off, rank: offRank, index: i, event: TickEvent{
				Kind: NoteOff, Channel: channel, Pitch: e.Pitch,
			}},
		)
	}

	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.tick != b.tick {
			return a.tick < b.tick
		}
		if a.rank != b.rank {
			return a.rank < b.rank
		}
		return a.index < b.index
	})

	track := make(Track, 0, len(list))
	var cursor int64
	for _, p := range list {
		delta := p.tick - cursor
		if delta < 0 {
			delta = 0
		}
		if p.tick > cursor {
			cursor = p.tick
		}
		ev := p.event
		ev.Delta = delta
		track = append(track, ev)
	}
	return track
}

// TimedEvent is a tick event resolved to an absolute tick.
type TimedEvent struct {
	TickEvent
	Tick int64
}

// Absolute integrates the deltas of a track.
func Absolute(track Track) []TimedEvent {
	out := make([]TimedEvent, len(track))
	var tick int64
	for i, ev := range track {
		if ev.Delta > 0 {
			tick += ev.Delta
		}
		out[i] = TimedEvent{TickEvent: ev, Tick: tick}
	}
	return out
}

// Merge collects the events of channel from every track of the score into
// one list ordered by absolute tick. Events at the same tick keep track
// order, then in-track order.
func Merge(s *Score, channel int) []TimedEvent {
	var merged []TimedEvent
	for _, track := range s.Tracks {
		for _, ev := range Absolute(track) {
			if ev.Channel == channel {
				merged = append(merged, ev)
			}
		}
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Tick < merged[j].Tick })
	return merged
}

// NewScore builds a single-track score for a part. A negative program
// leaves the channel on the engine default.
func NewScore(events []note.Event, ctx tempo.Context, channel, program, velocity int) *Score {
	if ctx.TicksPerBeat <= 0 || ctx.MicrosPerBeat <= 0 {
		ctx = tempo.Default()
	}
	s := &Score{
		TicksPerBeat: ctx.TicksPerBeat,
		Tempo:        []tempo.Change{{Tick: 0, MicrosPerBeat: ctx.MicrosPerBeat}},
		Programs:     map[int]int{},
		Tracks:       []Track{Build(events, ctx, channel, velocity)},
	}
	if program >= 0 {
		s.Programs[channel] = program
	}
	return s
}
