package sequence

import (
	"github.com/zurustar/bandforge/pkg/note"
)

// Notes recovers note events in seconds from the channel of a score. Each
// NoteOff (or NoteOn with velocity 0) closes the oldest open note of the
// same pitch; notes left open end at the last event.
func Notes(s *Score, channel int) []note.Event {
	events := Merge(s, channel)
	if len(events) == 0 {
		return nil
	}
	tm := s.TempoMap()

	type open struct {
		index int
		start int64
	}
	var out []note.Event
	var ends []int64
	pending := map[int][]open{}

	for _, ev := range events {
		switch {
		case ev.Kind == NoteOn && ev.Velocity > 0:
			pending[ev.Pitch] = append(pending[ev.Pitch], open{index: len(out), start: ev.Tick})
			out = append(out, note.Event{Pitch: ev.Pitch, Start: tm.Seconds(ev.Tick)})
			ends = append(ends, -1)
		default:
			queue := pending[ev.Pitch]
			if len(queue) == 0 {
				continue
			}
			ends[queue[0].index] = ev.Tick
			pending[ev.Pitch] = queue[1:]
		}
	}

	last := events[len(events)-1].Tick
	for i := range out {
		end := ends[i]
		if end < 0 {
			end = last
		}
		out[i].Duration = tm.Seconds(end) - out[i].Start
	}
	return out
}
