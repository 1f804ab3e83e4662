package sequence

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/zurustar/bandforge/pkg/tempo"
)

// ErrInvalidSMF is returned when a Standard MIDI File cannot be read.
var ErrInvalidSMF = errors.New("invalid MIDI file format")

// WriteSMF writes the score as a format 1 Standard MIDI File. The first
// track carries the tempo map; each score track follows with its program
// change at tick 0.
func WriteSMF(w io.Writer, s *Score) error {
	tpb := s.TicksPerBeat
	if tpb <= 0 || tpb > math.MaxUint16 {
		tpb = tempo.DefaultTicksPerBeat
	}

	sm := smf.New()
	sm.TimeFormat = smf.MetricTicks(tpb)

	var conductor smf.Track
	var last int64
	for _, c := range tempo.NewMap(tpb, s.Tempo).Changes() {
		conductor.Add(uint32(c.Tick-last), smf.MetaTempo(60_000_000/float64(c.MicrosPerBeat)))
		last = c.Tick
	}
	conductor.Close(0)
	if err := sm.Add(conductor); err != nil {
		return fmt.Errorf("failed to add tempo track: %w", err)
	}

	for i, track := range s.Tracks {
		var tr smf.Track
		for _, ch := range trackChannels(track) {
			if program, ok := s.Programs[ch]; ok {
				tr.Add(0, midi.ProgramChange(uint8(ch), uint8(clampByte(program))))
			}
		}
		for _, ev := range track {
			ch := uint8(clampChannel(ev.Channel))
			key := uint8(clampByte(ev.Pitch))
			delta := uint32(max(ev.Delta, 0))
			switch ev.Kind {
			case NoteOn:
				tr.Add(delta, midi.NoteOn(ch, key, uint8(clampByte(ev.Velocity))))
			case NoteOff:
				tr.Add(delta, midi.NoteOff(ch, key))
			}
		}
		tr.Close(0)
		if err := sm.Add(tr); err != nil {
			return fmt.Errorf("failed to add track %d: %w", i, err)
		}
	}

	if _, err := sm.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write MIDI file: %w", err)
	}
	return nil
}

// WriteSMFFile writes the score to path.
func WriteSMFFile(path string, s *Score) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteSMF(f, s); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadSMF reads a Standard MIDI File into a score. Note messages, program
// changes and tempo changes are kept; everything else is folded into the
// deltas of the following event.
func ReadSMF(r io.Reader) (*Score, error) {
	sm, err := smf.ReadFrom(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSMF, err)
	}

	s := &Score{
		TicksPerBeat: tempo.DefaultTicksPerBeat,
		Programs:     map[int]int{},
	}
	if tf, ok := sm.TimeFormat.(smf.MetricTicks); ok && tf.Resolution() > 0 {
		s.TicksPerBeat = int(tf.Resolution())
	}

	for _, track := range sm.Tracks {
		var out Track
		var tick, pendingDelta int64
		for _, ev := range track {
			tick += int64(ev.Delta)
			pendingDelta += int64(ev.Delta)

			msg := ev.Message
			var ch, key, vel, program uint8
			var bpm float64
			switch {
			case msg.GetNoteOn(&ch, &key, &vel):
				out = append(out, TickEvent{Kind: NoteOn, Channel: int(ch), Pitch: int(key), Velocity: int(vel), Delta: pendingDelta})
				pendingDelta = 0
			case msg.GetNoteOff(&ch, &key, &vel):
				out = append(out, TickEvent{Kind: NoteOff, Channel: int(ch), Pitch: int(key), Delta: pendingDelta})
				pendingDelta = 0
			case msg.GetProgramChange(&ch, &program):
				if _, seen := s.Programs[int(ch)]; !seen {
					s.Programs[int(ch)] = int(program)
				}
			case msg.GetMetaTempo(&bpm):
				if bpm > 0 {
					s.Tempo = append(s.Tempo, tempo.Change{Tick: tick, MicrosPerBeat: int(math.Round(60_000_000 / bpm))})
				}
			}
		}
		if len(out) > 0 {
			s.Tracks = append(s.Tracks, out)
		}
	}

	sort.SliceStable(s.Tempo, func(i, j int) bool { return s.Tempo[i].Tick < s.Tempo[j].Tick })
	return s, nil
}

// ReadSMFFile reads a Standard MIDI File from path.
func ReadSMFFile(path string) (*Score, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadSMF(f)
}

func trackChannels(track Track) []int {
	seen := map[int]bool{}
	var channels []int
	for _, ev := range track {
		if !seen[ev.Channel] {
			seen[ev.Channel] = true
			channels = append(channels, ev.Channel)
		}
	}
	return channels
}

func clampByte(v int) int {
	return min(max(v, 0), 127)
}

func clampChannel(v int) int {
	return min(max(v, 0), 15)
}
