// Package render turns a symbolic timeline into PCM audio by walking its
// events against a synthesis engine.
package render

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/zurustar/bandforge/pkg/codec"
	"github.com/zurustar/bandforge/pkg/instrument"
	"github.com/zurustar/bandforge/pkg/logger"
	"github.com/zurustar/bandforge/pkg/note"
	"github.com/zurustar/bandforge/pkg/pcm"
	"github.com/zurustar/bandforge/pkg/sequence"
	"github.com/zurustar/bandforge/pkg/synth"
	"github.com/zurustar/bandforge/pkg/tempo"
)

// Defaults for Options.
const (
	DefaultSampleRate = 44100
	DefaultChunkSize  = synth.DefaultBlockSize
	DefaultTail       = 2.0
)

// MaxTail bounds the decay tail in seconds.
const MaxTail = 60.0

// ErrTimelineTooLong is returned for scores whose last event lies past
// note.MaxExtent.
var ErrTimelineTooLong = errors.New("timeline exceeds the maximum render length")

// Options configures a Renderer. Zero fields take their defaults.
type Options struct {
	SampleRate int          // Output sample rate in Hz
	ChunkSize  int          // Frames requested from the engine per call
	Tail       float64      // Decay tail in seconds after the last event
	Headroom   float64      // Peak level of the normalized output
	Velocity   int          // Velocity of generated notes
	Logger     *slog.Logger // Defaults to logger.GetLogger()
}

// DefaultOptions returns the standard render settings.
func DefaultOptions() Options {
	return Options{
		SampleRate: DefaultSampleRate,
		ChunkSize:  DefaultChunkSize,
		Tail:       DefaultTail,
		Headroom:   pcm.DefaultHeadroom,
		Velocity:   sequence.DefaultVelocity,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.SampleRate <= 0 {
		o.SampleRate = d.SampleRate
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = d.ChunkSize
	}
	if o.Tail < 0 || math.IsNaN(o.Tail) {
		o.Tail = d.Tail
	}
	o.Tail = math.Min(o.Tail, MaxTail)
	if o.Headroom <= 0 || o.Headroom > 1 {
		o.Headroom = d.Headroom
	}
	if o.Velocity <= 0 || o.Velocity > 127 {
		o.Velocity = d.Velocity
	}
	if o.Logger == nil {
		o.Logger = logger.GetLogger()
	}
	return o
}

// engineFactory acquires a fresh engine for one render.
type engineFactory func(sampleRate, blockSize int) (synth.Engine, error)

// Renderer renders scores and note lists. A Renderer holds no per-render
// state and may be used from several goroutines; each render acquires its
// own engine.
type Renderer struct {
	opts      Options
	log       *slog.Logger
	newEngine engineFactory

	// onAdvance observes the cursor after each advance.
	onAdvance func(cursor float64, frames int)
}

// New creates a Renderer over bank. A nil bank is allowed: every render
// then takes the additive fallback path.
func New(bank *synth.Bank, opts Options) *Renderer {
	opts = opts.withDefaults()
	return &Renderer{
		opts: opts,
		log:  opts.Logger,
		newEngine: func(sampleRate, blockSize int) (synth.Engine, error) {
			eng, err := bank.NewEngine(sampleRate, blockSize)
			if err != nil {
				return nil, err
			}
			return eng, nil
		},
	}
}

// Options returns the effective options.
func (r *Renderer) Options() Options {
	return r.opts
}

// RenderScore renders one channel of a score and normalizes the result to
// the configured headroom. If no engine can be acquired, the notes of the
// channel are rendered by the additive fallback instead.
func (r *Renderer) RenderScore(score *sequence.Score, channel int) (*pcm.Buffer, error) {
	return r.render(score, channel, func() []note.Event { return sequence.Notes(score, channel) })
}

// RenderNotes renders a normalized note list for part. It returns the
// audio and the score that was rendered.
func (r *Renderer) RenderNotes(notes []note.Event, part instrument.Part) (*pcm.Buffer, *sequence.Score, error) {
	program := part.Program
	if part.IsPercussion() {
		program = 0
	}
	score := sequence.NewScore(notes, tempo.Default(), part.Channel, program, r.opts.Velocity)

	buf, err := r.render(score, part.Channel, func() []note.Event { return notes })
	if err != nil {
		return nil, nil, err
	}
	return buf, score, nil
}

// RenderFile renders notes for part and writes the WAV to wavPath. When
// midiPath is set the intermediate timeline is written there too.
func (r *Renderer) RenderFile(notes []note.Event, part instrument.Part, wavPath, midiPath string) (*pcm.Buffer, error) {
	buf, score, err := r.RenderNotes(notes, part)
	if err != nil {
		return nil, err
	}
	if midiPath != "" {
		if err := sequence.WriteSMFFile(midiPath, score); err != nil {
			return nil, fmt.Errorf("failed to write MIDI file: %w", err)
		}
	}
	if err := codec.WriteWAVFile(wavPath, buf); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", wavPath, err)
	}
	r.log.Info("Rendered track", "instrument", part.Name, "path", wavPath, "seconds", buf.Duration())
	return buf, nil
}

func (r *Renderer) render(score *sequence.Score, channel int, fallbackNotes func() []note.Event) (*pcm.Buffer, error) {
	buf, err := r.renderEngine(score, channel)
	if errors.Is(err, synth.ErrResourceUnavailable) {
		r.log.Warn("Synthesis engine unavailable, using additive fallback", "channel", channel, "error", err)
		mono := synth.RenderAdditive(fallbackNotes(), r.opts.SampleRate, r.opts.Tail, r.opts.Velocity)
		buf, err = pcm.Remix(mono, 2), nil
	}
	if err != nil {
		return nil, err
	}
	pcm.Normalize(buf, r.opts.Headroom)
	return buf, nil
}

// renderState is the mutable state of one render.
type renderState struct {
	cursor float64 // Seconds rendered so far, by event time
	frames int     // Frames actually produced
	out    []float64
	left   []float32
	right  []float32
	active map[int]int // Sounding pitches
}

// renderEngine walks the merged events of channel, rendering the gap before
// each event and then applying it, and finishes with the decay tail.
func (r *Renderer) renderEngine(score *sequence.Score, channel int) (*pcm.Buffer, error) {
	events := sequence.Merge(score, channel)
	tm := score.TempoMap()

	var lastTime float64
	if n := len(events); n > 0 {
		lastTime = tm.Seconds(events[n-1].Tick)
	}
	if !(lastTime <= note.MaxExtent) {
		return nil, fmt.Errorf("%w: last event at %.0fs", ErrTimelineTooLong, lastTime)
	}

	eng, err := r.newEngine(r.opts.SampleRate, r.opts.ChunkSize)
	if err != nil {
		return nil, err
	}
	defer eng.Close()

	bank := 0
	program, ok := score.Programs[channel]
	if channel == instrument.PercussionChannel {
		bank = instrument.PercussionBank
	}
	if !ok || program < 0 {
		program = instrument.DefaultProgram
	}
	eng.SelectProgram(channel, bank, program)

	st := &renderState{
		out:    make([]float64, 0, 2*(int((lastTime+r.opts.Tail)*float64(r.opts.SampleRate))+r.opts.ChunkSize)),
		left:   make([]float32, r.opts.ChunkSize),
		right:  make([]float32, r.opts.ChunkSize),
		active: map[int]int{},
	}

	for _, ev := range events {
		if err := r.advance(eng, st, tm.Seconds(ev.Tick)); err != nil {
			return nil, err
		}
		apply(eng, st, ev)
	}

	eventFrames := st.frames
	end := st.cursor + r.opts.Tail
	if err := r.advance(eng, st, end); err != nil {
		return nil, err
	}
	// Trim the padding of the last tail chunk.
	if keep := max(r.frameAt(end), eventFrames); st.frames > keep {
		st.out = st.out[:2*keep]
		st.frames = keep
	}

	sounding := 0
	for _, n := range st.active {
		sounding += n
	}
	if sounding > 0 {
		r.log.Debug("Notes still sounding at end of timeline", "channel", channel, "count", sounding)
	}

	return &pcm.Buffer{SampleRate: r.opts.SampleRate, Channels: 2, Data: st.out}, nil
}

func (r *Renderer) frameAt(seconds float64) int {
	return int(math.Round(seconds * float64(r.opts.SampleRate)))
}

// advance renders up to event time t. Frames are requested in whole chunks;
// the overshoot of one call is subtracted from the next, so padding never
// accumulates.
func (r *Renderer) advance(eng synth.Engine, st *renderState, t float64) error {
	needed := r.frameAt(t) - st.frames
	for needed > 0 {
		if err := eng.Render(st.left, st.right); err != nil {
			return fmt.Errorf("synthesis failed at %.3fs: %w", st.cursor, err)
		}
		for i := range st.left {
			st.out = append(st.out, float64(st.left[i]), float64(st.right[i]))
		}
		st.frames += len(st.left)
		needed -= len(st.left)
	}
	if t > st.cursor {
		st.cursor = t
	}
	if r.onAdvance != nil {
		r.onAdvance(st.cursor, st.frames)
	}
	return nil
}

// apply sends one event to the engine. A NoteOn with velocity 0 is a NoteOff.
func apply(eng synth.Engine, st *renderState, ev sequence.TimedEvent) {
	if ev.Kind == sequence.NoteOn && ev.Velocity > 0 {
		eng.NoteOn(ev.Channel, ev.Pitch, ev.Velocity)
		st.active[ev.Pitch]++
		return
	}
	eng.NoteOff(ev.Channel, ev.Pitch)
	if st.active[ev.Pitch] > 0 {
		st.active[ev.Pitch]--
	}
}
