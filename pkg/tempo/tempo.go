// Package tempo converts between MIDI ticks and wall-clock seconds.
package tempo

import (
	"math"
	"sort"
)

const (
	// DefaultMicrosPerBeat is 120 BPM.
	DefaultMicrosPerBeat = 500000
	// DefaultTicksPerBeat is the resolution used when a source does not declare one.
	DefaultTicksPerBeat = 480
)

// Context is the tempo in effect for a conversion.
type Context struct {
	MicrosPerBeat int // Microseconds per quarter note
	TicksPerBeat  int // Ticks per quarter note
}

// Default returns 120 BPM at 480 ticks per beat.
func Default() Context {
	return Context{MicrosPerBeat: DefaultMicrosPerBeat, TicksPerBeat: DefaultTicksPerBeat}
}

// valid replaces non-positive fields with the defaults.
func (c Context) valid() Context {
	if c.MicrosPerBeat <= 0 {
		c.MicrosPerBeat = DefaultMicrosPerBeat
	}
	if c.TicksPerBeat <= 0 {
		c.TicksPerBeat = DefaultTicksPerBeat
	}
	return c
}

// BPM returns the tempo in beats per minute.
func (c Context) BPM() float64 {
	c = c.valid()
	return 60_000_000 / float64(c.MicrosPerBeat)
}

// SecondsPerTick returns the duration of one tick.
func (c Context) SecondsPerTick() float64 {
	c = c.valid()
	return float64(c.MicrosPerBeat) / 1_000_000 / float64(c.TicksPerBeat)
}

// TicksToSeconds converts a tick count to seconds.
func TicksToSeconds(ticks int64, c Context) float64 {
	return float64(ticks) * c.SecondsPerTick()
}

// SecondsToTicks converts seconds to ticks, truncating toward zero.
// Negative input yields zero.
func SecondsToTicks(seconds float64, c Context) int64 {
	if seconds <= 0 || math.IsNaN(seconds) {
		return 0
	}
	// The epsilon absorbs float error so that whole ticks survive a round trip.
	return int64(math.Floor(seconds/c.SecondsPerTick() + 1e-9))
}

// Change is a tempo change at an absolute tick.
type Change struct {
	Tick          int64
	MicrosPerBeat int
}

// Map converts ticks to seconds across tempo changes.
// Each segment is re-anchored at its change point: elapsed seconds are
// accumulated up to the change and the new tempo applies from there.
type Map struct {
	ticksPerBeat   int
	changes        []Change
	secondsAtStart []float64 // Pre-calculated seconds at each change
}

// NewMap creates a Map. Changes are sorted by tick; invalid tempos are
// dropped, a later change at the same tick replaces an earlier one, and a
// default tempo is inserted at tick 0 when the first change starts later.
func NewMap(ticksPerBeat int, changes []Change) *Map {
	if ticksPerBeat <= 0 {
		ticksPerBeat = DefaultTicksPerBeat
	}

	sorted := make([]Change, 0, len(changes)+1)
	for _, c := range changes {
		if c.MicrosPerBeat <= 0 || c.Tick < 0 {
			continue
		}
		sorted = append(sorted, c)
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Tick < sorted[j].Tick })

	merged := make([]Change, 0, len(sorted)+1)
	for _, c := range sorted {
		if n := len(merged); n > 0 && merged[n-1].Tick == c.Tick {
			merged[n-1] = c
			continue
		}
		merged = append(merged, c)
	}
	if len(merged) == 0 || merged[0].Tick > 0 {
		merged = append([]Change{{Tick: 0, MicrosPerBeat: DefaultMicrosPerBeat}}, merged...)
	}

	m := &Map{ticksPerBeat: ticksPerBeat, changes: merged}
	m.precalculate()
	return m
}

// Single returns a Map holding one tempo for the whole timeline.
func Single(c Context) *Map {
	c = c.valid()
	return NewMap(c.TicksPerBeat, []Change{{Tick: 0, MicrosPerBeat: c.MicrosPerBeat}})
}

func (m *Map) precalculate() {
	m.secondsAtStart = make([]float64, len(m.changes))
	for i := 1; i < len(m.changes); i++ {
		prev := m.changes[i-1]
		ticks := m.changes[i].Tick - prev.Tick
		m.secondsAtStart[i] = m.secondsAtStart[i-1] + TicksToSeconds(ticks, m.contextOf(prev))
	}
}

func (m *Map) contextOf(c Change) Context {
	return Context{MicrosPerBeat: c.MicrosPerBeat, TicksPerBeat: m.ticksPerBeat}
}

// segmentForTick returns the index of the change in effect at tick.
func (m *Map) segmentForTick(tick int64) int {
	i := sort.Search(len(m.changes), func(i int) bool { return m.changes[i].Tick > tick })
	if i == 0 {
		return 0
	}
	return i - 1
}

// Seconds converts an absolute tick to seconds.
func (m *Map) Seconds(tick int64) float64 {
	if tick <= 0 {
		return 0
	}
	i := m.segmentForTick(tick)
	c := m.changes[i]
	return m.secondsAtStart[i] + TicksToSeconds(tick-c.Tick, m.contextOf(c))
}

// Ticks converts seconds to an absolute tick, truncating.
func (m *Map) Ticks(seconds float64) int64 {
	if seconds <= 0 || math.IsNaN(seconds) {
		return 0
	}
	i := sort.Search(len(m.secondsAtStart), func(i int) bool { return m.secondsAtStart[i] > seconds })
	if i > 0 {
		i--
	}
	c := m.changes[i]
	return c.Tick + SecondsToTicks(seconds-m.secondsAtStart[i], m.contextOf(c))
}

// At returns the tempo context in effect at tick.
func (m *Map) At(tick int64) Context {
	return m.contextOf(m.changes[m.segmentForTick(tick)])
}

// TicksPerBeat returns the resolution of the map.
func (m *Map) TicksPerBeat() int {
	return m.ticksPerBeat
}

// Changes returns a copy of the normalized tempo changes.
func (m *Map) Changes() []Change {
	out := make([]Change, len(m.changes))
	copy(out, m.changes)
	return out
}
