package tempo

import (
	"math"
	"testing"
)

func TestTicksToSeconds(t *testing.T) {
	tests := []struct {
		name  string
		ticks int64
		ctx   Context
		want  float64
	}{
		{"zero", 0, Default(), 0},
		{"one beat at 120 BPM", 480, Default(), 0.5},
		{"two seconds at 120 BPM", 1920, Default(), 2.0},
		{"one beat at 60 BPM", 96, Context{MicrosPerBeat: 1000000, TicksPerBeat: 96}, 1.0},
		{"invalid context falls back to defaults", 480, Context{}, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TicksToSeconds(tt.ticks, tt.ctx)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("TicksToSeconds(%d) = %v, want %v", tt.ticks, got, tt.want)
			}
		})
	}
}

func TestSecondsToTicks(t *testing.T) {
	tests := []struct {
		name    string
		seconds float64
		want    int64
	}{
		{"zero", 0, 0},
		{"negative clamps to zero", -1.5, 0},
		{"NaN clamps to zero", math.NaN(), 0},
		{"one second", 1.0, 960},
		{"truncates partial tick", 0.0005, 0},
		{"three seconds", 3.0, 2880},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SecondsToTicks(tt.seconds, Default()); got != tt.want {
				t.Errorf("SecondsToTicks(%v) = %d, want %d", tt.seconds, got, tt.want)
			}
		})
	}
}

func TestContextBPM(t *testing.T) {
	if got := Default().BPM(); math.Abs(got-120) > 1e-9 {
		t.Errorf("BPM() = %v, want 120", got)
	}
}

func TestMapSingleTempo(t *testing.T) {
	m := Single(Default())
	if got := m.Seconds(960); math.Abs(got-1.0) > 1e-12 {
		t.Errorf("Seconds(960) = %v, want 1.0", got)
	}
	if got := m.Ticks(1.0); got != 960 {
		t.Errorf("Ticks(1.0) = %d, want 960", got)
	}
	if got := m.TicksPerBeat(); got != DefaultTicksPerBeat {
		t.Errorf("TicksPerBeat() = %d, want %d", got, DefaultTicksPerBeat)
	}
}

func TestMapReanchorsAtTempoChange(t *testing.T) {
	// 120 BPM for the first beat, then 60 BPM.
	m := NewMap(480, []Change{
		{Tick: 0, MicrosPerBeat: 500000},
		{Tick: 480, MicrosPerBeat: 1000000},
	})

	tests := []struct {
		tick int64
		want float64
	}{
		{0, 0},
		{240, 0.25},
		{480, 0.5},
		{960, 1.5},
		{1440, 2.5},
	}
	for _, tt := range tests {
		if got := m.Seconds(tt.tick); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("Seconds(%d) = %v, want %v", tt.tick, got, tt.want)
		}
		if got := m.Ticks(tt.want); got != tt.tick {
			t.Errorf("Ticks(%v) = %d, want %d", tt.want, got, tt.tick)
		}
	}

	if got := m.At(100).MicrosPerBeat; got != 500000 {
		t.Errorf("At(100) = %d, want 500000", got)
	}
	if got := m.At(500).MicrosPerBeat; got != 1000000 {
		t.Errorf("At(500) = %d, want 1000000", got)
	}
}

func TestNewMapNormalizesChanges(t *testing.T) {
	t.Run("inserts default tempo at tick 0", func(t *testing.T) {
		m := NewMap(480, []Change{{Tick: 960, MicrosPerBeat: 250000}})
		changes := m.Changes()
		if len(changes) != 2 {
			t.Fatalf("expected 2 changes, got %d", len(changes))
		}
		if changes[0].Tick != 0 || changes[0].MicrosPerBeat != DefaultMicrosPerBeat {
			t.Errorf("first change = %+v, want default at tick 0", changes[0])
		}
	})

	t.Run("sorts and keeps the last change at a tick", func(t *testing.T) {
		m := NewMap(480, []Change{
			{Tick: 480, MicrosPerBeat: 600000},
			{Tick: 0, MicrosPerBeat: 400000},
			{Tick: 480, MicrosPerBeat: 700000},
		})
		changes := m.Changes()
		if len(changes) != 2 {
			t.Fatalf("expected 2 changes, got %d", len(changes))
		}
		if changes[1].MicrosPerBeat != 700000 {
			t.Errorf("change at 480 = %d, want 700000", changes[1].MicrosPerBeat)
		}
	})

	t.Run("drops invalid tempos", func(t *testing.T) {
		m := NewMap(0, []Change{{Tick: 0, MicrosPerBeat: 0}, {Tick: -5, MicrosPerBeat: 100}})
		changes := m.Changes()
		if len(changes) != 1 || changes[0].MicrosPerBeat != DefaultMicrosPerBeat {
			t.Errorf("changes = %+v, want only the default", changes)
		}
		if m.TicksPerBeat() != DefaultTicksPerBeat {
			t.Errorf("TicksPerBeat() = %d, want default", m.TicksPerBeat())
		}
	})
}
