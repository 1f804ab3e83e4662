package synth

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/zurustar/bandforge/pkg/note"
)

// findTestSoundFont looks for a SoundFont usable by the tests.
func findTestSoundFont(t *testing.T) string {
	t.Helper()
	if p := os.Getenv("BANDFORGE_SOUNDFONT"); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	candidates := []string{
		"../../GeneralUser-GS.sf2",
		"../../soundfonts/GeneralUser-GS.sf2",
		"../../FluidR3_GM.sf2",
	}
	for _, c := range candidates {
		if abs, err := filepath.Abs(c); err == nil {
			if _, err := os.Stat(abs); err == nil {
				return abs
			}
		}
	}
	return ""
}

func TestLoadBank_Unavailable(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
	}{
		{"empty path", func(t *testing.T) string { return "" }},
		{"missing file", func(t *testing.T) string { return filepath.Join(t.TempDir(), "missing.sf2") }},
		{"not a SoundFont", func(t *testing.T) string {
			p := filepath.Join(t.TempDir(), "bad.sf2")
			if err := os.WriteFile(p, []byte("RIFF0000sfbk garbage"), 0644); err != nil {
				t.Fatal(err)
			}
			return p
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadBank(tt.path(t))
			if !errors.Is(err, ErrResourceUnavailable) {
				t.Errorf("LoadBank() error = %v, want ErrResourceUnavailable", err)
			}
		})
	}
}

func TestNilBankNewEngine(t *testing.T) {
	var b *Bank
	if _, err := b.NewEngine(44100, 64); !errors.Is(err, ErrResourceUnavailable) {
		t.Errorf("NewEngine() error = %v, want ErrResourceUnavailable", err)
	}
}

func TestMeltyEngine_WithSoundFont(t *testing.T) {
	path := findTestSoundFont(t)
	if path == "" {
		t.Skip("SoundFont file not found, skipping test")
	}
	bank, err := LoadBank(path)
	if err != nil {
		t.Fatalf("LoadBank failed: %v", err)
	}
	eng, err := bank.NewEngine(44100, 64)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	defer eng.Close()

	eng.SelectProgram(0, 0, 0)
	eng.NoteOn(0, 60, 100)
	left := make([]float32, 4410)
	right := make([]float32, 4410)
	if err := eng.Render(left, right); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	var peak float64
	for _, s := range left {
		peak = math.Max(peak, math.Abs(float64(s)))
	}
	if peak == 0 {
		t.Error("expected sound after NoteOn")
	}
}

type recordingSynth struct {
	messages [][4]int32
	rendered int
	panicOn  bool
}

func (r *recordingSynth) ProcessMidiMessage(channel, command, data1, data2 int32) {
	r.messages = append(r.messages, [4]int32{channel, command, data1, data2})
}
func (r *recordingSynth) NoteOn(channel, key, velocity int32) {}
func (r *recordingSynth) NoteOff(channel, key int32)          {}
func (r *recordingSynth) Render(left, right []float32) {
	if r.panicOn {
		panic("boom")
	}
	r.rendered += len(left)
}

func TestMeltyEngine_SelectProgram(t *testing.T) {
	rec := &recordingSynth{}
	eng := &MeltyEngine{syn: rec}

	eng.SelectProgram(9, 128, 0)
	eng.SelectProgram(0, 0, 40)

	want := [][4]int32{
		{9, cmdControlChange, ccBankSelect, 0},
		{9, cmdProgramChange, 0, 0},
		{0, cmdControlChange, ccBankSelect, 0},
		{0, cmdProgramChange, 40, 0},
	}
	if !reflect.DeepEqual(rec.messages, want) {
		t.Errorf("messages = %v, want %v", rec.messages, want)
	}
}

func TestMeltyEngine_RenderRecoversPanic(t *testing.T) {
	eng := &MeltyEngine{syn: &recordingSynth{panicOn: true}}
	if err := eng.Render(make([]float32, 8), make([]float32, 8)); err == nil {
		t.Error("expected error from panicking synthesizer")
	}
}

func TestMeltyEngine_Closed(t *testing.T) {
	eng := &MeltyEngine{syn: &recordingSynth{}}
	if err := eng.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	eng.NoteOn(0, 60, 100)
	if err := eng.Render(make([]float32, 8), make([]float32, 8)); !errors.Is(err, ErrEngineClosed) {
		t.Errorf("Render() error = %v, want ErrEngineClosed", err)
	}
}

func TestRenderAdditive(t *testing.T) {
	notes := []note.Event{
		{Pitch: 60, Start: 0, Duration: 1},
		{Pitch: 64, Start: 1, Duration: 1},
	}
	b := RenderAdditive(notes, 8000, 2, 80)

	if b.Channels != 1 || b.SampleRate != 8000 {
		t.Fatalf("format = %d Hz %d ch", b.SampleRate, b.Channels)
	}
	if b.Frames() != 4*8000 {
		t.Fatalf("frames = %d, want %d", b.Frames(), 4*8000)
	}

	region := func(from, to float64) float64 {
		var peak float64
		for i := int(from * 8000); i < int(to*8000); i++ {
			peak = math.Max(peak, math.Abs(b.Data[i]))
		}
		return peak
	}
	if region(0.2, 0.8) == 0 {
		t.Error("expected sound during the first note")
	}
	if region(1.2, 1.8) == 0 {
		t.Error("expected sound during the second note")
	}
	if region(2.0, 4.0) != 0 {
		t.Error("expected silence in the tail")
	}
	if b.Peak() > 1 {
		t.Errorf("peak = %v, want <= 1", b.Peak())
	}
}

func TestRenderAdditive_Empty(t *testing.T) {
	b := RenderAdditive(nil, 44100, 2, 80)
	if b.Frames() != 88200 {
		t.Errorf("frames = %d, want 88200", b.Frames())
	}
	if b.Peak() != 0 {
		t.Error("expected silence")
	}
}

func TestRenderAdditive_UnnormalizedTimes(t *testing.T) {
	notes := []note.Event{
		{Pitch: 60, Start: 1e12, Duration: 1},
		{Pitch: 62, Start: math.NaN(), Duration: 1},
		{Pitch: 64, Start: -5, Duration: 1},
		{Pitch: 67, Start: 0, Duration: 1},
	}
	b := RenderAdditive(notes, 8000, 2, 80)

	if want := int((note.MaxExtent + 2) * 8000); b.Frames() != want {
		t.Errorf("frames = %d, want %d", b.Frames(), want)
	}
	if b.Peak() == 0 {
		t.Error("expected the in-range note to sound")
	}
}

func TestEnvelope(t *testing.T) {
	tests := []struct {
		x    float64
		want float64
	}{
		{0, 0},
		{0.05, 0.5},
		{0.1, 1},
		{0.5, sustainLevel},
		{0.9, sustainLevel / 2},
		{1, 0},
	}
	for _, tt := range tests {
		if got := envelope(tt.x); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("envelope(%v) = %v, want %v", tt.x, got, tt.want)
		}
	}
}

func TestPitchFrequency(t *testing.T) {
	if got := PitchFrequency(69); got != 440 {
		t.Errorf("PitchFrequency(69) = %v, want 440", got)
	}
	if got := PitchFrequency(81); math.Abs(got-880) > 1e-9 {
		t.Errorf("PitchFrequency(81) = %v, want 880", got)
	}
}
