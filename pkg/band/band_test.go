package band

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/zurustar/bandforge/pkg/codec"
	"github.com/zurustar/bandforge/pkg/mix"
	"github.com/zurustar/bandforge/pkg/pcm"
	"github.com/zurustar/bandforge/pkg/render"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// mapSource serves note text by instrument name.
type mapSource struct {
	mu    sync.Mutex
	notes map[string]string
	calls []string
	hook  func(instrument string)
}

func (s *mapSource) Notes(ctx context.Context, part PartSpec) ([]byte, error) {
	s.mu.Lock()
	s.calls = append(s.calls, part.Instrument)
	hook := s.hook
	s.mu.Unlock()
	if hook != nil {
		hook(part.Instrument)
	}
	text, ok := s.notes[part.Instrument]
	if !ok {
		return nil, errors.New("no notes for " + part.Instrument)
	}
	return []byte(text), nil
}

func newTestJob(cfg Config, source NoteSource) *Job {
	r := render.New(nil, render.Options{SampleRate: 8000, Tail: 0.25, Logger: discard})
	m := mix.New(mix.Options{Logger: discard})
	return NewJob(cfg, source, r, m, discard)
}

func writeUserTrack(t *testing.T, dir string) string {
	t.Helper()
	b := pcm.New(8000, 1, 8000)
	for i := range b.Data {
		if i%20 < 10 {
			b.Data[i] = 0.3
		} else {
			b.Data[i] = -0.3
		}
	}
	path := filepath.Join(dir, "user.wav")
	if err := codec.WriteWAVFile(path, b); err != nil {
		t.Fatalf("WriteWAVFile failed: %v", err)
	}
	return path
}

func TestJobRun(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	source := &mapSource{notes: map[string]string{
		"piano": `Here you go: [{"pitch": 60, "start": 0, "duration": 0.5}, {"pitch": 64, "start": 0.5, "duration": 0.5}]`,
		"Cello": `[{"name": 48, "start": 0, "duration": 1}]`,
	}}
	cfg := Config{
		OutputDir:      out,
		UserTrack:      writeUserTrack(t, dir),
		UserInstrument: "guitar",
		Parts: []PartSpec{
			{Instrument: "piano"},
			{Instrument: "Cello"},
			{Instrument: "flute"}, // no notes: fixed timeline
		},
		Concurrency: 2,
		KeepMIDI:    true,
		Waveform:    filepath.Join(out, "mix.bmp"),
	}

	res, err := newTestJob(cfg, source).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	wantTracks := []string{
		filepath.Join(out, "piano_ai_artist.wav"),
		filepath.Join(out, "cello_ai_artist.wav"),
		filepath.Join(out, "flute_ai_artist.wav"),
	}
	if len(res.Tracks) != len(wantTracks) {
		t.Fatalf("tracks = %v, want %v", res.Tracks, wantTracks)
	}
	for i, want := range wantTracks {
		if res.Tracks[i] != want {
			t.Errorf("track %d = %s, want %s", i, res.Tracks[i], want)
		}
		if _, err := os.Stat(want); err != nil {
			t.Errorf("track file missing: %v", err)
		}
	}
	if _, err := os.Stat(filepath.Join(out, "piano_ai_artist.mid")); err != nil {
		t.Errorf("MIDI file missing: %v", err)
	}
	if len(res.Fallbacks) != 1 || res.Fallbacks[0] != "flute" {
		t.Errorf("fallbacks = %v, want [flute]", res.Fallbacks)
	}

	if res.Mix != filepath.Join(out, MixFileName) {
		t.Errorf("mix = %s", res.Mix)
	}
	mixed, err := codec.DecodeFile(res.Mix)
	if err != nil {
		t.Fatalf("DecodeFile failed: %v", err)
	}
	// The user's mono recording sets the output format.
	if mixed.Channels != 1 || mixed.SampleRate != 8000 {
		t.Errorf("mix format = %d ch @ %d Hz, want 1 ch @ 8000 Hz", mixed.Channels, mixed.SampleRate)
	}
	if mixed.Peak() > pcm.DefaultHeadroom {
		t.Errorf("mix peak = %v exceeds headroom", mixed.Peak())
	}
	if _, err := os.Stat(cfg.Waveform); err != nil {
		t.Errorf("waveform missing: %v", err)
	}
}

func TestJobRun_UnusableNotesFallBack(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out")
	source := &mapSource{notes: map[string]string{
		"bass":  `[{"pitch": 40, "start": 1e12, "duration": 1}]`,
		"organ": `[{"pitch": 60}, {"start": 1}]`,
	}}
	cfg := Config{
		OutputDir:   out,
		Parts:       []PartSpec{{Instrument: "bass"}, {Instrument: "organ"}},
		Concurrency: 2,
	}

	res, err := newTestJob(cfg, source).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Fallbacks) != 2 || res.Fallbacks[0] != "bass" || res.Fallbacks[1] != "organ" {
		t.Errorf("fallbacks = %v, want [bass organ]", res.Fallbacks)
	}
	if len(res.Tracks) != 2 {
		t.Errorf("tracks = %v, want 2", res.Tracks)
	}
}

func TestJobRun_SkipsUserInstrument(t *testing.T) {
	dir := t.TempDir()
	source := &mapSource{notes: map[string]string{}}
	cfg := Config{
		OutputDir:      dir,
		UserTrack:      writeUserTrack(t, dir),
		UserInstrument: "Piano",
		Parts:          []PartSpec{{Instrument: "piano"}, {Instrument: "sax"}},
		Concurrency:    1,
	}

	res, err := newTestJob(cfg, source).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Tracks) != 1 || filepath.Base(res.Tracks[0]) != "sax_ai_artist.wav" {
		t.Errorf("tracks = %v, want only sax", res.Tracks)
	}
}

func TestJobRun_Cancelled(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	source := &mapSource{
		notes: map[string]string{"piano": `[{"pitch": 60, "start": 0, "duration": 0.5}]`},
		hook:  func(string) { cancel() },
	}
	cfg := Config{
		OutputDir:   dir,
		Parts:       []PartSpec{{Instrument: "piano"}, {Instrument: "organ"}, {Instrument: "harp"}},
		Concurrency: 1,
	}

	_, err := newTestJob(cfg, source).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	var se *StageError
	if !errors.As(err, &se) || !se.IsFatal() {
		t.Errorf("error = %v, want a fatal StageError", err)
	}
	if len(source.calls) != 1 {
		t.Errorf("note source called %d times, want 1", len(source.calls))
	}
	if _, err := os.Stat(filepath.Join(dir, MixFileName)); !os.IsNotExist(err) {
		t.Error("mix was written for a cancelled job")
	}
}

func TestJobRun_MissingUserTrack(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		OutputDir:   dir,
		UserTrack:   filepath.Join(dir, "nope.wav"),
		Parts:       []PartSpec{{Instrument: "piano"}},
		Concurrency: 1,
	}
	_, err := newTestJob(cfg, &mapSource{notes: map[string]string{}}).Run(context.Background())
	if !errors.Is(err, mix.ErrMissingTrack) {
		t.Fatalf("error = %v, want ErrMissingTrack", err)
	}
	var se *StageError
	if !errors.As(err, &se) || se.Stage != StageMix {
		t.Errorf("error = %v, want a mix StageError", err)
	}
}

func TestStageError(t *testing.T) {
	inner := errors.New("boom")
	tests := []struct {
		err   *StageError
		fatal bool
		msg   string
	}{
		{&StageError{Stage: StageNotes, Instrument: "piano", Err: inner}, false, "notes stage failed for piano: boom"},
		{&StageError{Stage: StageRender, Instrument: "piano", Err: inner}, true, "render stage failed for piano: boom"},
		{&StageError{Stage: StageMix, Err: inner}, true, "mix stage failed: boom"},
		{&StageError{Stage: StagePreview, Err: inner}, false, "preview stage failed: boom"},
		{&StageError{Stage: StageNotes, Instrument: "sax", Err: context.Canceled}, true, "notes stage failed for sax: context canceled"},
	}
	for _, tt := range tests {
		t.Run(string(tt.err.Stage), func(t *testing.T) {
			if tt.err.IsFatal() != tt.fatal {
				t.Errorf("IsFatal() = %v, want %v", tt.err.IsFatal(), tt.fatal)
			}
			if tt.err.Error() != tt.msg {
				t.Errorf("Error() = %q, want %q", tt.err.Error(), tt.msg)
			}
			if !errors.Is(tt.err, tt.err.Err) {
				t.Error("StageError does not unwrap")
			}
		})
	}
}
