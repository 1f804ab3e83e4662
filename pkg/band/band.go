// Package band runs a whole band job: every AI part is rendered to its own
// track, then all tracks are mixed with the user's recording.
package band

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/zurustar/bandforge/pkg/instrument"
	"github.com/zurustar/bandforge/pkg/logger"
	"github.com/zurustar/bandforge/pkg/mix"
	"github.com/zurustar/bandforge/pkg/note"
	"github.com/zurustar/bandforge/pkg/pcm"
	"github.com/zurustar/bandforge/pkg/render"
	"github.com/zurustar/bandforge/pkg/waveform"
)

// MixFileName is the name of the final mix inside the output directory.
const MixFileName = "overall_band.wav"

// TrackFileName returns the file name of a rendered part.
func TrackFileName(part instrument.Part) string {
	return part.Name + "_ai_artist.wav"
}

// Result describes a finished job.
type Result struct {
	Tracks    []string // Rendered part files, in config order
	Fallbacks []string // Instruments rendered from the fixed timeline
	Mix       string
	Buffer    *pcm.Buffer
}

// Job renders and mixes one band.
type Job struct {
	cfg      Config
	source   NoteSource
	renderer *render.Renderer
	mixer    *mix.Mixer
	log      *slog.Logger
}

// NewJob creates a Job. A nil source reads note files from disk and a nil
// logger uses logger.GetLogger().
func NewJob(cfg Config, source NoteSource, r *render.Renderer, m *mix.Mixer, log *slog.Logger) *Job {
	if source == nil {
		source = FileSource{}
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Job{cfg: cfg, source: source, renderer: r, mixer: m, log: log}
}

type partResult struct {
	path     string
	fallback bool
	skipped  bool
}

// Run renders every part in parallel, bounded by Config.Concurrency, then
// mixes the user's recording and the rendered parts. Cancelling ctx stops
// the job before the next part starts rendering.
func (j *Job) Run(ctx context.Context) (*Result, error) {
	if err := j.cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(j.cfg.OutputDir, 0755); err != nil {
		return nil, &StageError{Stage: StageRender, Err: fmt.Errorf("failed to create output directory: %w", err)}
	}

	j.log.Info("Band job started", "parts", len(j.cfg.Parts), "output", j.cfg.OutputDir, "concurrency", j.cfg.Concurrency)

	results := make([]partResult, len(j.cfg.Parts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.cfg.Concurrency)
	for i, spec := range j.cfg.Parts {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return &StageError{Stage: StageRender, Instrument: spec.Instrument, Err: err}
			}
			res, err := j.renderPart(gctx, spec)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, &StageError{Stage: StageRender, Err: err}
	}

	result := &Result{}
	var inputs []string
	if j.cfg.UserTrack != "" {
		inputs = append(inputs, j.cfg.UserTrack)
	}
	for i, res := range results {
		if res.skipped {
			continue
		}
		result.Tracks = append(result.Tracks, res.path)
		if res.fallback {
			result.Fallbacks = append(result.Fallbacks, j.cfg.Parts[i].Instrument)
		}
		inputs = append(inputs, res.path)
	}

	result.Mix = filepath.Join(j.cfg.OutputDir, MixFileName)
	buf, err := j.mixer.Combine(inputs, result.Mix)
	if err != nil {
		return nil, &StageError{Stage: StageMix, Err: err}
	}
	result.Buffer = buf

	if j.cfg.Waveform != "" {
		if err := waveform.WriteFile(j.cfg.Waveform, buf, 0, 0); err != nil {
			j.log.Warn("Waveform preview not written", "error", &StageError{Stage: StagePreview, Err: err})
		}
	}

	j.log.Info("Band job finished", "mix", result.Mix, "tracks", len(result.Tracks), "seconds", buf.Duration())
	return result, nil
}

// renderPart fetches, parses and renders one part.
func (j *Job) renderPart(ctx context.Context, spec PartSpec) (partResult, error) {
	part := instrument.Resolve(spec.Instrument)
	if j.cfg.UserInstrument != "" && part.Name == instrument.Normalize(j.cfg.UserInstrument) {
		j.log.Warn("Skipping part on the user's instrument", "instrument", part.Name)
		return partResult{skipped: true}, nil
	}
	if !part.Known {
		j.log.Warn("Unknown instrument, using the default program", "instrument", spec.Instrument, "program", part.Program)
	}

	var notes []note.Event
	var fallback bool
	raw, err := j.source.Notes(ctx, spec)
	if err != nil {
		if ctx.Err() != nil {
			return partResult{}, &StageError{Stage: StageNotes, Instrument: part.Name, Err: ctx.Err()}
		}
		j.log.Warn("Note source failed, using the fallback timeline", "error", &StageError{Stage: StageNotes, Instrument: part.Name, Err: err})
		notes, fallback = note.Normalize(note.FallbackTimeline()), true
	} else {
		notes, fallback = note.ParseOrFallback(raw, j.log.With("instrument", part.Name))
	}

	wav := filepath.Join(j.cfg.OutputDir, TrackFileName(part))
	var midi string
	if j.cfg.KeepMIDI {
		midi = filepath.Join(j.cfg.OutputDir, part.Name+"_ai_artist.mid")
	}
	if _, err := j.renderer.RenderFile(notes, part, wav, midi); err != nil {
		return partResult{}, &StageError{Stage: StageRender, Instrument: part.Name, Err: err}
	}
	return partResult{path: wav, fallback: fallback}, nil
}
