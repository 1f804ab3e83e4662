// Package mix overlays several rendered or recorded tracks into one
// normalized waveform.
package mix

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/zurustar/bandforge/pkg/codec"
	"github.com/zurustar/bandforge/pkg/fileutil"
	"github.com/zurustar/bandforge/pkg/logger"
	"github.com/zurustar/bandforge/pkg/pcm"
)

// ErrNoInputTracks is returned when there is nothing to mix.
var ErrNoInputTracks = errors.New("no input tracks")

// ErrMissingTrack is matched by *MissingTrackError.
var ErrMissingTrack = errors.New("input track not found")

// MissingTrackError names every declared source that does not exist.
type MissingTrackError struct {
	Paths []string
}

func (e *MissingTrackError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingTrack, strings.Join(e.Paths, ", "))
}

// Is reports whether target is ErrMissingTrack.
func (e *MissingTrackError) Is(target error) bool {
	return target == ErrMissingTrack
}

// Options configures a Mixer.
type Options struct {
	Headroom float64      // Peak level of the mix, defaults to pcm.DefaultHeadroom
	Logger   *slog.Logger // Defaults to logger.GetLogger()
}

// Mixer combines tracks. It holds no state between calls.
type Mixer struct {
	headroom float64
	log      *slog.Logger
}

// New creates a Mixer.
func New(opts Options) *Mixer {
	if opts.Headroom <= 0 || opts.Headroom > 1 {
		opts.Headroom = pcm.DefaultHeadroom
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}
	return &Mixer{headroom: opts.Headroom, log: opts.Logger}
}

// Combine decodes every path, mixes them and writes the result to out as a
// 16-bit WAV. The first decodable track sets the output format.
//
// All paths are checked before anything is decoded or written, so a
// missing source never leaves a partial output behind. A track that fails
// to decode is skipped with a warning unless it is the only input.
func (m *Mixer) Combine(paths []string, out string) (*pcm.Buffer, error) {
	if len(paths) == 0 {
		return nil, ErrNoInputTracks
	}
	if missing := fileutil.MissingPaths(paths); len(missing) > 0 {
		return nil, &MissingTrackError{Paths: missing}
	}

	tracks := make([]*pcm.Buffer, 0, len(paths))
	for _, path := range paths {
		b, err := codec.DecodeFile(path)
		if err != nil {
			if len(paths) == 1 {
				return nil, err
			}
			m.log.Warn("Skipping track that could not be decoded", "path", path, "error", err)
			continue
		}
		m.log.Debug("Decoded track", "path", path, "rate", b.SampleRate, "channels", b.Channels, "seconds", b.Duration())
		tracks = append(tracks, b)
	}
	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: none of %d tracks could be decoded", codec.ErrTrackDecode, len(paths))
	}

	mixed, err := m.CombineBuffers(tracks)
	if err != nil {
		return nil, err
	}
	if out != "" {
		if err := codec.WriteWAVFile(out, mixed); err != nil {
			return nil, fmt.Errorf("failed to write mix: %w", err)
		}
		m.log.Info("Wrote mix", "path", out, "tracks", len(tracks), "seconds", mixed.Duration())
	}
	return mixed, nil
}

// CombineBuffers mixes decoded tracks. The first track is the reference
// format; every other track is resampled and remapped to it before being
// summed, and the mix grows to the longest track. The result is
// normalized even when there is a single track. Inputs are not modified.
func (m *Mixer) CombineBuffers(tracks []*pcm.Buffer) (*pcm.Buffer, error) {
	if len(tracks) == 0 {
		return nil, ErrNoInputTracks
	}
	if err := tracks[0].Validate(); err != nil {
		return nil, fmt.Errorf("track 0: %w", err)
	}

	mixed := tracks[0].Clone()
	for i, t := range tracks[1:] {
		aligned, err := m.align(t, mixed.SampleRate, mixed.Channels)
		if err != nil {
			return nil, fmt.Errorf("track %d: %w", i+1, err)
		}
		pcm.MixInto(mixed, aligned)
	}

	pcm.Normalize(mixed, m.headroom)
	return mixed, nil
}

// align converts t to the reference format.
func (m *Mixer) align(t *pcm.Buffer, sampleRate, channels int) (*pcm.Buffer, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if t.SampleRate != sampleRate {
		m.log.Debug("Resampling track", "from", t.SampleRate, "to", sampleRate)
		r, err := pcm.Resample(t, sampleRate)
		if err != nil {
			return nil, err
		}
		t = r
	}
	return pcm.Remix(t, channels), nil
}
