package band

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/zurustar/bandforge/pkg/instrument"
)

// ErrInvalidConfig is returned for a band description that cannot run.
var ErrInvalidConfig = errors.New("invalid band config")

// PartSpec is one AI-played part of the band.
type PartSpec struct {
	Instrument string `json:"instrument"`
	Notes      string `json:"notes"` // File holding the note timeline text
}

// Config describes a band job.
type Config struct {
	OutputDir      string     `json:"output_dir"`
	UserTrack      string     `json:"user_track"`      // The user's own recording, mixed first
	UserInstrument string     `json:"user_instrument"` // Parts on this instrument are skipped
	Parts          []PartSpec `json:"parts"`
	Concurrency    int        `json:"concurrency"`
	KeepMIDI       bool       `json:"keep_midi"`
	Waveform       string     `json:"waveform"` // Optional preview image of the mix
}

// DefaultConfig returns a config with every optional field set.
func DefaultConfig() Config {
	return Config{
		OutputDir:   "output",
		Concurrency: runtime.NumCPU(),
	}
}

// LoadConfig reads a JSON band description. Relative paths in the file are
// resolved against the directory holding it.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read band config: %w", err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}

	base := filepath.Dir(path)
	cfg.OutputDir = resolve(base, cfg.OutputDir)
	cfg.UserTrack = resolve(base, cfg.UserTrack)
	cfg.Waveform = resolve(base, cfg.Waveform)
	for i := range cfg.Parts {
		cfg.Parts[i].Notes = resolve(base, cfg.Parts[i].Notes)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// Validate checks that the config describes a runnable job and fills in
// defaults for zero fields.
func (c *Config) Validate() error {
	if c.OutputDir == "" {
		c.OutputDir = DefaultConfig().OutputDir
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConfig().Concurrency
	}
	if len(c.Parts) == 0 && c.UserTrack == "" {
		return fmt.Errorf("%w: no parts and no user track", ErrInvalidConfig)
	}

	seen := map[string]bool{}
	for i, p := range c.Parts {
		if p.Instrument == "" {
			return fmt.Errorf("%w: part %d has no instrument", ErrInvalidConfig, i)
		}
		name := instrument.Normalize(p.Instrument)
		// The name becomes part of a file name in the output directory.
		if strings.ContainsAny(name, `/\`) || !filepath.IsLocal(name) {
			return fmt.Errorf("%w: instrument %q is not a plain name", ErrInvalidConfig, p.Instrument)
		}
		if seen[name] {
			return fmt.Errorf("%w: instrument %q appears twice", ErrInvalidConfig, p.Instrument)
		}
		seen[name] = true
	}
	return nil
}
