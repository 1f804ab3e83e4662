package synth

import (
	"bytes"
	"fmt"
	"os"

	"github.com/sinshu/go-meltysynth/meltysynth"
)

// DefaultBlockSize is the internal block size of meltysynth engines.
const DefaultBlockSize = 64

// Bank is a parsed SoundFont. It is read-only after loading and may be
// shared by engines running concurrently.
type Bank struct {
	Path      string
	soundFont *meltysynth.SoundFont
}

// LoadBank reads and parses a SoundFont file.
//
// Parameters:
//   - path: Path to the SoundFont (.sf2) file
//
// Returns:
//   - *Bank: The parsed instrument bank
//   - error: ErrResourceUnavailable wrapped with the cause if the file cannot be read or parsed
func LoadBank(path string) (*Bank, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: no SoundFont configured", ErrResourceUnavailable)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrResourceUnavailable, path, err)
	}
	sf, err := parseSoundFont(data)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse SoundFont %s: %v", ErrResourceUnavailable, path, err)
	}
	return &Bank{Path: path, soundFont: sf}, nil
}

// parseSoundFont guards against panics on malformed files.
func parseSoundFont(data []byte) (sf *meltysynth.SoundFont, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while parsing: %v", r)
		}
	}()
	return meltysynth.NewSoundFont(bytes.NewReader(data))
}

// NewEngine creates a fresh engine over the bank. A nil bank yields
// ErrResourceUnavailable.
func (b *Bank) NewEngine(sampleRate, blockSize int) (*MeltyEngine, error) {
	if b == nil || b.soundFont == nil {
		return nil, fmt.Errorf("%w: no instrument bank loaded", ErrResourceUnavailable)
	}
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	settings := meltysynth.NewSynthesizerSettings(int32(sampleRate))
	settings.BlockSize = int32(blockSize)
	syn, err := meltysynth.NewSynthesizer(b.soundFont, settings)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create synthesizer: %v", ErrResourceUnavailable, err)
	}
	return &MeltyEngine{syn: syn}, nil
}
