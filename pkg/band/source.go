package band

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// NoteSource supplies the raw note timeline text for a part. The text may
// be anything; unusable text makes the part fall back to the fixed
// timeline.
type NoteSource interface {
	Notes(ctx context.Context, part PartSpec) ([]byte, error)
}

// FileSource reads each part's timeline from the file named by
// PartSpec.Notes.
type FileSource struct{}

// Notes implements NoteSource.
func (FileSource) Notes(ctx context.Context, part PartSpec) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if part.Notes == "" {
		return nil, errors.New("no note source configured")
	}
	data, err := os.ReadFile(part.Notes)
	if err != nil {
		return nil, fmt.Errorf("failed to read notes for %s: %w", part.Instrument, err)
	}
	return data, nil
}
