package band

import (
	"context"
	"errors"
	"fmt"
)

// Stage names a step of a band job.
type Stage string

const (
	StageNotes   Stage = "notes"
	StageRender  Stage = "render"
	StageMix     Stage = "mix"
	StagePreview Stage = "preview"
)

// StageError is a failure inside one step of a band job.
type StageError struct {
	Stage      Stage
	Instrument string // Empty for job-wide stages
	Err        error
}

func (e *StageError) Error() string {
	if e.Instrument != "" {
		return fmt.Sprintf("%s stage failed for %s: %v", e.Stage, e.Instrument, e.Err)
	}
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether the job stops on this error. Note sources fall
// back to the fixed timeline and a missing preview is only logged, but a
// cancelled job always stops.
func (e *StageError) IsFatal() bool {
	if errors.Is(e.Err, context.Canceled) || errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	switch e.Stage {
	case StageNotes, StagePreview:
		return false
	default:
		return true
	}
}
