// Package synth provides the synthesis engines used by the renderer: a
// SoundFont engine backed by go-meltysynth and an additive fallback for
// when no instrument bank is available.
package synth

import "errors"

// ErrResourceUnavailable is returned when the engine or its instrument bank
// cannot be acquired.
var ErrResourceUnavailable = errors.New("synthesis resource unavailable")

// ErrEngineClosed is returned when a closed engine is asked to render.
var ErrEngineClosed = errors.New("synthesis engine is closed")

// Engine is a stateful synthesizer. Channel state is mutated in place, so an
// Engine must not be shared between concurrent renders.
type Engine interface {
	// SelectProgram sets bank and program on a channel.
	SelectProgram(channel, bank, program int)
	// NoteOn starts a note.
	NoteOn(channel, pitch, velocity int)
	// NoteOff releases a note.
	NoteOff(channel, pitch int)
	// Render fills left and right with the next len(left) frames.
	Render(left, right []float32) error
	// Close releases the engine. Further calls are no-ops.
	Close() error
}
