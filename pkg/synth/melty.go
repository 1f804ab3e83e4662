package synth

import "fmt"

// MIDI channel message commands.
const (
	cmdControlChange = 0xB0
	cmdProgramChange = 0xC0
	ccBankSelect     = 0x00
)

// midiSynth is the subset of meltysynth.Synthesizer the engine drives.
type midiSynth interface {
	ProcessMidiMessage(channel, command, data1, data2 int32)
	NoteOn(channel, key, velocity int32)
	NoteOff(channel, key int32)
	Render(left, right []float32)
}

// MeltyEngine drives a meltysynth synthesizer.
type MeltyEngine struct {
	syn midiSynth
}

var _ Engine = (*MeltyEngine)(nil)

// SelectProgram sends a bank select and a program change. Bank numbers of
// 128 and above address the drum kits; meltysynth applies that offset on
// the percussion channel itself, so only the low seven bits are sent.
func (e *MeltyEngine) SelectProgram(channel, bank, program int) {
	if e.syn == nil {
		return
	}
	e.syn.ProcessMidiMessage(int32(channel), cmdControlChange, ccBankSelect, int32(bank&0x7F))
	e.syn.ProcessMidiMessage(int32(channel), cmdProgramChange, int32(program&0x7F), 0)
}

func (e *MeltyEngine) NoteOn(channel, pitch, velocity int) {
	if e.syn == nil {
		return
	}
	e.syn.NoteOn(int32(channel), int32(pitch), int32(velocity))
}

func (e *MeltyEngine) NoteOff(channel, pitch int) {
	if e.syn == nil {
		return
	}
	e.syn.NoteOff(int32(channel), int32(pitch))
}

// Render renders the next len(left) frames. A panic inside the synthesizer
// is returned as an error.
func (e *MeltyEngine) Render(left, right []float32) (err error) {
	if e.syn == nil {
		return ErrEngineClosed
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in synthesizer render: %v", r)
		}
	}()
	e.syn.Render(left, right)
	return nil
}

// Close drops the synthesizer.
func (e *MeltyEngine) Close() error {
	e.syn = nil
	return nil
}
