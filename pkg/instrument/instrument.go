// Package instrument maps instrument names to General MIDI programs and
// render channels.
package instrument

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

const (
	// Percussion is the program value reserved for the drum kit.
	Percussion = -1
	// DefaultProgram is used for names that are not in the table.
	DefaultProgram = 0

	// MelodicChannel carries every pitched instrument.
	MelodicChannel = 0
	// PercussionChannel is the General MIDI drum channel (the 10th).
	PercussionChannel = 9
	// PercussionBank selects the drum kits in a SoundFont.
	PercussionBank = 128
)

// programs maps normalized names to General MIDI program numbers.
var programs = map[string]int{
	"piano":            0,
	"electric_piano":   4,
	"organ":            16,
	"acoustic_guitar":  24,
	"electric_guitar":  27,
	"bass_acoustic":    32,
	"bass_electric":    33,
	"violin":           40,
	"cello":            42,
	"contrabass":       43,
	"harp":             46,
	"string_ensemble":  48,
	"trumpet":          56,
	"trombone":         57,
	"french_horn":      60,
	"sax":              65,
	"clarinet":         71,
	"flute":            73,
	"synth_lead":       80,
	"pad":              88,
	"percussion_drums": Percussion,
}

// Part describes how one instrument is rendered.
type Part struct {
	Name    string // Normalized instrument name
	Program int    // General MIDI program, or Percussion
	Channel int
	Bank    int
	Known   bool // False when the name fell back to DefaultProgram
}

// IsPercussion reports whether the part uses the drum channel.
func (p Part) IsPercussion() bool {
	return p.Program == Percussion
}

// Normalize folds case and maps spaces and hyphens to underscores.
func Normalize(name string) string {
	folded := cases.Fold().String(strings.TrimSpace(name))
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-':
			return '_'
		}
		return r
	}, folded)
}

// Resolve returns the part for name. Unknown names resolve to the default
// program on the melodic channel.
func Resolve(name string) Part {
	key := Normalize(name)
	program, ok := programs[key]
	if !ok {
		program = DefaultProgram
	}
	p := Part{Name: key, Program: program, Channel: MelodicChannel, Known: ok}
	if program == Percussion {
		p.Channel = PercussionChannel
		p.Bank = PercussionBank
	}
	return p
}

// Names returns the known instrument names in sorted order.
func Names() []string {
	names := make([]string, 0, len(programs))
	for name := range programs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
