package app

import (
	"github.com/zurustar/bandforge/pkg/fileutil"
)

// SoundFontLocation represents the location of a SoundFont file.
type SoundFontLocation struct {
	// Path is the path to the SoundFont file
	Path string
	// Explicit is true when the path came from the -soundfont flag or the
	// SOUNDFONT environment variable rather than the search list
	Explicit bool
}

// DefaultSoundFontNames are the SoundFont file names searched for, in order.
var DefaultSoundFontNames = []string{
	"FluidR3_GM.sf2",
	"GeneralUser_GS_v1.471.sf2",
	"GeneralUser-GS.sf2",
}

// DefaultSoundFontDirs are the directories searched, in order.
var DefaultSoundFontDirs = []string{".", "soundfonts"}

// findSoundFont searches for a SoundFont file in the following order:
// 1. The explicit path (flag or environment), used as given
// 2. Each name of DefaultSoundFontNames in each of dirs, matched case-insensitively
//
// Parameters:
//   - explicit: Path given by the user, or empty
//   - dirs: Directories to search when explicit is empty
//
// Returns:
//   - *SoundFontLocation: Location of the SoundFont file, or nil if not found
func findSoundFont(explicit string, dirs []string) *SoundFontLocation {
	// 1. ユーザー指定のパス（存在しなければ読み込み時に失敗し、代替音源を使う）
	if explicit != "" {
		return &SoundFontLocation{Path: explicit, Explicit: true}
	}

	// 2. 既定のファイル名を順に検索
	for _, name := range DefaultSoundFontNames {
		for _, dir := range dirs {
			path, err := fileutil.FindFileCaseInsensitive(dir, name)
			if err != nil {
				continue
			}
			return &SoundFontLocation{Path: path}
		}
	}

	return nil
}
