// Package codec decodes audio containers into pcm buffers and encodes the
// final 16-bit WAV output. The container is chosen by sniffing the content,
// not the file name.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/zurustar/bandforge/pkg/pcm"
)

// ErrTrackDecode is returned when a source cannot be decoded.
var ErrTrackDecode = errors.New("track decode failure")

// Format identifies an audio container.
type Format int

const (
	FormatUnknown Format = iota
	FormatWAV
	FormatAIFF
	FormatMP3
	FormatOgg
)

func (f Format) String() string {
	switch f {
	case FormatWAV:
		return "wav"
	case FormatAIFF:
		return "aiff"
	case FormatMP3:
		return "mp3"
	case FormatOgg:
		return "ogg"
	default:
		return "unknown"
	}
}

// decoder is one container variant.
type decoder func(r io.ReadSeeker) (*pcm.Buffer, error)

var decoders = map[Format]decoder{
	FormatWAV:  decodeWAV,
	FormatAIFF: decodeAIFF,
	FormatMP3:  decodeMP3,
	FormatOgg:  decodeOgg,
}

// sniffLen is the number of header bytes Sniff looks at.
const sniffLen = 12

// Sniff identifies the container from its first bytes.
func Sniff(header []byte) Format {
	switch {
	case len(header) >= 12 && bytes.Equal(header[0:4], []byte("RIFF")) && bytes.Equal(header[8:12], []byte("WAVE")):
		return FormatWAV
	case len(header) >= 12 && bytes.Equal(header[0:4], []byte("FORM")) &&
		(bytes.Equal(header[8:12], []byte("AIFF")) || bytes.Equal(header[8:12], []byte("AIFC"))):
		return FormatAIFF
	case len(header) >= 4 && bytes.Equal(header[0:4], []byte("OggS")):
		return FormatOgg
	case len(header) >= 3 && bytes.Equal(header[0:3], []byte("ID3")):
		return FormatMP3
	case len(header) >= 2 && header[0] == 0xFF && header[1]&0xE0 == 0xE0:
		// MPEG audio frame sync
		return FormatMP3
	default:
		return FormatUnknown
	}
}

// Decode sniffs r and decodes it with the matching variant. Every failure
// wraps ErrTrackDecode.
func Decode(r io.ReadSeeker) (*pcm.Buffer, error) {
	header := make([]byte, sniffLen)
	n, err := io.ReadFull(r, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("%w: failed to read header: %v", ErrTrackDecode, err)
	}
	format := Sniff(header[:n])
	dec, ok := decoders[format]
	if !ok {
		return nil, fmt.Errorf("%w: unrecognized container", ErrTrackDecode)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTrackDecode, err)
	}

	buf, err := dec(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTrackDecode, format, err)
	}
	if err := buf.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTrackDecode, format, err)
	}
	return buf, nil
}

// DecodeFile opens and decodes path. Every failure wraps ErrTrackDecode.
func DecodeFile(path string) (*pcm.Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTrackDecode, err)
	}
	defer f.Close()

	buf, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return buf, nil
}
