package codec

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/zurustar/bandforge/pkg/fileutil"
	"github.com/zurustar/bandforge/pkg/pcm"
)

// WAV format tags.
const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

// OutputBitDepth is the bit depth of every file this package writes.
const OutputBitDepth = 16

func decodeWAV(r io.ReadSeeker) (*pcm.Buffer, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		if err := d.Err(); err != nil {
			return nil, err
		}
		return nil, errors.New("invalid or empty WAV file")
	}
	if d.WavAudioFormat != wavFormatPCM && d.WavAudioFormat != wavFormatExtensible {
		return nil, fmt.Errorf("unsupported WAV encoding %d", d.WavAudioFormat)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, err
	}
	return pcm.FromInts(buf.Data, int(d.BitDepth), buf.Format.SampleRate, buf.Format.NumChannels), nil
}

// EncodeWAV writes b as 16-bit PCM WAV.
func EncodeWAV(w io.WriteSeeker, b *pcm.Buffer) error {
	if err := b.Validate(); err != nil {
		return err
	}
	enc := wav.NewEncoder(w, b.SampleRate, OutputBitDepth, b.Channels, wavFormatPCM)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: b.Channels,
			SampleRate:  b.SampleRate,
		},
		Data:           b.Int16(),
		SourceBitDepth: OutputBitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("failed to write WAV data: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finalize WAV file: %w", err)
	}
	return nil
}

// WriteWAVFile writes b to path. The file appears only once it is complete.
func WriteWAVFile(path string, b *pcm.Buffer) error {
	return fileutil.WriteAtomic(path, func(f *os.File) error {
		return EncodeWAV(f, b)
	})
}
