package codec

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/go-audio/aiff"
	"github.com/hajimehoshi/ebiten/v2/audio/mp3"
	"github.com/hajimehoshi/ebiten/v2/audio/vorbis"

	"github.com/zurustar/bandforge/pkg/pcm"
)

func decodeAIFF(r io.ReadSeeker) (*pcm.Buffer, error) {
	d := aiff.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, errInvalidAIFF
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, err
	}
	if buf.Format == nil {
		return nil, errInvalidAIFF
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = 16
	}
	data := buf.Data
	if bitDepth == 8 {
		// AIFF stores 8-bit samples signed.
		data = make([]int, len(buf.Data))
		for i, v := range buf.Data {
			data[i] = v + 128
		}
	}
	return pcm.FromInts(data, bitDepth, buf.Format.SampleRate, buf.Format.NumChannels), nil
}

var errInvalidAIFF = errors.New("invalid or empty AIFF file")

// Both ebiten decoders emit 16-bit little-endian interleaved stereo.
const (
	streamChannels       = 2
	streamBytesPerSample = 2
)

func decodeMP3(r io.ReadSeeker) (*pcm.Buffer, error) {
	s, err := mp3.DecodeWithoutResampling(r)
	if err != nil {
		return nil, err
	}
	return readStream(s, s.SampleRate())
}

func decodeOgg(r io.ReadSeeker) (*pcm.Buffer, error) {
	s, err := vorbis.DecodeWithoutResampling(r)
	if err != nil {
		return nil, err
	}
	return readStream(s, s.SampleRate())
}

func readStream(r io.Reader, sampleRate int) (*pcm.Buffer, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	samples := make([]int, len(raw)/streamBytesPerSample)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(raw[i*streamBytesPerSample:])))
	}
	// Drop a trailing half frame.
	samples = samples[:len(samples)-len(samples)%streamChannels]
	return pcm.FromInts(samples, 16, sampleRate, streamChannels), nil
}
