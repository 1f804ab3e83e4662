// Package waveform draws a preview image of a rendered or mixed buffer.
package waveform

import (
	"fmt"
	"image"
	"image/draw"
	"os"

	"golang.org/x/image/bmp"
	"golang.org/x/image/colornames"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/zurustar/bandforge/pkg/fileutil"
	"github.com/zurustar/bandforge/pkg/pcm"
)

// Default image size.
const (
	DefaultWidth  = 800
	DefaultHeight = 200
)

var (
	backgroundColor = colornames.Whitesmoke
	axisColor       = colornames.Lightgray
	waveColor       = colornames.Steelblue
	labelColor      = colornames.Dimgray
)

// Render draws b as a min/max envelope per column, channels averaged, with
// a small label giving its length and format. Zero sizes take the defaults.
func Render(b *pcm.Buffer, width, height int) *image.RGBA {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, draw.Src)

	mid := height / 2
	for x := 0; x < width; x++ {
		img.Set(x, mid, axisColor)
	}

	mono := pcm.Remix(b, 1)
	frames := mono.Frames()
	if frames > 0 {
		half := float64(height-1) / 2
		for x := 0; x < width; x++ {
			from := x * frames / width
			to := (x + 1) * frames / width
			if to <= from {
				to = from + 1
			}
			lo, hi := columnRange(mono.Data[from:min(to, frames)])
			if lo == 0 && hi == 0 {
				continue
			}
			top := mid - int(hi*half)
			bottom := mid - int(lo*half)
			for y := max(top, 0); y <= min(bottom, height-1); y++ {
				img.Set(x, y, waveColor)
			}
		}
	}

	label(img, fmt.Sprintf("%.2fs  %d Hz  %d ch", b.Duration(), b.SampleRate, b.Channels))
	return img
}

// columnRange returns the clamped minimum and maximum of samples.
func columnRange(samples []float64) (lo, hi float64) {
	for _, s := range samples {
		lo = min(lo, s)
		hi = max(hi, s)
	}
	return max(lo, -1), min(hi, 1)
}

func label(img *image.RGBA, text string) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(labelColor),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(4, 13),
	}
	d.DrawString(text)
}

// WriteFile renders b and writes it to path as a BMP image.
func WriteFile(path string, b *pcm.Buffer, width, height int) error {
	img := Render(b, width, height)
	err := fileutil.WriteAtomic(path, func(f *os.File) error {
		return bmp.Encode(f, img)
	})
	if err != nil {
		return fmt.Errorf("failed to write waveform %s: %w", path, err)
	}
	return nil
}
