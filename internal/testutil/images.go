// Package testutil renders and stores fixture images for tests.
package testutil

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/stretchr/testify/require"
)

// Solid renders a w x h image filled with c.
func Solid(w, h int, c color.Color) image.Image {
	dc := gg.NewContext(w, h)
	dc.SetColor(c)
	dc.Clear()

	return dc.Image()
}

// Pattern renders an opaque w x h image whose pixels vary with position and
// seed, so that crops taken at different offsets differ.
func Pattern(w, h, seed int) image.Image {
	dc := gg.NewContext(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dc.SetRGBA255((x*7+seed*31)%256, (y*13+seed*17)%256, (x*y+seed)%256, 255)
			dc.SetPixel(x, y)
		}
	}

	return dc.Image()
}

// Bands renders w-wide horizontal bands of the given colors, each band
// bandHeight pixels tall, top to bottom.
func Bands(w, bandHeight int, colors ...color.Color) image.Image {
	dc := gg.NewContext(w, bandHeight*len(colors))
	for i, c := range colors {
		dc.SetColor(c)
		for y := i * bandHeight; y < (i+1)*bandHeight; y++ {
			for x := 0; x < w; x++ {
				dc.SetPixel(x, y)
			}
		}
	}

	return dc.Image()
}

// Save writes img to dir/name, picking the format from the extension,
// and returns the full path.
func Save(t testing.TB, dir, name string, img image.Image) string {
	t.Helper()

	p := filepath.Join(dir, name)
	require.NoError(t, imaging.Save(img, p))

	return p
}

// WriteFile writes raw bytes to dir/name and returns the full path.
func WriteFile(t testing.TB, dir, name string, data []byte) string {
	t.Helper()

	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, data, 0o644))

	return p
}

// NRGBA returns the pixel at (x, y) of img in non-premultiplied form.
func NRGBA(img image.Image, x, y int) color.NRGBA {
	return color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
}
