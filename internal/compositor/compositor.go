// Package compositor stacks crops vertically onto a single canvas.
package compositor

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Size returns the canvas size needed to stack crops: the widest crop
// sets the width and the heights add up.
func Size(crops []*image.NRGBA) (width, height int) {
	for _, c := range crops {
		b := c.Bounds()
		width = max(width, b.Dx())
		height += b.Dy()
	}

	return width, height
}

// Stack paints crops top to bottom, in slice order, onto a new canvas.
// Every crop starts at x = 0; the area to the right of a narrower crop stays
// fully transparent.
func Stack(crops []*image.NRGBA) *image.NRGBA {
	width, height := Size(crops)
	canvas := imaging.New(width, height, image.Transparent)

	y := 0
	for _, c := range crops {
		paint(canvas, c, y)
		y += c.Bounds().Dy()
	}

	return canvas
}

// paint copies src row by row onto dst with its top-left corner at (0, y).
// The canvas is sized from the crops, so a crop that does not fit is a bug.
func paint(dst, src *image.NRGBA, y int) {
	sb := src.Bounds()
	target := image.Rect(0, y, sb.Dx(), y+sb.Dy())
	if !target.In(dst.Bounds()) {
		panic(fmt.Sprintf("compositor: crop %v at y=%d does not fit canvas %v", sb, y, dst.Bounds()))
	}

	rowSize := sb.Dx() * 4
	for row := 0; row < sb.Dy(); row++ {
		si := src.PixOffset(sb.Min.X, sb.Min.Y+row)
		di := dst.PixOffset(0, y+row)
		copy(dst.Pix[di:di+rowSize], src.Pix[si:si+rowSize])
	}
}
