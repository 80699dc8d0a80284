// Package canvas resizes scanned forms onto the fixed raster that zone
// coordinates are defined against.
package canvas

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"

	"github.com/formcrop/formcrop/internal/config"
)

// Normalize returns a new opaque RGBA raster of exactly size.Width x size.Height
// holding src stretched to fit. Aspect ratio is not preserved.
func Normalize(src image.Image, size config.Canvas) *image.RGBA {
	dst := image.NewRGBA(size.Bounds())
	NormalizeInto(dst, src)
	return dst
}

// NormalizeInto scales src over the whole of dst. Transparent source pixels
// end up white so they never read as ink.
func NormalizeInto(dst *image.RGBA, src image.Image) {
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
}
