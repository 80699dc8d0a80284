package analyzer

import (
	"image"
	"image/color"
)

// ThresholdDetector binarizes with an inverted fixed threshold (ink on white
// paper) and traces external 8-connected components in pure Go.
type ThresholdDetector struct {
	// Threshold is the luminance cutoff: pixels at or below it are ink.
	Threshold uint8
}

// NewThresholdDetector creates a detector with the given luminance cutoff.
func NewThresholdDetector(threshold uint8) *ThresholdDetector {
	return &ThresholdDetector{Threshold: threshold}
}

// Detect finds external ink components in roi.
func (d *ThresholdDetector) Detect(roi image.Image) ([]Region, error) {
	bounds := roi.Bounds()
	mask := d.binarize(roi)
	outside := markOutside(mask, bounds.Dx(), bounds.Dy())
	rects := findContours(mask, outside, bounds.Dx(), bounds.Dy())

	regions := make([]Region, 0, len(rects))
	for _, r := range rects {
		regions = append(regions, newRegion(r.Add(bounds.Min)))
	}
	return regions, nil
}

// binarize returns a row-major foreground mask, origin at bounds.Min.
func (d *ThresholdDetector) binarize(img image.Image) []bool {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	mask := make([]bool, w*h)

	if rgba, ok := img.(*image.RGBA); ok {
		for y := 0; y < h; y++ {
			off := rgba.PixOffset(bounds.Min.X, bounds.Min.Y+y)
			row := rgba.Pix[off : off+w*4]
			for x := 0; x < w; x++ {
				p := row[x*4 : x*4+3]
				mask[y*w+x] = luminance8(p[0], p[1], p[2]) <= d.Threshold
			}
		}
		return mask
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			g := color.GrayModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray)
			mask[y*w+x] = g.Y <= d.Threshold
		}
	}
	return mask
}

// luminance8 matches color.GrayModel for opaque 8-bit pixels.
func luminance8(r, g, b uint8) uint8 {
	r16, g16, b16 := uint32(r)*0x101, uint32(g)*0x101, uint32(b)*0x101
	y := (19595*r16 + 38470*g16 + 7471*b16 + 1<<15) >> 24
	return uint8(y)
}

// markOutside flood-fills background (4-connected) from the image border.
// Background not reached sits inside a hole of some component.
func markOutside(mask []bool, w, h int) []bool {
	outside := make([]bool, w*h)
	stack := make([]int, 0, 2*(w+h))

	push := func(i int) {
		if !mask[i] && !outside[i] {
			outside[i] = true
			stack = append(stack, i)
		}
	}
	for x := 0; x < w; x++ {
		push(x)
		push((h-1)*w + x)
	}
	for y := 0; y < h; y++ {
		push(y * w)
		push(y*w + w - 1)
	}

	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w
		if x > 0 {
			push(i - 1)
		}
		if x < w-1 {
			push(i + 1)
		}
		if y > 0 {
			push(i - w)
		}
		if y < h-1 {
			push(i + w)
		}
	}
	return outside
}

// findContours returns bounding rectangles of external foreground components
// in raster discovery order.
func findContours(mask, outside []bool, w, h int) []image.Rectangle {
	visited := make([]bool, w*h)
	var contours []image.Rectangle

	for i := range mask {
		if mask[i] && !visited[i] {
			rect, external := floodFill(mask, outside, visited, w, h, i)
			if external {
				contours = append(contours, rect)
			}
		}
	}
	return contours
}

// floodFill walks one 8-connected component from start and returns its
// bounding rectangle and whether it borders the outside background.
func floodFill(mask, outside, visited []bool, w, h, start int) (image.Rectangle, bool) {
	minX, minY := start%w, start/w
	maxX, maxY := minX, minY
	external := false

	visited[start] = true
	stack := []int{start}

	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w

		if x < minX {
			minX = x
		}
		if x > maxX {
			maxX = x
		}
		if y < minY {
			minY = y
		}
		if y > maxY {
			maxY = y
		}

		if x == 0 || y == 0 || x == w-1 || y == h-1 {
			external = true
		}

		for dy := -1; dy <= 1; dy++ {
			ny := y + dy
			if ny < 0 || ny >= h {
				continue
			}
			for dx := -1; dx <= 1; dx++ {
				nx := x + dx
				if (dx == 0 && dy == 0) || nx < 0 || nx >= w {
					continue
				}
				j := ny*w + nx
				if mask[j] {
					if !visited[j] {
						visited[j] = true
						stack = append(stack, j)
					}
				} else if (dx == 0 || dy == 0) && outside[j] {
					external = true
				}
			}
		}
	}

	return image.Rect(minX, minY, maxX+1, maxY+1), external
}
