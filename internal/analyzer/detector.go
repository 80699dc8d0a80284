package analyzer

import (
	"image"

	"github.com/formcrop/formcrop/internal/config"
)

// Region is the bounding box of one externally-connected ink blob.
type Region struct {
	Rect image.Rectangle // in the coordinate space of the analyzed image
	Area int             // bounding box area, Rect.Dx()*Rect.Dy()
}

// Detector finds ink blobs in a region of interest.
type Detector interface {
	// Detect returns the bounding boxes of all external foreground components,
	// in discovery order, without any size filtering.
	Detect(roi image.Image) ([]Region, error)
}

// Select picks one region whose area is strictly above minArea. With
// config.SelectFirst the first such region in discovery order wins; with
// config.SelectLargest the largest does, ties going to the earlier one.
func Select(regions []Region, minArea int, policy config.Selection) (Region, bool) {
	var (
		best  Region
		found bool
	)
	for _, r := range regions {
		if r.Area <= minArea {
			continue
		}
		if policy == config.SelectFirst {
			return r, true
		}
		if !found || r.Area > best.Area {
			best = r
			found = true
		}
	}
	return best, found
}

func newRegion(r image.Rectangle) Region {
	return Region{Rect: r, Area: r.Dx() * r.Dy()}
}
