// Package extract turns a zone of the normalized canvas into a crop, either
// the raw rectangle or the bounding box of an ink blob found inside it.
package extract

import (
	"errors"
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"github.com/formcrop/formcrop/internal/analyzer"
	"github.com/formcrop/formcrop/internal/config"
)

var (
	// ErrDetectionMiss means no blob in the zone cleared the area floor. The
	// label is skipped; other labels are unaffected.
	ErrDetectionMiss = errors.New("no qualifying region found")

	// ErrZoneOutsideImage means the zone does not fit the given canvas.
	ErrZoneOutsideImage = errors.New("zone outside image bounds")
)

// Crop is an extracted sub-image.
type Crop struct {
	Label string
	// Image is an independent copy anchored at the origin.
	Image *image.RGBA
	// Rect is where Image came from, in canvas coordinates.
	Rect image.Rectangle
	// Region is the detected blob, nil for direct crops.
	Region *analyzer.Region
}

// Extractor applies zones to a normalized canvas.
type Extractor struct {
	detector analyzer.Detector
	minArea  int
	policy   config.Selection
}

// New builds an Extractor. det may be nil when no zone uses detection.
func New(det analyzer.Detector, d config.Detection) *Extractor {
	return &Extractor{
		detector: det,
		minArea:  d.MinArea,
		policy:   d.Select,
	}
}

// Extract crops zone out of page according to zone.Strategy.
func (e *Extractor) Extract(page image.Image, zone config.Zone) (Crop, error) {
	if !zone.Rect.In(page.Bounds()) {
		return Crop{}, fmt.Errorf("%w: zone %q %v, image %v", ErrZoneOutsideImage, zone.Label, zone.Rect, page.Bounds())
	}

	switch zone.Strategy {
	case config.StrategyDirect:
		return Crop{
			Label: zone.Label,
			Image: copyRect(page, zone.Rect),
			Rect:  zone.Rect,
		}, nil
	case config.StrategyDetect:
		return e.detect(page, zone)
	default:
		return Crop{}, fmt.Errorf("zone %q: unknown strategy %q", zone.Label, zone.Strategy)
	}
}

func (e *Extractor) detect(page image.Image, zone config.Zone) (Crop, error) {
	if e.detector == nil {
		return Crop{}, fmt.Errorf("zone %q: no detector configured", zone.Label)
	}

	roi := subImage(page, zone.Rect)
	regions, err := e.detector.Detect(roi)
	if err != nil {
		return Crop{}, fmt.Errorf("zone %q: detect: %w", zone.Label, err)
	}

	region, ok := analyzer.Select(regions, e.minArea, e.policy)
	if !ok {
		return Crop{}, fmt.Errorf("%w: zone %q, %d candidates, none above %d px²",
			ErrDetectionMiss, zone.Label, len(regions), e.minArea)
	}

	// Backends report in ROI coordinates already; clamp in case one overshoots.
	rect := region.Rect.Intersect(zone.Rect)
	if rect.Empty() {
		return Crop{}, fmt.Errorf("%w: zone %q, region %v outside zone", ErrDetectionMiss, zone.Label, region.Rect)
	}

	return Crop{
		Label:  zone.Label,
		Image:  copyRect(page, rect),
		Rect:   rect,
		Region: &region,
	}, nil
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

func subImage(img image.Image, r image.Rectangle) image.Image {
	if s, ok := img.(subImager); ok {
		return s.SubImage(r)
	}
	return copyRect(img, r)
}

// copyRect copies r out of img into a fresh origin-anchored RGBA.
func copyRect(img image.Image, r image.Rectangle) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(out, out.Bounds(), img, r.Min, draw.Src)
	return out
}
