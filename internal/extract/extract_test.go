package extract

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/formcrop/formcrop/internal/analyzer"
	"github.com/formcrop/formcrop/internal/config"
)

func page(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	return img
}

func fill(img *image.RGBA, r image.Rectangle, v uint8) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
}

func newExtractor(sel config.Selection) *Extractor {
	return New(analyzer.NewThresholdDetector(180), config.Detection{
		Threshold: 180,
		MinArea:   500,
		Select:    sel,
	})
}

func TestExtractDirect(t *testing.T) {
	t.Parallel()

	p := page(400, 400)
	fill(p, image.Rect(100, 100, 110, 110), 0)
	zone := config.Zone{Label: "PH", Rect: image.Rect(100, 100, 300, 250), Strategy: config.StrategyDirect}

	crop, err := newExtractor(config.SelectLargest).Extract(p, zone)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if crop.Rect != zone.Rect || crop.Region != nil {
		t.Errorf("crop rect %v region %v", crop.Rect, crop.Region)
	}
	if crop.Image.Bounds() != image.Rect(0, 0, 200, 150) {
		t.Errorf("image bounds %v", crop.Image.Bounds())
	}
	if c := crop.Image.RGBAAt(0, 0); c.R != 0 {
		t.Errorf("top-left pixel %v, want ink", c)
	}
}

func TestExtractDetect(t *testing.T) {
	t.Parallel()

	zone := config.Zone{Label: "PS", Rect: image.Rect(1800, 2800, 2300, 2900), Strategy: config.StrategyDetect}
	p := page(2480, 3508)
	fill(p, image.Rect(1850, 2820, 1860, 2830), 0) // 100 px², below the floor
	fill(p, image.Rect(1900, 2840, 1940, 2860), 0) // 800 px²
	fill(p, image.Rect(2000, 2845, 2100, 2895), 0) // 5000 px², starts lower
	fill(p, image.Rect(100, 100, 900, 900), 0)     // outside the zone

	tests := []struct {
		sel  config.Selection
		want image.Rectangle
	}{
		{config.SelectLargest, image.Rect(2000, 2845, 2100, 2895)},
		{config.SelectFirst, image.Rect(1900, 2840, 1940, 2860)},
	}
	for _, tt := range tests {
		t.Run(string(tt.sel), func(t *testing.T) {
			crop, err := newExtractor(tt.sel).Extract(p, zone)
			if err != nil {
				t.Fatalf("Extract failed: %v", err)
			}
			if crop.Rect != tt.want {
				t.Errorf("rect = %v, want %v", crop.Rect, tt.want)
			}
			if !crop.Rect.In(zone.Rect) {
				t.Errorf("crop %v escapes zone %v", crop.Rect, zone.Rect)
			}
			if crop.Image.Bounds().Size() != tt.want.Size() {
				t.Errorf("image size %v, want %v", crop.Image.Bounds().Size(), tt.want.Size())
			}
			if crop.Region == nil || crop.Region.Rect != tt.want {
				t.Errorf("region = %+v", crop.Region)
			}
		})
	}
}

func TestExtractDetectInkCrossingZoneEdge(t *testing.T) {
	t.Parallel()

	// The blob is cut by the zone; the crop stays inside.
	zone := config.Zone{Label: "SS", Rect: image.Rect(100, 100, 200, 150), Strategy: config.StrategyDetect}
	p := page(300, 300)
	fill(p, image.Rect(50, 110, 160, 140), 0)

	crop, err := newExtractor(config.SelectLargest).Extract(p, zone)
	if err != nil {
		t.Fatal(err)
	}
	if crop.Rect != image.Rect(100, 110, 160, 140) {
		t.Errorf("rect = %v", crop.Rect)
	}
}

func TestExtractDetectMiss(t *testing.T) {
	t.Parallel()

	zone := config.Zone{Label: "PS", Rect: image.Rect(0, 0, 200, 100), Strategy: config.StrategyDetect}

	blank := page(300, 300)
	if _, err := newExtractor(config.SelectLargest).Extract(blank, zone); !errors.Is(err, ErrDetectionMiss) {
		t.Errorf("blank zone: got %v, want ErrDetectionMiss", err)
	}

	specks := page(300, 300)
	fill(specks, image.Rect(10, 10, 20, 20), 0)
	fill(specks, image.Rect(50, 50, 70, 75), 0) // exactly 500 px², not above the floor
	if _, err := newExtractor(config.SelectFirst).Extract(specks, zone); !errors.Is(err, ErrDetectionMiss) {
		t.Errorf("specks: got %v, want ErrDetectionMiss", err)
	}
}

func TestExtractZoneOutsideImage(t *testing.T) {
	t.Parallel()

	zone := config.Zone{Label: "PH", Rect: image.Rect(0, 0, 500, 500), Strategy: config.StrategyDirect}
	if _, err := newExtractor(config.SelectLargest).Extract(page(100, 100), zone); !errors.Is(err, ErrZoneOutsideImage) {
		t.Errorf("got %v, want ErrZoneOutsideImage", err)
	}
}

func TestExtractWithoutDetector(t *testing.T) {
	t.Parallel()

	zone := config.Zone{Label: "PS", Rect: image.Rect(0, 0, 50, 50), Strategy: config.StrategyDetect}
	if _, err := New(nil, config.Detection{}).Extract(page(100, 100), zone); err == nil {
		t.Error("expected error without detector")
	}
}

func TestExtractCropIsIndependent(t *testing.T) {
	t.Parallel()

	p := page(100, 100)
	zone := config.Zone{Label: "PH", Rect: image.Rect(10, 10, 20, 20), Strategy: config.StrategyDirect}
	crop, err := newExtractor(config.SelectLargest).Extract(p, zone)
	if err != nil {
		t.Fatal(err)
	}
	fill(p, zone.Rect, 0)
	if c := crop.Image.RGBAAt(5, 5); c.R != 255 {
		t.Errorf("crop changed with the page: %v", c)
	}
}
