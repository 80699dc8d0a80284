package analyzer

import (
	"image"
	"image/color"
	"testing"

	"github.com/formcrop/formcrop/internal/config"
)

// paper returns a white RGBA image with the given bounds.
func paper(r image.Rectangle) *image.RGBA {
	img := image.NewRGBA(r)
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	return img
}

func ink(img *image.RGBA, r image.Rectangle, v uint8) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
}

func TestThresholdDetector(t *testing.T) {
	t.Parallel()

	img := paper(image.Rect(0, 0, 200, 100))
	ink(img, image.Rect(10, 10, 20, 20), 0)    // small speck, 100 px²
	ink(img, image.Rect(100, 40, 160, 70), 40) // signature, 1800 px²
	ink(img, image.Rect(50, 80, 52, 82), 200)  // too light to be ink

	regions, err := NewThresholdDetector(180).Detect(img)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(regions) != 2 {
		t.Fatalf("expected 2 regions, got %d: %+v", len(regions), regions)
	}

	// Discovery order is raster order of each blob's first pixel.
	if regions[0].Rect != image.Rect(10, 10, 20, 20) || regions[0].Area != 100 {
		t.Errorf("region 0 = %+v", regions[0])
	}
	if regions[1].Rect != image.Rect(100, 40, 160, 70) || regions[1].Area != 1800 {
		t.Errorf("region 1 = %+v", regions[1])
	}
}

func TestThresholdDetectorCutoff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		threshold uint8
		value     uint8
		want      int
	}{
		{180, 179, 1},
		{180, 180, 1}, // cutoff itself is ink
		{180, 181, 0},
		{180, 255, 0},
		{0, 0, 1}, // only pure black
		{0, 1, 0},
	}
	for _, tt := range tests {
		img := paper(image.Rect(0, 0, 20, 20))
		ink(img, image.Rect(5, 5, 10, 10), tt.value)
		regions, _ := NewThresholdDetector(tt.threshold).Detect(img)
		if len(regions) != tt.want {
			t.Errorf("threshold %d, value %d: got %d regions, want %d", tt.threshold, tt.value, len(regions), tt.want)
		}
	}
}

func TestThresholdDetectorExternalOnly(t *testing.T) {
	t.Parallel()

	// A hollow box with a dot inside its hole: only the box is external.
	img := paper(image.Rect(0, 0, 100, 100))
	ink(img, image.Rect(10, 10, 90, 90), 0)
	ink(img, image.Rect(12, 12, 88, 88), 255)
	ink(img, image.Rect(40, 40, 60, 60), 0)

	regions, err := NewThresholdDetector(180).Detect(img)
	if err != nil {
		t.Fatal(err)
	}
	if len(regions) != 1 || regions[0].Rect != image.Rect(10, 10, 90, 90) {
		t.Fatalf("expected only the outer box, got %+v", regions)
	}
}

func TestThresholdDetectorDiagonalConnectivity(t *testing.T) {
	t.Parallel()

	img := paper(image.Rect(0, 0, 10, 10))
	img.SetRGBA(3, 3, color.RGBA{A: 255})
	img.SetRGBA(4, 4, color.RGBA{A: 255})

	regions, _ := NewThresholdDetector(180).Detect(img)
	if len(regions) != 1 || regions[0].Rect != image.Rect(3, 3, 5, 5) {
		t.Fatalf("diagonal pixels should form one blob, got %+v", regions)
	}
}

func TestThresholdDetectorSubImageCoordinates(t *testing.T) {
	t.Parallel()

	page := paper(image.Rect(0, 0, 300, 300))
	ink(page, image.Rect(120, 130, 160, 150), 0)

	roi := page.SubImage(image.Rect(100, 100, 200, 200))
	regions, err := NewThresholdDetector(180).Detect(roi)
	if err != nil {
		t.Fatal(err)
	}
	if len(regions) != 1 || regions[0].Rect != image.Rect(120, 130, 160, 150) {
		t.Fatalf("expected region in page coordinates, got %+v", regions)
	}
}

func TestThresholdDetectorGray(t *testing.T) {
	t.Parallel()

	img := image.NewGray(image.Rect(0, 0, 50, 50))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	for y := 20; y < 30; y++ {
		for x := 5; x < 45; x++ {
			img.SetGray(x, y, color.Gray{Y: 10})
		}
	}
	regions, _ := NewThresholdDetector(180).Detect(img)
	if len(regions) != 1 || regions[0].Rect != image.Rect(5, 20, 45, 30) {
		t.Fatalf("got %+v", regions)
	}
}

func TestSelect(t *testing.T) {
	t.Parallel()

	regions := []Region{
		newRegion(image.Rect(0, 0, 10, 10)),   // 100
		newRegion(image.Rect(0, 0, 30, 20)),   // 600
		newRegion(image.Rect(0, 0, 100, 40)),  // 4000
		newRegion(image.Rect(50, 0, 150, 40)), // 4000, later
	}

	tests := []struct {
		name    string
		minArea int
		policy  config.Selection
		want    image.Rectangle
		found   bool
	}{
		{"first above floor", 500, config.SelectFirst, image.Rect(0, 0, 30, 20), true},
		{"largest, earliest tie", 500, config.SelectLargest, image.Rect(0, 0, 100, 40), true},
		{"floor is strict", 600, config.SelectFirst, image.Rect(0, 0, 100, 40), true},
		{"nothing qualifies", 4000, config.SelectLargest, image.Rectangle{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Select(regions, tt.minArea, tt.policy)
			if ok != tt.found || got.Rect != tt.want {
				t.Errorf("Select = %v, %v; want %v, %v", got.Rect, ok, tt.want, tt.found)
			}
		})
	}
}

func TestDetectorRegistry(t *testing.T) {
	tests := []struct {
		backend string
		wantErr bool
	}{
		{"threshold", false},
		{"", false}, // default
		{"invalid", true},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			detector, err := NewDetector(tt.backend, 180)

			if tt.wantErr {
				if err == nil {
					t.Error("Expected error, got nil")
				}
			} else {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
				if detector == nil {
					t.Error("Expected detector, got nil")
				}
			}
		})
	}
}
