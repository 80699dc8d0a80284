//go:build gocv

package analyzer

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

func init() {
	Register("opencv", func(threshold uint8) (Detector, error) {
		return NewOpenCVDetector(threshold), nil
	})
}

// OpenCVDetector runs the same threshold/external-contour chain through OpenCV.
// Contours come back in OpenCV's own ordering.
type OpenCVDetector struct {
	Threshold uint8
}

func NewOpenCVDetector(threshold uint8) *OpenCVDetector {
	return &OpenCVDetector{Threshold: threshold}
}

func (d *OpenCVDetector) Detect(roi image.Image) ([]Region, error) {
	bounds := roi.Bounds()

	img, err := gocv.ImageToMatRGB(roi)
	if err != nil {
		return nil, fmt.Errorf("convert roi: %w", err)
	}
	defer img.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)

	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(gray, &binary, float32(d.Threshold), 255, gocv.ThresholdBinaryInv)

	contours := gocv.FindContours(binary, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	regions := make([]Region, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		rect := gocv.BoundingRect(contours.At(i))
		regions = append(regions, newRegion(rect.Add(bounds.Min)))
	}
	return regions, nil
}
