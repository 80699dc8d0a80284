package source

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

var rasterExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".tif":  true,
	".tiff": true,
	".bmp":  true,
}

// IsRasterExt reports whether ext (with dot, any case) is a decodable raster.
func IsRasterExt(ext string) bool {
	return rasterExts[strings.ToLower(ext)]
}

// IsSupported reports whether path looks like a form scan Open can read.
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".pdf" || IsRasterExt(ext)
}

// ImageSource is a single raster file exposed as a one-page Source.
type ImageSource struct {
	path string
}

func NewImageSource(path string) *ImageSource {
	return &ImageSource{path: path}
}

func (s *ImageSource) PageCount() int {
	return 1
}

func (s *ImageSource) GetPageDimensions(index int) (float64, float64, error) {
	if index != 0 {
		return 0, 0, fmt.Errorf("page %d out of range", index)
	}
	f, err := os.Open(s.path)
	if err != nil {
		return 0, 0, &DecodeError{Path: s.path, Err: err}
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, &DecodeError{Path: s.path, Err: err}
	}
	return float64(cfg.Width), float64(cfg.Height), nil
}

// RenderPage decodes the file. dpi is ignored for rasters.
func (s *ImageSource) RenderPage(index int, dpi int) (image.Image, error) {
	if index != 0 {
		return nil, fmt.Errorf("page %d out of range", index)
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, &DecodeError{Path: s.path, Err: err}
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, &DecodeError{Path: s.path, Err: err}
	}
	return img, nil
}

func (s *ImageSource) Close() error {
	return nil
}
