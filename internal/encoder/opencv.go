//go:build gocv

package encoder

import (
	"fmt"
	"image"
	"io"

	"gocv.io/x/gocv"
)

func init() {
	RegisterCodec("opencv", func() Codec { return OpenCVCodec{} })
}

// OpenCVCodec encodes through OpenCV's libjpeg, matching what cv2.imwrite
// produces for the same quality.
type OpenCVCodec struct{}

func (OpenCVCodec) Encode(w io.Writer, img image.Image, quality int) error {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return fmt.Errorf("convert image: %w", err)
	}
	defer mat.Close()

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return err
	}
	defer buf.Close()

	_, err = w.Write(buf.GetBytes())
	return err
}
