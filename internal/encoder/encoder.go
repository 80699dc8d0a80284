// Package encoder searches JPEG quality levels until an image fits a size
// envelope.
package encoder

import (
	"bytes"
	"fmt"
	"image"
	"log/slog"

	"github.com/formcrop/formcrop/internal/config"
	"github.com/formcrop/formcrop/internal/system"
)

// Status tells whether an artifact satisfied its size limit.
type Status string

const (
	StatusInRange    Status = "in_range"
	StatusOutOfRange Status = "out_of_range"
)

// Artifact is the encoded output for one label.
type Artifact struct {
	Label   string
	Data    []byte
	Quality int
	Status  Status
	Limit   config.SizeLimit
}

// Size returns the encoded length in bytes.
func (a Artifact) Size() int {
	return len(a.Data)
}

// Encoder runs the quality search with a fixed codec and schedule.
type Encoder struct {
	codec   Codec
	quality config.Quality
	logger  *slog.Logger
}

// Option configures an Encoder.
type Option func(*Encoder)

// WithLogger sets the logger used for per-attempt debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Encoder) {
		e.logger = logger
	}
}

// New returns an Encoder trying q.Steps() with codec.
func New(codec Codec, q config.Quality, opts ...Option) *Encoder {
	e := &Encoder{
		codec:   codec,
		quality: q,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Encode tries qualities from highest to lowest and returns the first result
// whose size is within limit. When none fits, the lowest-quality result is
// returned with StatusOutOfRange. Only codec failures produce an error.
func (e *Encoder) Encode(img image.Image, label string, limit config.SizeLimit) (Artifact, error) {
	steps := e.quality.Steps()
	if len(steps) == 0 {
		return Artifact{}, fmt.Errorf("%s: empty quality schedule %+v", label, e.quality)
	}

	buf := system.GetBuffer()
	defer system.PutBuffer(buf)

	for _, q := range steps {
		buf.Reset()
		if err := e.codec.Encode(buf, img, q); err != nil {
			return Artifact{}, fmt.Errorf("%s: encode at quality %d: %w", label, q, err)
		}

		e.logger.Debug("encode attempt", "label", label, "quality", q, "size", buf.Len(), "limit", limit.String())

		if limit.Contains(buf.Len()) {
			return newArtifact(label, buf, q, StatusInRange, limit), nil
		}
	}

	// buf still holds the last, lowest-quality attempt.
	return newArtifact(label, buf, steps[len(steps)-1], StatusOutOfRange, limit), nil
}

func newArtifact(label string, buf *bytes.Buffer, q int, status Status, limit config.SizeLimit) Artifact {
	data := make([]byte, buf.Len())
	copy(data, buf.Bytes())
	return Artifact{
		Label:   label,
		Data:    data,
		Quality: q,
		Status:  status,
		Limit:   limit,
	}
}
