package encoder

import (
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"sort"
	"sync"
)

// Codec writes img as JPEG at the given quality (1-100).
type Codec interface {
	Encode(w io.Writer, img image.Image, quality int) error
}

// CodecFunc adapts a function to Codec.
type CodecFunc func(w io.Writer, img image.Image, quality int) error

func (f CodecFunc) Encode(w io.Writer, img image.Image, quality int) error {
	return f(w, img, quality)
}

// StdlibCodec encodes with image/jpeg.
type StdlibCodec struct{}

func (StdlibCodec) Encode(w io.Writer, img image.Image, quality int) error {
	return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
}

var (
	codecsMu sync.RWMutex
	codecs   = map[string]func() Codec{
		"stdlib": func() Codec { return StdlibCodec{} },
	}
)

// RegisterCodec makes a codec available by name. Build-tagged backends call it
// from init.
func RegisterCodec(name string, f func() Codec) {
	codecsMu.Lock()
	defer codecsMu.Unlock()
	codecs[name] = f
}

// NewCodec returns the codec registered under name. An empty name selects stdlib.
func NewCodec(name string) (Codec, error) {
	if name == "" {
		name = "stdlib"
	}
	codecsMu.RLock()
	f, ok := codecs[name]
	codecsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown codec %q (available: %v)", name, Codecs())
	}
	return f(), nil
}

// Codecs lists registered codec names.
func Codecs() []string {
	codecsMu.RLock()
	defer codecsMu.RUnlock()
	names := make([]string, 0, len(codecs))
	for name := range codecs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
