package system

import (
	"bytes"
	"image"
	"sync"

	"github.com/formcrop/formcrop/internal/config"
)

// pagePool recycles normalized page rasters, one sync.Pool per canvas size.
// A run uses a single layout, so the map normally holds one entry.
type pagePool struct {
	mu    sync.Mutex
	sizes map[config.Canvas]*sync.Pool
}

var pages = &pagePool{sizes: make(map[config.Canvas]*sync.Pool)}

// GetCanvas returns a page raster sized to c and anchored at the origin.
// Its pixels hold whatever the previous user left; NormalizeInto overwrites
// every one of them.
func GetCanvas(c config.Canvas) *image.RGBA {
	return pages.pool(c).Get().(*image.RGBA)
}

// PutCanvas hands a page back. The caller must not touch it afterwards.
// Rasters of a size never requested, or not anchored at the origin, are dropped.
func PutCanvas(img *image.RGBA) {
	if img == nil || img.Rect.Min != (image.Point{}) {
		return
	}
	c := config.Canvas{Width: img.Rect.Dx(), Height: img.Rect.Dy()}
	pages.mu.Lock()
	pool, ok := pages.sizes[c]
	pages.mu.Unlock()
	if ok {
		pool.Put(img)
	}
}

func (p *pagePool) pool(c config.Canvas) *sync.Pool {
	p.mu.Lock()
	defer p.mu.Unlock()
	pool, ok := p.sizes[c]
	if !ok {
		bounds := c.Bounds()
		pool = &sync.Pool{New: func() any { return image.NewRGBA(bounds) }}
		p.sizes[c] = pool
	}
	return pool
}

// maxPooledBuffer keeps one oversized full-page encode from pinning memory.
const maxPooledBuffer = 4 << 20

var bufferPool = sync.Pool{
	New: func() any {
		return new(bytes.Buffer)
	},
}

// GetBuffer returns an empty scratch buffer for encoder attempts.
func GetBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer returns buf to the pool. Bytes previously obtained from it must
// have been copied out.
func PutBuffer(buf *bytes.Buffer) {
	if buf == nil || buf.Cap() > maxPooledBuffer {
		return
	}
	bufferPool.Put(buf)
}
