// Package pipeline implements the per-tile synthesis state machine: chunk
// fetch, JPEG decode, stitch, DXT encode, and cache publish.
package pipeline

import (
	"image"
	"sync"
	"sync/atomic"
)

type rgbaPoolKey struct{ w, h int }

// rgbaPools maps (width, height) -> *sync.Pool of *image.RGBA. Only two
// sizes are ever requested in practice (one ChunkPixels decode buffer,
// one ArtifactPixels stitch canvas), so a sync.Map stays effectively a
// two-entry table regardless of request volume.
var rgbaPools sync.Map

// allocs and reuses count GetRGBA calls that missed vs. hit a pool, so a
// caller can tell whether the pool is actually absorbing pressure for a
// given size (read through BufPoolStats) instead of just allocating
// fresh buffers every call.
var allocs, reuses atomic.Uint64

// GetRGBA returns a zeroed *image.RGBA of the given size from the pool,
// or allocates a new one.
func GetRGBA(w, h int) *image.RGBA {
	key := rgbaPoolKey{w, h}
	if p, ok := rgbaPools.Load(key); ok {
		if v := p.(*sync.Pool).Get(); v != nil {
			img := v.(*image.RGBA)
			clear(img.Pix)
			reuses.Add(1)
			return img
		}
	}
	allocs.Add(1)
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

// PutRGBA returns img to its size-keyed pool for reuse. Nil is ignored.
func PutRGBA(img *image.RGBA) {
	if img == nil {
		return
	}
	key := rgbaPoolKey{img.Rect.Dx(), img.Rect.Dy()}
	p, _ := rgbaPools.LoadOrStore(key, &sync.Pool{})
	p.(*sync.Pool).Put(img)
}

// BufPoolStats reports cumulative GetRGBA outcomes since process start.
func BufPoolStats() (allocCount, reuseCount uint64) {
	return allocs.Load(), reuses.Load()
}
