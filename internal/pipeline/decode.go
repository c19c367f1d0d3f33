package pipeline

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"

	"github.com/xearthlayer/xearthlayer/internal/xerr"
)

// decodeChunk decodes a fetched provider sub-tile's JPEG bytes into an
// RGBA buffer of exactly coord.ChunkPixels x coord.ChunkPixels, drawn
// from the shared buffer pool. Any decode failure is classified Codec so
// the stage caller substitutes the placeholder rather than propagate a
// raw stdlib error.
func decodeChunk(data []byte, chunkPixels int) (*image.RGBA, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, xerr.Wrap(xerr.Codec, "pipeline.decodeChunk", fmt.Errorf("jpeg decode: %w", err))
	}

	b := img.Bounds()
	if b.Dx() != chunkPixels || b.Dy() != chunkPixels {
		return nil, xerr.Wrap(xerr.Codec, "pipeline.decodeChunk",
			fmt.Errorf("decoded chunk is %dx%d, want %dx%d", b.Dx(), b.Dy(), chunkPixels, chunkPixels))
	}

	if rgba, ok := img.(*image.RGBA); ok {
		return rgba, nil
	}

	dst := GetRGBA(chunkPixels, chunkPixels)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst, nil
}
