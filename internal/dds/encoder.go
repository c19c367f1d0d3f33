package dds

import (
	"fmt"
	"image"
	"image/color"
	"math"
)

// Encoder compresses an RGBA8 image to a DXT-encoded DDS artifact with a
// mipmap chain. Level N halves each dimension of level N-1 until the
// minimum 4x4 block size is reached or MipCount levels have been written,
// whichever comes first.
type Encoder struct {
	Format   Format
	MipCount int // clamped to floor(log2(min(w,h)))+1
}

// NewEncoder returns an Encoder with MipCount clamped against the source
// image dimensions.
func NewEncoder(format Format, width, height, requestedMips int) Encoder {
	maxMips := int(math.Floor(math.Log2(float64(minInt(width, height))))) + 1
	if requestedMips <= 0 || requestedMips > maxMips {
		requestedMips = maxMips
	}
	return Encoder{Format: format, MipCount: requestedMips}
}

// Encode compresses img into a complete DDS byte sequence: 128-byte header
// followed by mip levels largest to smallest.
func (e Encoder) Encode(img *image.RGBA) ([]byte, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("dds: cannot encode zero-size image")
	}
	if w%4 != 0 || h%4 != 0 {
		return nil, fmt.Errorf("dds: dimensions %dx%d are not multiples of 4", w, h)
	}

	levels := mipChain(img, e.MipCount)

	total := headerSize
	for _, lvl := range levels {
		lb := lvl.Bounds()
		total += blockCount(lb.Dx()) * blockCount(lb.Dy()) * e.Format.blockBytes()
	}

	out := make([]byte, total)
	writeHeader(out, w, h, len(levels), e.Format)

	off := headerSize
	for _, lvl := range levels {
		n := encodeLevel(out[off:], lvl, e.Format)
		off += n
	}
	return out, nil
}

// mipChain builds the full mipmap pyramid via 2x2 box-filter downsampling,
// largest level first, stopping once either count levels are produced or
// a dimension would drop below 4 (the minimum DXT block size).
func mipChain(img *image.RGBA, count int) []*image.RGBA {
	levels := make([]*image.RGBA, 0, count)
	cur := img
	for i := 0; i < count; i++ {
		levels = append(levels, cur)
		b := cur.Bounds()
		nextW, nextH := b.Dx()/2, b.Dy()/2
		if i == count-1 || nextW < 4 || nextH < 4 {
			break
		}
		cur = boxDownsample(cur, nextW, nextH)
	}
	return levels
}

// boxDownsample halves img via 2x2 averaging, matching the teacher's
// downsample-for-pyramid idiom generalized from quad-child tiles to a
// single source image.
func boxDownsample(src *image.RGBA, dstW, dstH int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	sb := src.Bounds()
	for y := 0; y < dstH; y++ {
		sy := sb.Min.Y + y*2
		for x := 0; x < dstW; x++ {
			sx := sb.Min.X + x*2
			var r, g, b, a uint32
			for dy := 0; dy < 2; dy++ {
				for dx := 0; dx < 2; dx++ {
					pr, pg, pb, pa := src.At(sx+dx, sy+dy).RGBA()
					r += pr >> 8
					g += pg >> 8
					b += pb >> 8
					a += pa >> 8
				}
			}
			dst.Set(x, y, color.RGBA{R: uint8(r / 4), G: uint8(g / 4), B: uint8(b / 4), A: uint8(a / 4)})
		}
	}
	return dst
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
