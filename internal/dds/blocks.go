package dds

import "image"

// encodeLevel compresses one mip level into dst (which must be large
// enough) and returns the number of bytes written.
func encodeLevel(dst []byte, img *image.RGBA, format Format) int {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	blockW, blockH := blockCount(w), blockCount(h)
	blockSize := format.blockBytes()

	off := 0
	var pixels [16][4]uint8
	for by := 0; by < blockH; by++ {
		for bx := 0; bx < blockW; bx++ {
			readBlock(img, b.Min.X+bx*4, b.Min.Y+by*4, &pixels)
			if format == BC3 {
				encodeAlphaBlock(dst[off:off+8], &pixels)
				encodeColorBlock(dst[off+8:off+16], &pixels, true)
			} else {
				encodeColorBlock(dst[off:off+8], &pixels, false)
			}
			off += blockSize
		}
	}
	return off
}

// readBlock copies the 4x4 pixel block starting at (x0, y0) into out,
// clamping reads at the image edge by repeating the last valid pixel
// (mip levels are always padded to multiples of 4 so this only matters
// for malformed inputs).
func readBlock(img *image.RGBA, x0, y0 int, out *[16][4]uint8) {
	b := img.Bounds()
	for dy := 0; dy < 4; dy++ {
		y := y0 + dy
		if y >= b.Max.Y {
			y = b.Max.Y - 1
		}
		for dx := 0; dx < 4; dx++ {
			x := x0 + dx
			if x >= b.Max.X {
				x = b.Max.X - 1
			}
			r, g, bl, a := img.At(x, y).RGBA()
			out[dy*4+dx] = [4]uint8{uint8(r >> 8), uint8(g >> 8), uint8(bl >> 8), uint8(a >> 8)}
		}
	}
}

// encodeColorBlock writes an 8-byte BC1-style color block: two RGB565
// endpoints found from the channel-wise bounding box of the 16 pixels,
// followed by sixteen 2-bit palette indices. When alwaysOpaque is true
// (BC3), color0 is forced > color1 so the 4-color interpolation mode is
// always used (BC3's alpha channel is encoded separately).
func encodeColorBlock(dst []byte, pixels *[16][4]uint8, alwaysOpaque bool) {
	var minR, minG, minB uint8 = 255, 255, 255
	var maxR, maxG, maxB uint8
	for _, p := range pixels {
		if p[0] < minR {
			minR = p[0]
		}
		if p[0] > maxR {
			maxR = p[0]
		}
		if p[1] < minG {
			minG = p[1]
		}
		if p[1] > maxG {
			maxG = p[1]
		}
		if p[2] < minB {
			minB = p[2]
		}
		if p[2] > maxB {
			maxB = p[2]
		}
	}

	c0 := pack565(maxR, maxG, maxB)
	c1 := pack565(minR, minG, minB)
	if c0 == c1 {
		// Degenerate (uniform) block: nudge c0 up so the 4-color path still applies.
		if c0 < 0xFFFF {
			c0++
		} else {
			c1--
		}
	}
	if alwaysOpaque && c0 <= c1 {
		c0, c1 = c1, c0
	}

	palette := buildPalette(c0, c1)

	dst[0] = byte(c0)
	dst[1] = byte(c0 >> 8)
	dst[2] = byte(c1)
	dst[3] = byte(c1 >> 8)

	var indices uint32
	for i, p := range pixels {
		idx := nearestPaletteIndex(palette, p[0], p[1], p[2])
		indices |= uint32(idx) << (uint(i) * 2)
	}
	dst[4] = byte(indices)
	dst[5] = byte(indices >> 8)
	dst[6] = byte(indices >> 16)
	dst[7] = byte(indices >> 24)
}

// encodeAlphaBlock writes the 8-byte BC3 alpha block: two 8-bit alpha
// endpoints followed by sixteen 3-bit interpolation indices.
func encodeAlphaBlock(dst []byte, pixels *[16][4]uint8) {
	var a0, a1 uint8 = 0, 255
	for _, p := range pixels {
		if p[3] > a0 {
			a0 = p[3]
		}
		if p[3] < a1 {
			a1 = p[3]
		}
	}
	if a0 < a1 {
		a0, a1 = a1, a0
	}

	ramp := buildAlphaRamp(a0, a1)

	dst[0] = a0
	dst[1] = a1

	var bits uint64
	for i, p := range pixels {
		idx := nearestAlphaIndex(ramp, p[3])
		bits |= uint64(idx) << (uint(i) * 3)
	}
	for i := 0; i < 6; i++ {
		dst[2+i] = byte(bits >> (uint(i) * 8))
	}
}

func pack565(r, g, b uint8) uint16 {
	return uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3)
}

func unpack565(c uint16) (r, g, b uint8) {
	r = uint8((c>>11)&0x1F) << 3
	g = uint8((c>>5)&0x3F) << 2
	b = uint8(c&0x1F) << 3
	return
}

// buildPalette returns the 4-color interpolated palette for a 4-color
// (c0 > c1) BC1 block.
func buildPalette(c0, c1 uint16) [4][3]uint8 {
	r0, g0, b0 := unpack565(c0)
	r1, g1, b1 := unpack565(c1)
	return [4][3]uint8{
		{r0, g0, b0},
		{r1, g1, b1},
		{lerp(r0, r1, 1, 3), lerp(g0, g1, 1, 3), lerp(b0, b1, 1, 3)},
		{lerp(r0, r1, 2, 3), lerp(g0, g1, 2, 3), lerp(b0, b1, 2, 3)},
	}
}

func lerp(a, b uint8, num, den int) uint8 {
	return uint8((int(a)*(den-num) + int(b)*num) / den)
}

func nearestPaletteIndex(palette [4][3]uint8, r, g, b uint8) int {
	best, bestDist := 0, 1<<30
	for i, c := range palette {
		dr := int(c[0]) - int(r)
		dg := int(c[1]) - int(g)
		db := int(c[2]) - int(b)
		dist := dr*dr + dg*dg + db*db
		if dist < bestDist {
			bestDist = dist
			best = i
		}
	}
	return best
}

// buildAlphaRamp returns the 8-value interpolated alpha ramp for a0 > a1.
func buildAlphaRamp(a0, a1 uint8) [8]uint8 {
	var ramp [8]uint8
	ramp[0] = a0
	ramp[1] = a1
	for i := 1; i <= 6; i++ {
		ramp[1+i] = uint8((int(a0)*(7-i) + int(a1)*i) / 7)
	}
	return ramp
}

func nearestAlphaIndex(ramp [8]uint8, a uint8) int {
	best, bestDist := 0, 1<<30
	for i, v := range ramp {
		d := int(v) - int(a)
		if d < 0 {
			d = -d
		}
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}
