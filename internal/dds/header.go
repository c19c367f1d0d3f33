// Package dds implements a from-scratch DXT (BC1/BC3) block compressor with
// mipmap chains, and the fixed magenta placeholder artifact substituted on
// any codec or pipeline failure.
package dds

import "encoding/binary"

// Format selects the DXT block-compression variant.
type Format int

const (
	// BC1 (DXT1) encodes 4x4 blocks in 8 bytes, no alpha gradient.
	BC1 Format = iota
	// BC3 (DXT5) encodes 4x4 blocks in 16 bytes with interpolated alpha.
	BC3
)

func (f Format) fourCC() [4]byte {
	if f == BC3 {
		return [4]byte{'D', 'X', 'T', '5'}
	}
	return [4]byte{'D', 'X', 'T', '1'}
}

func (f Format) blockBytes() int {
	if f == BC3 {
		return 16
	}
	return 8
}

// String renders the format's short name, used to disambiguate cache
// keys across providers that publish different DXT variants.
func (f Format) String() string {
	if f == BC3 {
		return "BC3"
	}
	return "BC1"
}

const (
	headerSize  = 128
	magic       = "DDS "
	ddsdCaps    = 0x1
	ddsdHeight  = 0x2
	ddsdWidth   = 0x4
	ddsdPixFmt  = 0x1000
	ddsdMipmap  = 0x20000
	ddsdLinSize = 0x80000
	pfFourCC    = 0x4
	capsComplex = 0x8
	capsTexture = 0x1000
	capsMipmap  = 0x400000
)

// writeHeader writes the standard 128-byte DDS header for a DXT-compressed,
// mipmapped texture. Offsets match the Microsoft DDS layout consumers rely
// on: magic at 0, height at 12, width at 16, mipmap count at 28, four-cc at 84.
func writeHeader(buf []byte, width, height, mipCount int, format Format) {
	copy(buf[0:4], magic)
	binary.LittleEndian.PutUint32(buf[4:8], 124) // header size field
	flags := uint32(ddsdCaps | ddsdHeight | ddsdWidth | ddsdPixFmt | ddsdLinSize)
	if mipCount > 1 {
		flags |= ddsdMipmap
	}
	binary.LittleEndian.PutUint32(buf[8:12], flags)
	binary.LittleEndian.PutUint32(buf[12:16], uint32(height))
	binary.LittleEndian.PutUint32(buf[16:20], uint32(width))
	linearSize := blockCount(width) * blockCount(height) * format.blockBytes()
	binary.LittleEndian.PutUint32(buf[20:24], uint32(linearSize))
	binary.LittleEndian.PutUint32(buf[24:28], 0) // depth
	binary.LittleEndian.PutUint32(buf[28:32], uint32(mipCount))

	// Pixel format sub-struct at offset 76.
	binary.LittleEndian.PutUint32(buf[76:80], 32) // pixel format size
	binary.LittleEndian.PutUint32(buf[80:84], pfFourCC)
	fourCC := format.fourCC()
	copy(buf[84:88], fourCC[:])

	caps := uint32(capsTexture)
	if mipCount > 1 {
		caps |= capsComplex | capsMipmap
	}
	binary.LittleEndian.PutUint32(buf[108:112], caps)
}

// ParseHeader extracts width, height, mipmap count, and format from a DDS
// byte slice's header, for validation purposes. It does not copy data.
func ParseHeader(data []byte) (width, height, mipCount int, format Format, ok bool) {
	if len(data) < headerSize || string(data[0:4]) != magic {
		return 0, 0, 0, 0, false
	}
	height = int(binary.LittleEndian.Uint32(data[12:16]))
	width = int(binary.LittleEndian.Uint32(data[16:20]))
	mipCount = int(binary.LittleEndian.Uint32(data[28:32]))
	fourCC := string(data[84:88])
	switch fourCC {
	case "DXT1":
		format = BC1
	case "DXT5":
		format = BC3
	default:
		return 0, 0, 0, 0, false
	}
	return width, height, mipCount, format, true
}

// blockCount returns the number of 4x4 blocks needed to cover dim pixels.
func blockCount(dim int) int {
	return (dim + 3) / 4
}

// ExpectedSize returns the total byte length of a DDS artifact with the
// given format, base dimensions, and mipmap count: the fixed header plus
// every mip level's compressed payload, each level halving dimensions
// (floored at 1 pixel) until mipCount levels are accounted for. The
// filesystem façade uses this to report st_size for not-yet-synthesised
// textures.
func ExpectedSize(format Format, width, height, mipCount int) int {
	total := headerSize
	w, h := width, height
	for i := 0; i < mipCount; i++ {
		total += blockCount(w) * blockCount(h) * format.blockBytes()
		if w > 1 {
			w /= 2
		}
		if h > 1 {
			h /= 2
		}
	}
	return total
}
