package dds

import (
	"image"
	"image/color"
	"sync"
)

// StandardArtifactPixels, StandardMipCount, and ExpectedStandardSize describe
// the default 4096x4096 BC1+5-mipmap artifact that X-Plane ortho tiles use.
const (
	StandardArtifactPixels = 4096
	StandardMipCount       = 5
	ExpectedStandardSize   = 11_174_016
)

var (
	placeholderOnce sync.Once
	placeholderData []byte
)

// Placeholder returns the fixed solid-magenta (255,0,255,255) 4096x4096
// BC1+5-mipmap artifact, building and memoising it on first call. Any read
// path that would otherwise return corrupt or missing bytes substitutes
// this value.
func Placeholder() []byte {
	placeholderOnce.Do(func() {
		img := image.NewRGBA(image.Rect(0, 0, StandardArtifactPixels, StandardArtifactPixels))
		magenta := color.RGBA{R: 255, G: 0, B: 255, A: 255}
		for i := 0; i < len(img.Pix); i += 4 {
			img.Pix[i] = magenta.R
			img.Pix[i+1] = magenta.G
			img.Pix[i+2] = magenta.B
			img.Pix[i+3] = magenta.A
		}
		enc := NewEncoder(BC1, StandardArtifactPixels, StandardArtifactPixels, StandardMipCount)
		data, err := enc.Encode(img)
		if err != nil {
			// A solid-color encode can never legitimately fail; a failure here
			// means the codec itself is broken, so we fail loudly at the
			// point of first use rather than return silently-wrong bytes.
			panic("dds: failed to build default placeholder: " + err.Error())
		}
		placeholderData = data
	})
	out := make([]byte, len(placeholderData))
	copy(out, placeholderData)
	return out
}

// ValidateOrPlaceholder enforces the total contract for artifact bytes: the
// slice must be non-empty, of the expected size when expectedSize > 0 is
// given, and carry the "DDS " magic. Any violation substitutes the
// placeholder so a read never returns empty or partial bytes.
func ValidateOrPlaceholder(data []byte, expectedSize int) []byte {
	if len(data) == 0 {
		return Placeholder()
	}
	if expectedSize > 0 && len(data) != expectedSize {
		return Placeholder()
	}
	if len(data) < 4 || string(data[0:4]) != magic {
		return Placeholder()
	}
	return data
}
