// Package gpu is the render surface used by the converters and the
// readback ring. Textures are BGRA8; the CPU device keeps them in host
// memory so resolve and map are plain copies.
package gpu

import (
	"fmt"
	"image"
)

const BytesPerTexel = 4

// Texture is a BGRA8 surface. Pix holds Height rows of Stride bytes.
type Texture struct {
	Width  int
	Height int
	Stride int
	Pix    []byte
}

func NewTexture(width, height int) *Texture {
	return &Texture{
		Width:  width,
		Height: height,
		Stride: width * BytesPerTexel,
		Pix:    make([]byte, width*height*BytesPerTexel),
	}
}

func (t *Texture) Size() image.Point {
	return image.Pt(t.Width, t.Height)
}

// Texel returns the 4 bytes at (x, y) in B, G, R, A order.
func (t *Texture) Texel(x, y int) []byte {
	i := y*t.Stride + x*BytesPerTexel
	return t.Pix[i : i+BytesPerTexel : i+BytesPerTexel]
}

// Resize reallocates the surface in place when the size differs, so
// holders of t see the new size. Contents are cleared.
func (t *Texture) Resize(width, height int) bool {
	if t.Width == width && t.Height == height {
		return false
	}
	*t = *NewTexture(width, height)
	return true
}

func (t *Texture) Clear() {
	for i := range t.Pix {
		t.Pix[i] = 0
	}
}

// View wraps the texel memory as an *image.RGBA without copying. Channels
// stay in BGRA order, which per-channel operations such as scaling do not
// care about.
func (t *Texture) View() *image.RGBA {
	return &image.RGBA{
		Pix:    t.Pix,
		Stride: t.Stride,
		Rect:   image.Rect(0, 0, t.Width, t.Height),
	}
}

// FromImage copies an image into a new BGRA texture.
func FromImage(img image.Image) *Texture {
	b := img.Bounds()
	t := NewTexture(b.Dx(), b.Dy())
	if rgba, ok := img.(*image.RGBA); ok {
		for y := 0; y < t.Height; y++ {
			src := rgba.Pix[y*rgba.Stride:]
			dst := t.Pix[y*t.Stride:]
			for x := 0; x < t.Width; x++ {
				dst[x*4+0] = src[x*4+2]
				dst[x*4+1] = src[x*4+1]
				dst[x*4+2] = src[x*4+0]
				dst[x*4+3] = src[x*4+3]
			}
		}
		return t
	}
	for y := 0; y < t.Height; y++ {
		for x := 0; x < t.Width; x++ {
			r, g, bl, a := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			px := t.Texel(x, y)
			px[0], px[1], px[2], px[3] = byte(bl>>8), byte(g>>8), byte(r>>8), byte(a>>8)
		}
	}
	return t
}

// ToImage copies the texture into an RGBA image.
func (t *Texture) ToImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, t.Width, t.Height))
	for y := 0; y < t.Height; y++ {
		src := t.Pix[y*t.Stride:]
		dst := img.Pix[y*img.Stride:]
		for x := 0; x < t.Width; x++ {
			dst[x*4+0] = src[x*4+2]
			dst[x*4+1] = src[x*4+1]
			dst[x*4+2] = src[x*4+0]
			dst[x*4+3] = src[x*4+3]
		}
	}
	return img
}

func (t *Texture) String() string {
	return fmt.Sprintf("texture(%dx%d)", t.Width, t.Height)
}
