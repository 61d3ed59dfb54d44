package convert

import (
	"image"
	"math"

	"github.com/Glimesh/ndiio/pkg/gpu"
)

type pixel struct {
	r, g, b, a float64
}

func texel(src *gpu.Texture, x, y int) pixel {
	if x < 0 {
		x = 0
	} else if x >= src.Width {
		x = src.Width - 1
	}
	if y < 0 {
		y = 0
	} else if y >= src.Height {
		y = src.Height - 1
	}
	px := src.Texel(x, y)
	return pixel{
		r: float64(px[2]) / 255,
		g: float64(px[1]) / 255,
		b: float64(px[0]) / 255,
		a: float64(px[3]) / 255,
	}
}

func lerp(a, b pixel, t float64) pixel {
	return pixel{
		r: a.r + (b.r-a.r)*t,
		g: a.g + (b.g-a.g)*t,
		b: a.b + (b.b-a.b)*t,
		a: a.a + (b.a-a.a)*t,
	}
}

// sample reads src bilinearly at (u, v). Outside [0, 1] it returns
// transparent black, which draws the letterbox bars.
func sample(src *gpu.Texture, u, v float64) pixel {
	if src == nil || src.Width == 0 || src.Height == 0 {
		return pixel{}
	}
	if u < 0 || u > 1 || v < 0 || v > 1 {
		return pixel{}
	}
	fx := u*float64(src.Width) - 0.5
	fy := v*float64(src.Height) - 0.5
	x0, y0 := int(math.Floor(fx)), int(math.Floor(fy))
	tx, ty := fx-float64(x0), fy-float64(y0)

	top := lerp(texel(src, x0, y0), texel(src, x0+1, y0), tx)
	bottom := lerp(texel(src, x0, y0+1), texel(src, x0+1, y0+1), tx)
	return lerp(top, bottom, ty)
}

func (p Params) sampleAt(src *gpu.Texture, x, y float64, frame image.Point) pixel {
	u := (x/float64(frame.X))*p.UVScale.X + p.UVOffset.X
	v := (y/float64(frame.Y))*p.UVScale.Y + p.UVOffset.Y
	c := sample(src, u, v)
	c.r, c.g, c.b = p.Correction.apply(c.r, c.g, c.b)
	return c
}

func (p Params) alpha(a float64) byte {
	return unit(clamp01(a*p.AlphaScale + p.AlphaOffset))
}

// EncodeUYVY draws src into dst as packed 4:2:2. dst must be at least
// frame.X/2 texels wide and frame.Y rows high; each texel holds U Y0 V Y1.
func EncodeUYVY(dst, src *gpu.Texture, frame image.Point, p Params) {
	w, h := frame.X, frame.Y
	for y := 0; y < h; y++ {
		fy := float64(y) + 0.5
		for i := 0; i < w/2; i++ {
			c0 := p.sampleAt(src, float64(2*i)+0.5, fy, frame)
			c1 := p.sampleAt(src, float64(2*i)+1.5, fy, frame)

			y0, _, _ := rgbToYCbCr(c0.r, c0.g, c0.b)
			y1, _, _ := rgbToYCbCr(c1.r, c1.g, c1.b)
			_, cb, cr := rgbToYCbCr((c0.r+c1.r)/2, (c0.g+c1.g)/2, (c0.b+c1.b)/2)

			t := dst.Texel(i, y)
			t[0] = toByte(cb)
			t[1] = toByte(y0)
			t[2] = toByte(cr)
			t[3] = toByte(y1)
		}
	}
}

// EncodeUYVA draws the colour region like EncodeUYVY into the top
// frame.Y rows, then the even and odd alpha lines into the left and right
// halves of the frame.Y/2 rows below. In memory that is a UYVY plane
// followed by a frame.X wide alpha plane.
func EncodeUYVA(dst, src *gpu.Texture, frame image.Point, p Params) {
	EncodeUYVY(dst, src, frame, p)
	encodeAlphaLines(dst, src, frame, p, 0)
	encodeAlphaLines(dst, src, frame, p, 1)
}

func encodeAlphaLines(dst, src *gpu.Texture, frame image.Point, p Params, parity int) {
	w, h := frame.X, frame.Y
	for r := 0; r < h/2; r++ {
		y := 2*r + parity
		start := (h+r)*dst.Stride + parity*w
		if start+w > len(dst.Pix) {
			return
		}
		row := dst.Pix[start : start+w]
		fy := float64(y) + 0.5
		for x := 0; x < w; x++ {
			row[x] = p.alpha(p.sampleAt(src, float64(x)+0.5, fy, frame).a)
		}
	}
}

// ReadbackSize is the texture size holding a frame of the given size.
func ReadbackSize(frame image.Point, alpha bool) image.Point {
	size := image.Pt(frame.X/2, frame.Y)
	if alpha {
		size.Y += frame.Y / 2
	}
	return size
}
