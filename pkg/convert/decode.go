package convert

import (
	"image"

	"github.com/Glimesh/ndiio/pkg/gpu"
	"github.com/Glimesh/ndiio/pkg/types"
)

func (p Params) writePixel(px []byte, y, cb, cr float64, a byte) {
	r, g, b := yCbCrToRGB(y, cb, cr)
	r, g, b = p.Correction.apply(clamp01(r), clamp01(g), clamp01(b))
	px[0] = unit(b)
	px[1] = unit(g)
	px[2] = unit(r)
	if p.FlipAlpha {
		a = 255 - a
	}
	px[3] = a
}

// decodeRow writes one source row of w pixels into dst row dy. alpha is
// nil for UYVY, which decodes opaque.
func (p Params) decodeRow(dst *gpu.Texture, dy int, row, alpha []byte, w int) {
	for x := 0; x < w && x < dst.Width; x++ {
		t := row[(x/2)*4:]
		luma := t[1]
		if x&1 == 1 {
			luma = t[3]
		}
		a := byte(255)
		if alpha != nil {
			a = alpha[x]
		}
		p.writePixel(dst.Texel(x, dy), float64(luma), float64(t[0]), float64(t[2]), a)
	}
}

// DecodeUYVY unpacks a progressive UYVY frame into dst.
func DecodeUYVY(dst *gpu.Texture, data []byte, stride int, frame image.Point, p Params) {
	for y := 0; y < frame.Y && y < dst.Height; y++ {
		p.decodeRow(dst, y, data[y*stride:], nil, frame.X)
	}
}

// DecodeUYVA unpacks a progressive UYVA frame: the colour plane is
// followed by a frame.X wide alpha plane.
func DecodeUYVA(dst *gpu.Texture, data []byte, stride int, frame image.Point, p Params) {
	plane := data[frame.Y*stride:]
	for y := 0; y < frame.Y && y < dst.Height; y++ {
		p.decodeRow(dst, y, data[y*stride:], plane[y*frame.X:], frame.X)
	}
}

// FieldRow is the source row of a single field sampled for output row y
// of the doubled-height frame.
func FieldRow(y int, field types.FieldMode) int {
	if field == types.Field1 {
		if y < 1 {
			return 0
		}
		return (y - 1) / 2
	}
	return y / 2
}

// DecodeField unpacks one field of an interlaced frame into a dst twice
// the field height. Field 1 is sampled half a field line higher so the
// two fields line up when alternated.
func DecodeField(dst *gpu.Texture, data []byte, stride int, field image.Point, mode types.FieldMode, alpha bool, p Params) {
	var plane []byte
	if alpha {
		plane = data[field.Y*stride:]
	}
	for y := 0; y < 2*field.Y && y < dst.Height; y++ {
		sy := FieldRow(y, mode)
		var a []byte
		if plane != nil {
			a = plane[sy*field.X:]
		}
		p.decodeRow(dst, y, data[sy*stride:], a, field.X)
	}
}

// Decode picks the pass matching the frame format and field mode and
// returns a texture of the output size, or nil for a malformed frame.
func Decode(f *types.VideoFrame, p Params) *gpu.Texture {
	if f.Validate() != nil {
		return nil
	}
	size := image.Pt(f.Width, f.Height)
	alpha := f.FourCC == types.FourCCUYVA
	switch f.Field {
	case types.Field0, types.Field1:
		dst := gpu.NewTexture(f.Width, 2*f.Height)
		DecodeField(dst, f.Data, f.Stride, size, f.Field, alpha, p)
		return dst
	}
	dst := gpu.NewTexture(f.Width, f.Height)
	if alpha {
		DecodeUYVA(dst, f.Data, f.Stride, size, p)
	} else {
		DecodeUYVY(dst, f.Data, f.Stride, size, p)
	}
	return dst
}
