package testpattern

import (
	"image"
	"image/color"

	"github.com/Glimesh/ndiio/pkg/gpu"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// 75% bars, left to right, as B, G, R.
var bars = [...][3]byte{
	{191, 191, 191},
	{0, 191, 191},
	{191, 191, 0},
	{0, 191, 0},
	{191, 0, 191},
	{0, 0, 191},
	{191, 0, 0},
}

// DrawBars fills tex with colour bars over the top two thirds and a grey
// ramp below. With alpha the ramp also fades alpha from 0 to 255.
func DrawBars(tex *gpu.Texture, alpha bool) {
	if tex.Width == 0 || tex.Height == 0 {
		return
	}
	split := tex.Height * 2 / 3

	for y := 0; y < tex.Height; y++ {
		for x := 0; x < tex.Width; x++ {
			px := tex.Texel(x, y)
			if y < split {
				bar := bars[x*len(bars)/tex.Width]
				px[0], px[1], px[2], px[3] = bar[0], bar[1], bar[2], 255
				continue
			}
			v := byte(x * 255 / max(tex.Width-1, 1))
			a := byte(255)
			if alpha {
				a = v
			}
			px[0], px[1], px[2], px[3] = v, v, v, a
		}
	}
}

// DrawText writes text in white from the top left corner, clipped to tex.
func DrawText(tex *gpu.Texture, text string) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  tex.View(),
		Src:  image.NewUniform(color.White),
		Face: face,
		Dot:  fixed.P(8, 8+face.Ascent),
	}
	d.DrawString(text)
}
