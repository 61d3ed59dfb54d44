// Package convert implements the colour and pixel-format passes between
// BGRA render targets and the UYVY/UYVA layouts used on the wire.
package convert

import "math"

// BT.709 luma coefficients
const (
	kr = 0.2126
	kb = 0.0722
	kg = 1 - kr - kb
)

type ColorCorrection int

const (
	CorrectionNone ColorCorrection = iota
	CorrectionLinearToSRGB
	CorrectionSRGBToLinear
)

func linearToSRGB(c float64) float64 {
	if c <= 0.0031308 {
		return c * 12.92
	}
	return 1.055*math.Pow(c, 1/2.4) - 0.055
}

func sRGBToLinear(c float64) float64 {
	if c <= 0.04045 {
		return c / 12.92
	}
	return math.Pow((c+0.055)/1.055, 2.4)
}

func (cc ColorCorrection) apply(r, g, b float64) (float64, float64, float64) {
	switch cc {
	case CorrectionLinearToSRGB:
		return linearToSRGB(r), linearToSRGB(g), linearToSRGB(b)
	case CorrectionSRGBToLinear:
		return sRGBToLinear(r), sRGBToLinear(g), sRGBToLinear(b)
	}
	return r, g, b
}

// rgbToYCbCr maps normalised RGB to limited range 8-bit Y'CbCr.
func rgbToYCbCr(r, g, b float64) (y, cb, cr float64) {
	luma := kr*r + kg*g + kb*b
	y = 16 + 219*luma
	cb = 128 + 224*(b-luma)/(2*(1-kb))
	cr = 128 + 224*(r-luma)/(2*(1-kr))
	return y, cb, cr
}

// yCbCrToRGB is the inverse of rgbToYCbCr, returning normalised RGB.
func yCbCrToRGB(y, cb, cr float64) (r, g, b float64) {
	luma := (y - 16) / 219
	pb := (cb - 128) / 224
	pr := (cr - 128) / 224
	r = luma + 2*(1-kr)*pr
	b = luma + 2*(1-kb)*pb
	g = (luma - kr*r - kb*b) / kg
	return r, g, b
}

func toByte(v float64) byte {
	v = math.Round(v)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

func unit(v float64) byte {
	return toByte(v * 255)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
