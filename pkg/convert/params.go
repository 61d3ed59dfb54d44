package convert

import (
	"image"
	"math"
)

type Vec2 struct {
	X float64
	Y float64
}

// Params mirrors the shader parameter block shared by every pass.
type Params struct {
	UVOffset   Vec2
	UVScale    Vec2
	Correction ColorCorrection

	AlphaScale  float64
	AlphaOffset float64

	// FlipAlpha inverts decoded alpha for sources that treat it as
	// transparency rather than opacity.
	FlipAlpha bool
}

// DefaultParams samples the whole source without correction.
func DefaultParams() Params {
	return Params{
		UVScale:    Vec2{1, 1},
		AlphaScale: 1,
	}
}

// AlphaRemap maps [lo, hi] onto [0, 1].
func AlphaRemap(lo, hi float64) (scale, offset float64) {
	if r := hi - lo; r != 0 {
		return 1 / r, -lo / r
	}
	return 0, -lo
}

// FitRect keeps the aspect ratio of target inside frame by letterboxing
// or pillarboxing, returning the UV transform applied to frame UVs.
func FitRect(frame, target image.Point) (offset, scale Vec2) {
	if frame.X <= 0 || frame.Y <= 0 || target.X <= 0 || target.Y <= 0 {
		return Vec2{0, 0}, Vec2{1, 1}
	}

	frameRatio := float64(frame.X) / float64(frame.Y)
	targetRatio := float64(target.X) / float64(target.Y)

	fit := frame
	if targetRatio > frameRatio {
		fit.Y = int(math.Round(float64(frame.X) / targetRatio))
	} else if targetRatio < frameRatio {
		fit.X = int(math.Round(float64(frame.Y) * targetRatio))
	}

	uLeft := float64(fit.X-frame.X) / float64(2*fit.X)
	uRight := float64(fit.X+frame.X) / float64(2*fit.X)
	vTop := float64(fit.Y-frame.Y) / float64(2*fit.Y)
	vBottom := float64(fit.Y+frame.Y) / float64(2*fit.Y)

	return Vec2{uLeft, vTop}, Vec2{uRight - uLeft, vBottom - vTop}
}

// SendParams builds the parameters for drawing target into a frame.
func SendParams(frame, target image.Point, linearToSRGB bool, alphaMin, alphaMax float64) Params {
	p := DefaultParams()
	p.UVOffset, p.UVScale = FitRect(frame, target)
	if linearToSRGB {
		p.Correction = CorrectionLinearToSRGB
	}
	p.AlphaScale, p.AlphaOffset = AlphaRemap(alphaMin, alphaMax)
	return p
}

// ReceiveParams builds the parameters for decoding a received frame.
func ReceiveParams(sRGBToLinear, flipAlpha bool) Params {
	p := DefaultParams()
	if sRGBToLinear {
		p.Correction = CorrectionSRGBToLinear
	}
	p.FlipAlpha = flipAlpha
	return p
}
