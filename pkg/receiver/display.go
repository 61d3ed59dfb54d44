package receiver

import (
	"image"

	"github.com/Glimesh/ndiio/pkg/convert"
	"github.com/Glimesh/ndiio/pkg/gpu"
	"github.com/Glimesh/ndiio/pkg/types"
)

func drawModeFor(frame *types.VideoFrame) (drawMode, bool) {
	switch frame.Field {
	case types.FieldProgressive:
		switch frame.FourCC {
		case types.FourCCUYVY:
			return drawProgressive, true
		case types.FourCCUYVA:
			return drawProgressiveAlpha, true
		}
	case types.Field0, types.Field1:
		switch frame.FourCC {
		case types.FourCCUYVY:
			return drawInterlaced, true
		case types.FourCCUYVA:
			return drawInterlacedAlpha, true
		}
	}
	return drawNone, false
}

// DisplayFrame converts frame into the receiver's BGRA render target and
// returns it. Unsupported format and field combinations, and frames whose
// buffer does not cover their declared size, return nil. The
// target is only rebuilt when the output size or draw mode changes.
func (r *Receiver) DisplayFrame(frame *types.VideoFrame) *gpu.Texture {
	if frame == nil || frame.Data == nil {
		return nil
	}
	mode, ok := drawModeFor(frame)
	if !ok {
		r.log.Debugf("Dropping %s %s frame", frame.FourCC, frame.Field)
		return nil
	}
	if err := frame.Validate(); err != nil {
		r.log.WithError(err).Debug("Dropping malformed frame")
		return nil
	}

	field := image.Pt(frame.Width, frame.Height)
	size := field
	if mode == drawInterlaced || mode == drawInterlacedAlpha {
		size.Y *= 2
	}

	r.renderMu.Lock()
	if r.frameSync == nil {
		r.renderMu.Unlock()
		return nil
	}
	changed := r.target == nil || r.target.Size() != size || r.mode != mode
	if changed {
		r.target = gpu.NewTexture(size.X, size.Y)
		r.mode = mode
	}
	target := r.target

	p := convert.ReceiveParams(r.opts.SRGBToLinear, r.opts.FlipAlpha)
	switch mode {
	case drawProgressive:
		convert.DecodeUYVY(target, frame.Data, frame.Stride, field, p)
	case drawProgressiveAlpha:
		convert.DecodeUYVA(target, frame.Data, frame.Stride, field, p)
	case drawInterlaced:
		convert.DecodeField(target, frame.Data, frame.Stride, field, frame.Field, false, p)
	case drawInterlacedAlpha:
		convert.DecodeField(target, frame.Data, frame.Stride, field, frame.Field, true, p)
	}
	r.renderMu.Unlock()

	if changed {
		r.log.WithField("size", size).Debug("Video format changed")
		r.onFormatChanged.Each(func(fn FormatChangedFunc) { fn(r, size) })
	}
	return target
}

// Snapshot copies the display texture as RGBA, or returns nil before the
// first frame.
func (r *Receiver) Snapshot() *image.RGBA {
	r.renderMu.Lock()
	defer r.renderMu.Unlock()
	if r.texture == nil {
		return nil
	}
	return r.texture.ToImage()
}
