package ptz

import (
	"image"
	"math"
	"sync"

	"github.com/Glimesh/ndiio/pkg/gpu"
	"golang.org/x/image/draw"
)

// Full frame field of view. Narrower views crop into the source.
const wideFieldOfView = 90.0

// Camera is a digital PTZ head: it crops and scales a source texture to
// follow its pose. Pan and tilt move the crop across the margin left by
// zooming in, a quarter turn reaching the edge.
type Camera struct {
	mu     sync.Mutex
	state  State
	scaler draw.Scaler
}

var _ Controllable = (*Camera)(nil)

func NewCamera() *Camera {
	return &Camera{
		state:  State{FieldOfView: wideFieldOfView, FocusDistance: 0.5, AutoFocus: true},
		scaler: draw.ApproxBiLinear,
	}
}

func (c *Camera) PTZState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Camera) SetPTZState(st State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = st
}

// Crop is the part of a source of the given size the camera sees.
func (c *Camera) Crop(size image.Point) image.Rectangle {
	st := c.PTZState()

	zoom := 1.0
	if st.FieldOfView > 0 && st.FieldOfView < wideFieldOfView {
		zoom = math.Tan(radians(st.FieldOfView)/2) / math.Tan(radians(wideFieldOfView)/2)
	}
	w := int(math.Round(float64(size.X) * zoom))
	h := int(math.Round(float64(size.Y) * zoom))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	quarter := math.Pi / 2
	dx := clamp(st.Pan/quarter, -1, 1) * float64(size.X-w) / 2
	dy := -clamp(st.Tilt/quarter, -1, 1) * float64(size.Y-h) / 2

	x0 := (size.X-w)/2 + int(math.Round(dx))
	y0 := (size.Y-h)/2 + int(math.Round(dy))
	return image.Rect(x0, y0, x0+w, y0+h)
}

// Render scales the visible part of src over the whole of dst.
func (c *Camera) Render(dst, src *gpu.Texture) {
	if dst == nil || src == nil || src.Width == 0 || src.Height == 0 {
		return
	}
	crop := c.Crop(src.Size())
	if crop == src.View().Bounds() && dst.Size() == src.Size() {
		copy(dst.Pix, src.Pix)
		return
	}
	c.scaler.Scale(dst.View(), dst.View().Bounds(), src.View(), crop, draw.Src, nil)
}
