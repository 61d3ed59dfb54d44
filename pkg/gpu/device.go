package gpu

import (
	"image"
	"sync"

	"github.com/pkg/errors"
)

var ErrInvalidSize = errors.New("texture size must be positive")

// ReadbackTexture is a texture the CPU can map after a resolve.
type ReadbackTexture interface {
	Size() image.Point
	// Resolve copies rect of src into the texture at the origin.
	Resolve(src *Texture, rect image.Rectangle)
	// Map exposes the texture bytes. The slice is valid until Unmap.
	Map() (data []byte, stride int)
	Unmap()
	Release()
}

type Device interface {
	CreateReadbackTexture(width, height int) (ReadbackTexture, error)
}

// CPUDevice keeps every surface in host memory.
type CPUDevice struct {
	mu   sync.Mutex
	live int
}

func NewCPUDevice() *CPUDevice {
	return &CPUDevice{}
}

func (d *CPUDevice) CreateReadbackTexture(width, height int) (ReadbackTexture, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Wrapf(ErrInvalidSize, "readback %dx%d", width, height)
	}
	d.mu.Lock()
	d.live++
	d.mu.Unlock()
	return &cpuReadback{device: d, tex: NewTexture(width, height)}, nil
}

// Live returns the number of readback textures not yet released.
func (d *CPUDevice) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.live
}

type cpuReadback struct {
	device *CPUDevice
	tex    *Texture
}

func (r *cpuReadback) Size() image.Point {
	return r.tex.Size()
}

func (r *cpuReadback) Resolve(src *Texture, rect image.Rectangle) {
	rect = rect.Intersect(image.Rect(0, 0, src.Width, src.Height))
	if rect.Dx() > r.tex.Width {
		rect.Max.X = rect.Min.X + r.tex.Width
	}
	if rect.Dy() > r.tex.Height {
		rect.Max.Y = rect.Min.Y + r.tex.Height
	}
	n := rect.Dx() * BytesPerTexel
	for y := 0; y < rect.Dy(); y++ {
		s := (rect.Min.Y+y)*src.Stride + rect.Min.X*BytesPerTexel
		copy(r.tex.Pix[y*r.tex.Stride:y*r.tex.Stride+n], src.Pix[s:s+n])
	}
}

func (r *cpuReadback) Map() ([]byte, int) {
	return r.tex.Pix, r.tex.Stride
}

func (r *cpuReadback) Unmap() {}

func (r *cpuReadback) Release() {
	r.device.mu.Lock()
	r.device.live--
	r.device.mu.Unlock()
	r.tex = &Texture{}
}
