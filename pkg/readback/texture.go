// Package readback double-buffers CPU readable copies of the sender's
// render target so the transport can send one frame asynchronously while
// the next one is being resolved.
package readback

import (
	"image"

	"github.com/Glimesh/ndiio/pkg/gpu"
)

// MappedTexture is one readback slot. Its bytes stay valid from Map until
// Unmap, which is what lets a frame be handed to an asynchronous send.
type MappedTexture struct {
	texture  gpu.ReadbackTexture
	data     []byte
	stride   int
	metadata []byte
}

// Create allocates the readback texture, releasing any previous one.
func (m *MappedTexture) Create(device gpu.Device, size image.Point) error {
	m.Destroy()

	tex, err := device.CreateReadbackTexture(size.X, size.Y)
	if err != nil {
		return err
	}
	m.texture = tex
	return nil
}

func (m *MappedTexture) Destroy() {
	if m.data != nil {
		panic("readback: destroy of a mapped texture")
	}
	if m.texture != nil {
		m.texture.Release()
		m.texture = nil
	}
	m.metadata = m.metadata[:0]
}

func (m *MappedTexture) Size() image.Point {
	if m.texture == nil {
		return image.Point{}
	}
	return m.texture.Size()
}

func (m *MappedTexture) Created() bool {
	return m.texture != nil
}

func (m *MappedTexture) Mapped() bool {
	return m.data != nil
}

// Resolve copies src into the slot. The slot must exist and be unmapped.
func (m *MappedTexture) Resolve(src *gpu.Texture) {
	if m.texture == nil {
		panic("readback: resolve into a texture that was not created")
	}
	if m.data != nil {
		panic("readback: resolve into a mapped texture")
	}
	m.texture.Resolve(src, image.Rect(0, 0, src.Width, src.Height))
}

// Map exposes the slot to the CPU and returns its size in texels.
func (m *MappedTexture) Map() (width, height int) {
	if m.texture == nil {
		panic("readback: map of a texture that was not created")
	}
	if m.data != nil {
		panic("readback: texture is already mapped")
	}
	m.data, m.stride = m.texture.Map()
	size := m.texture.Size()
	return size.X, size.Y
}

func (m *MappedTexture) Data() []byte {
	if m.data == nil {
		panic("readback: texture is not mapped")
	}
	return m.data
}

// Unmap releases the CPU view if there is one and clears pending metadata.
func (m *MappedTexture) Unmap() {
	if m.data != nil {
		m.texture.Unmap()
		m.data = nil
		m.stride = 0
	}
	m.metadata = m.metadata[:0]
}

func (m *MappedTexture) AddMetaData(data string) {
	m.metadata = append(m.metadata, data...)
}

func (m *MappedTexture) MetaData() string {
	return string(m.metadata)
}
