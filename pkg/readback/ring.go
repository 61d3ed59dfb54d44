package readback

import (
	"image"

	"github.com/Glimesh/ndiio/pkg/gpu"
	"github.com/Glimesh/ndiio/pkg/types"
)

// AsyncSender is the part of a transport sender the ring drives. Sending a
// frame guarantees the frame sent before it has been consumed; a nil frame
// flushes the queue.
type AsyncSender interface {
	SendVideoAsync(frame *types.VideoFrame)
}

// Ring holds two slots. The current slot is resolved, mapped and sent;
// the previous slot is the frame the transport may still be reading.
type Ring struct {
	device  gpu.Device
	slots   [2]MappedTexture
	swapped bool
}

func NewRing(device gpu.Device) *Ring {
	return &Ring{device: device}
}

func (r *Ring) current() *MappedTexture {
	if r.swapped {
		return &r.slots[1]
	}
	return &r.slots[0]
}

func (r *Ring) previous() *MappedTexture {
	if r.swapped {
		return &r.slots[0]
	}
	return &r.slots[1]
}

func (r *Ring) swap() {
	r.swapped = !r.swapped
}

// Create (re)allocates both slots. Neither may be mapped.
func (r *Ring) Create(size image.Point) error {
	r.Destroy()
	if err := r.current().Create(r.device, size); err != nil {
		return err
	}
	if err := r.previous().Create(r.device, size); err != nil {
		r.current().Destroy()
		return err
	}
	return nil
}

// Destroy releases both slots. Neither may be mapped.
func (r *Ring) Destroy() {
	r.current().Destroy()
	r.previous().Destroy()
}

func (r *Ring) Created() bool {
	return r.current().Created()
}

func (r *Ring) Size() image.Point {
	return r.current().Size()
}

// Mapped reports how many slots currently have a CPU view.
func (r *Ring) Mapped() int {
	n := 0
	for i := range r.slots {
		if r.slots[i].Mapped() {
			n++
		}
	}
	return n
}

func (r *Ring) Resolve(src *gpu.Texture) {
	r.current().Resolve(src)
}

func (r *Ring) Map() (width, height int) {
	return r.current().Map()
}

// Send hands the mapped current slot to the transport, then unmaps the
// previous slot now that its frame is known to be consumed, and swaps.
func (r *Ring) Send(sender AsyncSender, frame *types.VideoFrame) {
	cur := r.current()
	frame.Data = cur.Data()
	frame.Metadata = cur.MetaData()

	sender.SendVideoAsync(frame)

	r.previous().Unmap()
	r.swap()
}

// Flush drains the transport queue and unmaps both slots.
func (r *Ring) Flush(sender AsyncSender) {
	sender.SendVideoAsync(nil)

	r.previous().Unmap()
	r.current().Unmap()
	r.swap()
}

// AddMetaData queues data to go out attached to the next sent frame.
func (r *Ring) AddMetaData(data string) {
	r.current().AddMetaData(data)
}
