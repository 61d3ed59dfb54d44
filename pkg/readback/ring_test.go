package readback

import (
	"bytes"
	"image"
	"testing"

	"github.com/Glimesh/ndiio/pkg/gpu"
	"github.com/Glimesh/ndiio/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	ring   *Ring
	frames []*types.VideoFrame
	mapped []int
}

func (s *recordingSender) SendVideoAsync(frame *types.VideoFrame) {
	if frame != nil {
		f := *frame
		f.Data = append([]byte(nil), frame.Data...)
		s.frames = append(s.frames, &f)
	} else {
		s.frames = append(s.frames, nil)
	}
	s.mapped = append(s.mapped, s.ring.Mapped())
}

func TestRingCycles(t *testing.T) {
	assert := assert.New(t)

	device := gpu.NewCPUDevice()
	ring := NewRing(device)
	require.NoError(t, ring.Create(image.Pt(4, 2)))
	assert.Equal(2, device.Live())
	assert.Equal(image.Pt(4, 2), ring.Size())

	sender := &recordingSender{ring: ring}
	src := gpu.NewTexture(4, 2)

	for i := 0; i < 10; i++ {
		src.Pix[0] = byte(i)
		ring.Resolve(src)
		w, h := ring.Map()
		assert.Equal(4, w)
		assert.Equal(2, h)

		ring.Send(sender, &types.VideoFrame{Width: 8, Height: 2, Stride: 16})
		assert.Equal(1, ring.Mapped(), "cycle %d", i)
	}

	for i, f := range sender.frames {
		assert.Equal(byte(i), f.Data[0])
	}

	ring.Flush(sender)
	assert.Nil(sender.frames[len(sender.frames)-1])
	assert.Equal(0, ring.Mapped())

	// later sends overlap the frame sent before them
	want := []int{1, 2, 2, 2, 2, 2, 2, 2, 2, 2, 1}
	assert.Equal(want, sender.mapped)

	assert.NotPanics(ring.Destroy)
	assert.Equal(0, device.Live())
}

// inFlightSender keeps the frame bytes it was given, the way a transport
// reading them asynchronously would.
type inFlightSender struct {
	ring   *Ring
	held   [][]byte
	want   [][]byte
	intact []bool
	mapped []int
}

func (s *inFlightSender) SendVideoAsync(frame *types.VideoFrame) {
	if n := len(s.held); n > 0 {
		s.intact = append(s.intact, bytes.Equal(s.held[n-1], s.want[n-1]))
	}
	s.mapped = append(s.mapped, s.ring.Mapped())
	if frame != nil {
		s.held = append(s.held, frame.Data)
		s.want = append(s.want, append([]byte(nil), frame.Data...))
	}
}

func TestRingKeepsFrameMappedUntilNextSend(t *testing.T) {
	assert := assert.New(t)

	ring := NewRing(gpu.NewCPUDevice())
	require.NoError(t, ring.Create(image.Pt(4, 2)))
	sender := &inFlightSender{ring: ring}
	src := gpu.NewTexture(4, 2)

	for i := 0; i < 5; i++ {
		for j := range src.Pix {
			src.Pix[j] = byte(i + 1)
		}
		ring.Resolve(src)
		ring.Map()
		ring.Send(sender, &types.VideoFrame{Width: 8, Height: 2, Stride: 16})

		// the frame just sent is still mapped and untouched
		assert.Equal(1, ring.Mapped(), "send %d", i)
		assert.Equal(sender.want[i], sender.held[i], "send %d", i)
	}

	ring.Flush(sender)
	assert.Equal(0, ring.Mapped())

	assert.Equal([]int{1, 2, 2, 2, 2, 1}, sender.mapped)
	require.Len(t, sender.intact, 5)
	for i, ok := range sender.intact {
		assert.True(ok, "frame %d changed before the next send", i)
	}
	for i, want := range sender.want {
		assert.Equal(byte(i+1), want[0])
	}
}

func TestRingAttachedMetadata(t *testing.T) {
	assert := assert.New(t)

	ring := NewRing(gpu.NewCPUDevice())
	require.NoError(t, ring.Create(image.Pt(2, 2)))
	sender := &recordingSender{ring: ring}
	src := gpu.NewTexture(2, 2)

	ring.AddMetaData(`<a/>`)
	ring.AddMetaData(`<b/>`)
	ring.Resolve(src)
	ring.Map()
	ring.Send(sender, &types.VideoFrame{})

	ring.Resolve(src)
	ring.Map()
	ring.Send(sender, &types.VideoFrame{})

	assert.Equal(`<a/><b/>`, sender.frames[0].Metadata)
	assert.Equal("", sender.frames[1].Metadata)
}

func TestRingMisuse(t *testing.T) {
	assert := assert.New(t)

	ring := NewRing(gpu.NewCPUDevice())
	src := gpu.NewTexture(2, 2)
	assert.Panics(func() { ring.Resolve(src) })

	require.NoError(t, ring.Create(image.Pt(2, 2)))
	ring.Resolve(src)
	ring.Map()

	assert.Panics(func() { ring.Map() })
	assert.Panics(func() { ring.Resolve(src) })
	assert.Panics(ring.Destroy)
	assert.Panics(func() { _ = ring.Create(image.Pt(4, 4)) })

	ring.Flush(&recordingSender{ring: ring})
	assert.NotPanics(ring.Destroy)
}

func TestRingCreateInvalidSize(t *testing.T) {
	ring := NewRing(gpu.NewCPUDevice())
	assert.ErrorIs(t, ring.Create(image.Pt(0, 4)), gpu.ErrInvalidSize)
	assert.False(t, ring.Created())
}
