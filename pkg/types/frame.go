package types

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

type FourCC uint32

const (
	FourCCUYVY FourCC = 'U' | 'Y'<<8 | 'V'<<16 | 'Y'<<24
	FourCCUYVA FourCC = 'U' | 'Y'<<8 | 'V'<<16 | 'A'<<24
)

func (f FourCC) String() string {
	return string([]byte{byte(f), byte(f >> 8), byte(f >> 16), byte(f >> 24)})
}

type FieldMode int

const (
	FieldProgressive FieldMode = iota
	FieldInterleaved
	Field0
	Field1
)

func (m FieldMode) String() string {
	switch m {
	case FieldProgressive:
		return "progressive"
	case FieldInterleaved:
		return "interleaved"
	case Field0:
		return "field0"
	case Field1:
		return "field1"
	}
	return fmt.Sprintf("field(%d)", int(m))
}

type FrameRate struct {
	Num int
	Den int
}

func (r FrameRate) Float64() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

func (r FrameRate) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// TimestampUndefined marks a frame whose source did not stamp it
const TimestampUndefined int64 = math.MaxInt64

// VideoFrame is owned by the transport. Consumers must not keep it past
// the tick it was captured in.
type VideoFrame struct {
	Width  int
	Height int
	Stride int
	FourCC FourCC

	FrameRate FrameRate
	Timestamp int64
	Timecode  int64
	Field     FieldMode

	Metadata string
	Data     []byte
}

// MaxFrameDimension bounds the width and height of a received frame.
const MaxFrameDimension = 8192

// Validate checks the frame geometry against its buffer: a positive even
// width, a stride holding a full UYVY row, and enough data for every row
// plus the alpha plane of UYVA frames.
func (f *VideoFrame) Validate() error {
	switch {
	case f.Width <= 0 || f.Height <= 0:
		return errors.Wrapf(ErrInvalidFrame, "size %dx%d", f.Width, f.Height)
	case f.Width > MaxFrameDimension || f.Height > MaxFrameDimension:
		return errors.Wrapf(ErrInvalidFrame, "size %dx%d exceeds %d", f.Width, f.Height, MaxFrameDimension)
	case f.Width%2 != 0:
		return errors.Wrapf(ErrInvalidFrame, "odd width %d", f.Width)
	case f.Stride < 2*f.Width || f.Stride > 4*MaxFrameDimension:
		return errors.Wrapf(ErrInvalidFrame, "stride %d for width %d", f.Stride, f.Width)
	}

	need := f.Stride * f.Height
	switch f.FourCC {
	case FourCCUYVY:
	case FourCCUYVA:
		need += f.Width * f.Height
	default:
		return errors.Wrapf(ErrInvalidFrame, "format %s", f.FourCC)
	}
	if len(f.Data) < need {
		return errors.Wrapf(ErrInvalidFrame, "%d bytes, %s %dx%d needs %d", len(f.Data), f.FourCC, f.Width, f.Height, need)
	}
	return nil
}

// AudioFrame carries planar float samples; channel c starts at
// c*ChannelStride bytes.
type AudioFrame struct {
	SampleRate    int
	Channels      int
	Samples       int
	ChannelStride int
	Timecode      int64

	Data []float32
}

// Channel returns the samples of channel c.
func (f *AudioFrame) Channel(c int) []float32 {
	stride := f.ChannelStride / 4
	return f.Data[c*stride : c*stride+f.Samples]
}

type InterleavedAudio struct {
	SampleRate int
	Channels   int
	Samples    int
	Timecode   int64

	Data []float32
}

type MetadataFrame struct {
	Timecode int64
	Data     string
}
