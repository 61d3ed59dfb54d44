package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnectionDescriptorValidity(t *testing.T) {
	assert := assert.New(t)

	assert.False(ConnectionDescriptor{}.IsValid())
	assert.False(ConnectionDescriptor{MachineName: "A"}.IsValid())
	assert.False(ConnectionDescriptor{StreamName: "Cam1"}.IsValid())
	assert.True(ConnectionDescriptor{SourceName: "A (Cam1)"}.IsValid())
	assert.True(ConnectionDescriptor{MachineName: "A", StreamName: "Cam1"}.IsValid())
	assert.True(ConnectionDescriptor{URL: "10.0.0.2:5961"}.IsValid())
}

func TestConnectionDescriptorName(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("A (Cam1)", ConnectionDescriptor{MachineName: "A", StreamName: "Cam1"}.Name())
	assert.Equal("Studio", ConnectionDescriptor{SourceName: "Studio", MachineName: "A", StreamName: "Cam1"}.Name())
	assert.Equal("", ConnectionDescriptor{}.Name())
}

func TestSplitSourceName(t *testing.T) {
	assert := assert.New(t)

	machine, stream, ok := SplitSourceName("A (Cam1)")
	assert.True(ok)
	assert.Equal("A", machine)
	assert.Equal("Cam1", stream)

	machine, stream, ok = SplitSourceName("HOST-1 (Studio B)")
	assert.True(ok)
	assert.Equal("HOST-1", machine)
	assert.Equal("Studio B", stream)

	_, _, ok = SplitSourceName("NoStream")
	assert.False(ok)
	_, _, ok = SplitSourceName("A ()")
	assert.False(ok)
}

func TestSameSourceDerivesIdentity(t *testing.T) {
	assert := assert.New(t)

	a := ConnectionDescriptor{SourceName: "A (Cam1)"}
	b := ConnectionDescriptor{MachineName: "A", StreamName: "Cam1"}
	assert.True(a.SameSource(b))
	assert.True(b.SameSource(a))
	assert.False(a.SameSource(ConnectionDescriptor{SourceName: "A (Cam2)"}))
	assert.False(a.SameSource(ConnectionDescriptor{SourceName: "A (Cam1)", URL: "10.0.0.2:5961"}))
}

func TestAddress(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("ndiio://A (Cam1)", ConnectionDescriptor{SourceName: "A (Cam1)"}.Address())
	assert.Equal("ndiio://10.0.0.2:5961", ConnectionDescriptor{URL: "10.0.0.2:5961"}.Address())
	assert.Equal("ndiio://", ConnectionDescriptor{}.Address())

	d, ok := ParseAddress("ndiio://A (Cam1)")
	assert.True(ok)
	assert.Equal("A", d.MachineName)
	assert.Equal("Cam1", d.StreamName)

	d, ok = ParseAddress("ndiio://10.0.0.2:5961")
	assert.True(ok)
	assert.Equal("10.0.0.2:5961", d.URL)

	_, ok = ParseAddress("rtmp://foo")
	assert.False(ok)
}

func TestParseBandwidth(t *testing.T) {
	assert := assert.New(t)

	for _, b := range []Bandwidth{BandwidthHighest, BandwidthLowest, BandwidthAudioOnly, BandwidthMetadataOnly} {
		parsed, err := ParseBandwidth(b.String())
		assert.NoError(err)
		assert.Equal(b, parsed)
	}
	_, err := ParseBandwidth("ultra")
	assert.ErrorIs(err, ErrUnknownBandwidth)
	assert.Contains(err.Error(), "ultra")
}

func TestVideoFrameValidate(t *testing.T) {
	valid := func(fourCC FourCC) *VideoFrame {
		f := &VideoFrame{Width: 4, Height: 2, Stride: 8, FourCC: fourCC, Data: make([]byte, 16)}
		if fourCC == FourCCUYVA {
			f.Data = make([]byte, 16+8)
		}
		return f
	}
	assert.NoError(t, valid(FourCCUYVY).Validate())
	assert.NoError(t, valid(FourCCUYVA).Validate())

	padded := valid(FourCCUYVY)
	padded.Stride = 12
	padded.Data = make([]byte, 24)
	assert.NoError(t, padded.Validate())

	for name, mutate := range map[string]func(f *VideoFrame){
		"zero width":    func(f *VideoFrame) { f.Width = 0 },
		"zero height":   func(f *VideoFrame) { f.Height = 0 },
		"negative":      func(f *VideoFrame) { f.Height = -2 },
		"odd width":     func(f *VideoFrame) { f.Width = 3 },
		"short stride":  func(f *VideoFrame) { f.Stride = 7 },
		"truncated":     func(f *VideoFrame) { f.Data = f.Data[:15] },
		"missing alpha": func(f *VideoFrame) { f.FourCC = FourCCUYVA },
		"unknown":       func(f *VideoFrame) { f.FourCC = FourCC(0x31323334) },
		"too wide":      func(f *VideoFrame) { f.Width, f.Stride = MaxFrameDimension+2, 2*MaxFrameDimension+4 },
		"too tall":      func(f *VideoFrame) { f.Height = MaxFrameDimension + 1 },
	} {
		f := valid(FourCCUYVY)
		mutate(f)
		assert.ErrorIs(t, f.Validate(), ErrInvalidFrame, name)
	}
}

func TestTimecodeFromTicks(t *testing.T) {
	assert := assert.New(t)

	rate := FrameRate{Num: 30, Den: 1}
	tc := TimecodeFromTicks(int64(3723)*TicksPerSecond+TicksPerSecond/2, rate)
	assert.Equal(Timecode{Hours: 1, Minutes: 2, Seconds: 3, Frames: 15}, tc)
	assert.Equal("01:02:03:15", tc.String())

	// rolls over at 24h
	assert.Equal(TimecodeFromTicks(5*TicksPerSecond, rate), TimecodeFromTicks(TicksPerDay+5*TicksPerSecond, rate))
}

func TestFourCC(t *testing.T) {
	assert.Equal(t, "UYVY", FourCCUYVY.String())
	assert.Equal(t, "UYVA", FourCCUYVA.String())
}
