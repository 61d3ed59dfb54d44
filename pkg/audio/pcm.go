// Package audio remaps channel layouts and converts between the planar
// float samples of the transport and interleaved PCM.
package audio

import (
	"encoding/binary"
	"math"

	"github.com/Glimesh/ndiio/pkg/types"
)

const (
	DefaultSampleRate = 48000
	DefaultChannels   = 1

	// silenceFrames is how many frames per channel are zero-filled when
	// nothing is queued upstream.
	silenceFrames = 128
)

func round(v float64) float64 {
	return math.Floor(v + 0.5)
}

func toInt16(v float64) int16 {
	s := round(v * math.MaxInt16)
	if s < math.MinInt16 {
		return math.MinInt16
	}
	if s > math.MaxInt16 {
		return math.MaxInt16
	}
	return int16(s)
}

func toInt32(v float64) int32 {
	s := round(v * math.MaxInt32)
	if s < math.MinInt32 {
		return math.MinInt32
	}
	if s > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(s)
}

// remix calls put with every output sample in interleaved order and
// returns how many were produced.
//
// Fewer output channels: the surplus source channels are added into every
// output channel and the sum divided by surplus+1. More output channels:
// shared channels are copied and the extra ones get the average of all
// source channels.
func remix(frame *types.AudioFrame, channels int, put func(i int, v float64)) int {
	if frame == nil || frame.Channels <= 0 || channels <= 0 {
		return 0
	}

	src := make([][]float32, frame.Channels)
	for c := range src {
		src[c] = frame.Channel(c)
	}

	switch {
	case channels == frame.Channels:
		for c := 0; c < channels; c++ {
			for s, v := range src[c] {
				put(s*channels+c, float64(v))
			}
		}

	case channels < frame.Channels:
		norm := float64(frame.Channels - channels + 1)
		for c := 0; c < channels; c++ {
			for s := 0; s < frame.Samples; s++ {
				v := float64(src[c][s])
				for e := channels; e < frame.Channels; e++ {
					v += float64(src[e][s])
				}
				put(s*channels+c, v/norm)
			}
		}

	default:
		for c := 0; c < frame.Channels; c++ {
			for s, v := range src[c] {
				put(s*channels+c, float64(v))
			}
		}
		for s := 0; s < frame.Samples; s++ {
			var sum float64
			for c := range src {
				sum += float64(src[c][s])
			}
			avg := sum / float64(frame.Channels)
			for c := frame.Channels; c < channels; c++ {
				put(s*channels+c, avg)
			}
		}
	}

	return frame.Samples * channels
}

// GeneratePCM writes frame into dst as interleaved little-endian signed
// 16-bit PCM with the given channel count. Samples that do not fit in dst
// are dropped. It returns the number of samples generated across all
// channels.
func GeneratePCM(dst []byte, frame *types.AudioFrame, channels int) int {
	return remix(frame, channels, func(i int, v float64) {
		if o := i * 2; o+2 <= len(dst) {
			binary.LittleEndian.PutUint16(dst[o:], uint16(toInt16(v)))
		}
	})
}

// GeneratePCM32 is GeneratePCM for signed 32-bit output.
func GeneratePCM32(dst []int32, frame *types.AudioFrame, channels int) int {
	return remix(frame, channels, func(i int, v float64) {
		if i < len(dst) {
			dst[i] = toInt32(v)
		}
	})
}

// Silence zero-fills up to silenceFrames frames of 16-bit PCM and returns
// the sample count written.
func Silence(dst []byte, channels, samplesNeeded int) int {
	n := silenceFrames * channels
	if samplesNeeded < n {
		n = samplesNeeded
	}
	if n*2 > len(dst) {
		n = len(dst) / 2
	}
	for i := 0; i < n*2; i++ {
		dst[i] = 0
	}
	return n
}

// ToPlanar converts an interleaved buffer into the transport's planar
// layout, one channel after another.
func ToPlanar(in *types.InterleavedAudio) *types.AudioFrame {
	out := &types.AudioFrame{
		SampleRate:    in.SampleRate,
		Channels:      in.Channels,
		Samples:       in.Samples,
		ChannelStride: in.Samples * 4,
		Timecode:      in.Timecode,
		Data:          make([]float32, in.Samples*in.Channels),
	}
	for s := 0; s < in.Samples; s++ {
		for c := 0; c < in.Channels; c++ {
			if i := s*in.Channels + c; i < len(in.Data) {
				out.Data[c*in.Samples+s] = in.Data[i]
			}
		}
	}
	return out
}

// Interleave is the inverse of ToPlanar.
func Interleave(frame *types.AudioFrame) *types.InterleavedAudio {
	out := &types.InterleavedAudio{
		SampleRate: frame.SampleRate,
		Channels:   frame.Channels,
		Samples:    frame.Samples,
		Timecode:   frame.Timecode,
		Data:       make([]float32, frame.Samples*frame.Channels),
	}
	for c := 0; c < frame.Channels; c++ {
		for s, v := range frame.Channel(c) {
			out.Data[s*frame.Channels+c] = v
		}
	}
	return out
}
