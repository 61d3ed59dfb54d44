package rtp

import (
	"encoding/binary"
	"math"

	"github.com/Glimesh/ndiio/pkg/types"
)

// Payload types carried on a stream.
const (
	PayloadTypeVideo    uint8 = 96
	PayloadTypeAudio    uint8 = 97
	PayloadTypeMetadata uint8 = 98
)

// Every message starts with its own length so a reassembled message with a
// lost chunk is recognised and dropped.
const lengthPrefix = 4

const videoHeaderSize = 4*6 + 8*2 + 1 + 4

const audioHeaderSize = 4*3 + 8

func putLength(buf []byte) []byte {
	binary.BigEndian.PutUint32(buf, uint32(len(buf)-lengthPrefix))
	return buf
}

func checkLength(buf []byte) ([]byte, error) {
	if len(buf) < lengthPrefix {
		return nil, ErrShortPayload
	}
	n := binary.BigEndian.Uint32(buf)
	if int(n) != len(buf)-lengthPrefix {
		return nil, ErrShortPayload
	}
	return buf[lengthPrefix:], nil
}

func marshalVideo(f *types.VideoFrame) []byte {
	buf := make([]byte, lengthPrefix+videoHeaderSize+len(f.Metadata)+len(f.Data))
	b := buf[lengthPrefix:]
	binary.BigEndian.PutUint32(b[0:], uint32(f.Width))
	binary.BigEndian.PutUint32(b[4:], uint32(f.Height))
	binary.BigEndian.PutUint32(b[8:], uint32(f.Stride))
	binary.BigEndian.PutUint32(b[12:], uint32(f.FourCC))
	binary.BigEndian.PutUint32(b[16:], uint32(f.FrameRate.Num))
	binary.BigEndian.PutUint32(b[20:], uint32(f.FrameRate.Den))
	binary.BigEndian.PutUint64(b[24:], uint64(f.Timestamp))
	binary.BigEndian.PutUint64(b[32:], uint64(f.Timecode))
	b[40] = byte(f.Field)
	binary.BigEndian.PutUint32(b[41:], uint32(len(f.Metadata)))
	n := videoHeaderSize
	n += copy(b[n:], f.Metadata)
	copy(b[n:], f.Data)
	return putLength(buf)
}

func unmarshalVideo(buf []byte) (*types.VideoFrame, error) {
	b, err := checkLength(buf)
	if err != nil {
		return nil, err
	}
	if len(b) < videoHeaderSize {
		return nil, ErrShortPayload
	}
	f := &types.VideoFrame{
		Width:  int(binary.BigEndian.Uint32(b[0:])),
		Height: int(binary.BigEndian.Uint32(b[4:])),
		Stride: int(binary.BigEndian.Uint32(b[8:])),
		FourCC: types.FourCC(binary.BigEndian.Uint32(b[12:])),
		FrameRate: types.FrameRate{
			Num: int(binary.BigEndian.Uint32(b[16:])),
			Den: int(binary.BigEndian.Uint32(b[20:])),
		},
		Timestamp: int64(binary.BigEndian.Uint64(b[24:])),
		Timecode:  int64(binary.BigEndian.Uint64(b[32:])),
		Field:     types.FieldMode(b[40]),
	}
	metaLen := int(binary.BigEndian.Uint32(b[41:]))
	b = b[videoHeaderSize:]
	if metaLen > len(b) {
		return nil, ErrShortPayload
	}
	f.Metadata = string(b[:metaLen])
	f.Data = b[metaLen:]
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

func marshalAudio(f *types.AudioFrame) []byte {
	samples := f.Samples * f.Channels
	buf := make([]byte, lengthPrefix+audioHeaderSize+samples*4)
	b := buf[lengthPrefix:]
	binary.BigEndian.PutUint32(b[0:], uint32(f.SampleRate))
	binary.BigEndian.PutUint32(b[4:], uint32(f.Channels))
	binary.BigEndian.PutUint32(b[8:], uint32(f.Samples))
	binary.BigEndian.PutUint64(b[12:], uint64(f.Timecode))
	o := audioHeaderSize
	for c := 0; c < f.Channels; c++ {
		for _, v := range f.Channel(c) {
			binary.LittleEndian.PutUint32(b[o:], math.Float32bits(v))
			o += 4
		}
	}
	return putLength(buf)
}

func unmarshalAudio(buf []byte) (*types.AudioFrame, error) {
	b, err := checkLength(buf)
	if err != nil {
		return nil, err
	}
	if len(b) < audioHeaderSize {
		return nil, ErrShortPayload
	}
	f := &types.AudioFrame{
		SampleRate: int(binary.BigEndian.Uint32(b[0:])),
		Channels:   int(binary.BigEndian.Uint32(b[4:])),
		Samples:    int(binary.BigEndian.Uint32(b[8:])),
		Timecode:   int64(binary.BigEndian.Uint64(b[12:])),
	}
	b = b[audioHeaderSize:]
	n := f.Samples * f.Channels
	if n*4 != len(b) {
		return nil, ErrShortPayload
	}
	f.ChannelStride = f.Samples * 4
	f.Data = make([]float32, n)
	for i := range f.Data {
		f.Data[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return f, nil
}

func marshalMetadata(f *types.MetadataFrame) []byte {
	buf := make([]byte, lengthPrefix+8+len(f.Data))
	binary.BigEndian.PutUint64(buf[lengthPrefix:], uint64(f.Timecode))
	copy(buf[lengthPrefix+8:], f.Data)
	return putLength(buf)
}

func unmarshalMetadata(buf []byte) (*types.MetadataFrame, error) {
	b, err := checkLength(buf)
	if err != nil {
		return nil, err
	}
	if len(b) < 8 {
		return nil, ErrShortPayload
	}
	return &types.MetadataFrame{
		Timecode: int64(binary.BigEndian.Uint64(b)),
		Data:     string(b[8:]),
	}, nil
}
