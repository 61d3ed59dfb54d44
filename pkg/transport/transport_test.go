package transport

import (
	"testing"

	"github.com/Glimesh/ndiio/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ FrameSync = (*FrameStore)(nil)

func meta(s string) *types.MetadataFrame {
	return &types.MetadataFrame{Data: s}
}

func drain(q *MetadataQueue) []string {
	var out []string
	for {
		f, ok := q.Pop()
		if !ok {
			return out
		}
		out = append(out, f.Data)
	}
}

func TestMetadataQueueDropOldest(t *testing.T) {
	assert := assert.New(t)

	q := NewMetadataQueue(MetadataOptions{QueueSize: 2, Policy: DropOldest})
	assert.True(q.Push(meta("a")))
	assert.True(q.Push(meta("b")))
	assert.True(q.Push(meta("c")))
	assert.Equal([]string{"b", "c"}, drain(q))

	received, dropped := q.Counters()
	assert.Equal(int64(3), received)
	assert.Equal(int64(1), dropped)
}

func TestMetadataQueueDropNewest(t *testing.T) {
	assert := assert.New(t)

	q := NewMetadataQueue(MetadataOptions{QueueSize: 2, Policy: DropNewest})
	q.Push(meta("a"))
	q.Push(meta("b"))
	assert.False(q.Push(meta("c")))
	assert.Equal([]string{"a", "b"}, drain(q))
}

func TestMetadataQueueDefaultSize(t *testing.T) {
	q := NewMetadataQueue(MetadataOptions{})
	for i := 0; i < DefaultMetadataQueueSize+5; i++ {
		q.Push(meta("x"))
	}
	assert.Equal(t, DefaultMetadataQueueSize, q.Len())
}

func TestParseDropPolicy(t *testing.T) {
	assert := assert.New(t)

	p, err := ParseDropPolicy("drop_newest")
	assert.NoError(err)
	assert.Equal(DropNewest, p)
	assert.Equal("drop_newest", p.String())

	p, err = ParseDropPolicy("")
	assert.NoError(err)
	assert.Equal(DropOldest, p)

	_, err = ParseDropPolicy("random")
	assert.ErrorIs(err, ErrUnknownDropPolicy)
}

func TestFrameStoreVideoIsLatest(t *testing.T) {
	assert := assert.New(t)

	s := NewFrameStore()
	_, ok := s.CaptureVideo(types.FieldProgressive)
	assert.False(ok)

	s.PushVideo(&types.VideoFrame{Timestamp: 1})
	s.PushVideo(&types.VideoFrame{Timestamp: 2})

	f, ok := s.CaptureVideo(types.FieldProgressive)
	require.True(t, ok)
	assert.Equal(int64(2), f.Timestamp)

	again, ok := s.CaptureVideo(types.FieldProgressive)
	require.True(t, ok)
	assert.Equal(int64(2), again.Timestamp)

	perf := s.Performance()
	assert.Equal(int64(2), perf.VideoFrames)
	assert.Equal(int64(1), perf.DroppedVideoFrames)
}

func TestFrameStoreAudio(t *testing.T) {
	assert := assert.New(t)

	s := NewFrameStore()
	s.PushAudio(&types.AudioFrame{
		SampleRate:    48000,
		Channels:      2,
		Samples:       3,
		ChannelStride: 12,
		Data:          []float32{1, 2, 3, -1, -2, -3},
	})
	assert.Equal(3, s.AudioQueueDepth())

	f := s.CaptureAudio(0, 0, 2)
	assert.Equal(48000, f.SampleRate)
	assert.Equal(2, f.Channels)
	assert.Equal([]float32{1, 2}, f.Channel(0))
	assert.Equal([]float32{-1, -2}, f.Channel(1))
	assert.Equal(1, s.AudioQueueDepth())

	f = s.CaptureAudio(0, 0, 4)
	assert.Equal([]float32{3, 0, 0, 0}, f.Channel(0))
	assert.Equal(0, s.AudioQueueDepth())

	empty := s.CaptureAudio(0, 0, 0)
	assert.Equal(0, empty.Samples)
	assert.Nil(empty.Data)
}

func TestFrameStoreSilenceWithoutSource(t *testing.T) {
	assert := assert.New(t)

	s := NewFrameStore()
	f := s.CaptureAudio(44100, 1, 8)
	assert.Equal(44100, f.SampleRate)
	assert.Equal(1, f.Channels)
	assert.Equal(make([]float32, 8), f.Data)
}

func TestFrameStoreAudioBounded(t *testing.T) {
	s := NewFrameStore()
	block := &types.AudioFrame{SampleRate: 100, Channels: 1, Samples: 60, ChannelStride: 240, Data: make([]float32, 60)}
	s.PushAudio(block)
	s.PushAudio(block)

	assert.Equal(t, 100, s.AudioQueueDepth())
	assert.Equal(t, int64(1), s.Performance().DroppedAudioFrames)
}
