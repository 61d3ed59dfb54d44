package transport

import (
	"sync"

	"github.com/Glimesh/ndiio/pkg/types"
)

// maxAudioSeconds bounds the audio queue of a FrameStore.
const maxAudioSeconds = 1

// FrameStore implements frame-sync semantics for a library: pushes from
// the network replace the latest video frame and append to a bounded
// audio queue, captures read whatever is there.
type FrameStore struct {
	mu sync.Mutex

	video    *types.VideoFrame
	captured bool

	sampleRate int
	channels   int
	audio      [][]float32

	counters types.PerformanceCounters
	closed   bool
}

func NewFrameStore() *FrameStore {
	return &FrameStore{}
}

// PushVideo makes f the latest frame. A frame replaced before anybody
// captured it counts as dropped.
func (s *FrameStore) PushVideo(f *types.VideoFrame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if s.video != nil && !s.captured {
		s.counters.DroppedVideoFrames++
	}
	s.counters.VideoFrames++
	s.video = f
	s.captured = false
}

// PushAudio appends a planar frame to the queue. A change of format
// restarts the queue; overflow drops the oldest samples.
func (s *FrameStore) PushAudio(f *types.AudioFrame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || f.Channels <= 0 || f.Samples <= 0 {
		return
	}
	s.counters.AudioFrames++

	if f.Channels != s.channels || f.SampleRate != s.sampleRate {
		if s.depth() > 0 {
			s.counters.DroppedAudioFrames++
		}
		s.channels = f.Channels
		s.sampleRate = f.SampleRate
		s.audio = make([][]float32, f.Channels)
	}

	for c := 0; c < f.Channels; c++ {
		s.audio[c] = append(s.audio[c], f.Channel(c)...)
	}

	limit := s.sampleRate * maxAudioSeconds
	if limit > 0 && s.depth() > limit {
		over := s.depth() - limit
		for c := range s.audio {
			s.audio[c] = append(s.audio[c][:0], s.audio[c][over:]...)
		}
		s.counters.DroppedAudioFrames++
	}
}

func (s *FrameStore) depth() int {
	if len(s.audio) == 0 {
		return 0
	}
	return len(s.audio[0])
}

// CaptureVideo returns the latest frame. The same frame is returned until a
// newer one arrives; callers detect repeats by timestamp.
func (s *FrameStore) CaptureVideo(field types.FieldMode) (*types.VideoFrame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.video == nil {
		return nil, false
	}
	s.captured = true
	f := *s.video
	return &f, true
}

func (s *FrameStore) FreeVideo(f *types.VideoFrame) {}

func (s *FrameStore) AudioQueueDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.depth()
}

// CaptureAudio takes up to samples frames per channel from the queue and
// pads the rest with silence. The source sample rate is reported as is.
func (s *FrameStore) CaptureAudio(sampleRate, channels, samples int) *types.AudioFrame {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sampleRate > 0 {
		sampleRate = s.sampleRate
	} else if sampleRate <= 0 {
		sampleRate = 48000
	}
	if s.channels > 0 {
		channels = s.channels
	} else if channels <= 0 {
		channels = 2
	}

	out := &types.AudioFrame{
		SampleRate:    sampleRate,
		Channels:      channels,
		Samples:       samples,
		ChannelStride: samples * 4,
	}
	if samples <= 0 {
		out.Samples = 0
		out.ChannelStride = 0
		return out
	}

	out.Data = make([]float32, samples*channels)
	n := s.depth()
	if n > samples {
		n = samples
	}
	for c := 0; c < channels && c < len(s.audio); c++ {
		copy(out.Data[c*samples:], s.audio[c][:n])
		s.audio[c] = s.audio[c][n:]
	}
	return out
}

func (s *FrameStore) FreeAudio(f *types.AudioFrame) {}

// Performance returns the running totals.
func (s *FrameStore) Performance() types.PerformanceCounters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters
}

// Reset forgets queued media but keeps the counters.
func (s *FrameStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.video = nil
	s.audio = nil
	s.channels = 0
	s.sampleRate = 0
}

func (s *FrameStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.video = nil
	s.audio = nil
}
