package control

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/Glimesh/ndiio/pkg/types"
	"github.com/sirupsen/logrus"
)

const (
	DefaultBroadcastName = "Unreal Engine"

	minFrameSize = 240
	maxFrameSize = 3840
)

// BroadcastConfiguration is the frame layout senders broadcast with.
type BroadcastConfiguration struct {
	FrameSize image.Point
	FrameRate types.FrameRate
}

func DefaultBroadcastConfiguration() BroadcastConfiguration {
	return BroadcastConfiguration{
		FrameSize: image.Pt(1920, 1080),
		FrameRate: types.FrameRate{Num: 60, Den: 1},
	}
}

// Clamped limits each frame dimension to 240..3840 and rounds it down to
// an even number of pixels.
func (c BroadcastConfiguration) Clamped() BroadcastConfiguration {
	c.FrameSize.X = clamp(c.FrameSize.X, minFrameSize, maxFrameSize) &^ 1
	c.FrameSize.Y = clamp(c.FrameSize.Y, minFrameSize, maxFrameSize) &^ 1
	if c.FrameRate.Num <= 0 || c.FrameRate.Den <= 0 {
		c.FrameRate = types.FrameRate{Num: 60, Den: 1}
	}
	return c
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// AudioBuffer is one block of the audio submix.
type AudioBuffer struct {
	Ticks int64
	types.InterleavedAudio
}

// ConnectionService fans the end-of-frame tick and the audio submix out
// to every subscribed sender.
type ConnectionService struct {
	mu        sync.Mutex
	started   bool
	name      string
	broadcast BroadcastConfiguration

	video Observers[func(ticks int64)]
	audio Observers[func(buf AudioBuffer)]

	now func() time.Time
	log logrus.FieldLogger
}

func NewConnectionService(name string, broadcast BroadcastConfiguration) *ConnectionService {
	if name == "" {
		name = DefaultBroadcastName
	}
	return &ConnectionService{
		name:      name,
		broadcast: broadcast.Clamped(),
		now:       time.Now,
		log:       logrus.StandardLogger(),
	}
}

func (s *ConnectionService) SetLogger(log logrus.FieldLogger) {
	s.log = log
}

// Start is idempotent.
func (s *ConnectionService) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.log.WithFields(logrus.Fields{
		"name":       s.name,
		"frame_size": s.broadcast.FrameSize,
		"frame_rate": s.broadcast.FrameRate,
	}).Info("Connection service started")
}

// Shutdown drops every subscription. Publishing afterwards does nothing.
func (s *ConnectionService) Shutdown() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	s.video.Clear()
	s.audio.Clear()
	s.log.Info("Connection service stopped")
}

func (s *ConnectionService) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

func (s *ConnectionService) BroadcastName() string {
	return s.name
}

func (s *ConnectionService) Broadcast() BroadcastConfiguration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.broadcast
}

func (s *ConnectionService) SubscribeVideo(fn func(ticks int64)) Handle {
	return s.video.Add(fn)
}

func (s *ConnectionService) SubscribeAudio(fn func(buf AudioBuffer)) Handle {
	return s.audio.Add(fn)
}

func (s *ConnectionService) Unsubscribe(h Handle) {
	if !s.video.Remove(h) {
		s.audio.Remove(h)
	}
}

// EndRenderFrame publishes the current time of day to the video
// subscribers.
func (s *ConnectionService) EndRenderFrame() {
	if !s.Started() {
		return
	}
	ticks := types.TicksOfDay(s.now())
	s.video.Each(func(fn func(int64)) { fn(ticks) })
}

// SubmitAudio publishes a submix buffer. Empty buffers are ignored.
func (s *ConnectionService) SubmitAudio(buf AudioBuffer) {
	if buf.Samples <= 0 || !s.Started() {
		return
	}
	if buf.Ticks == 0 {
		buf.Ticks = types.TicksOfDay(s.now())
	}
	s.audio.Each(func(fn func(AudioBuffer)) { fn(buf) })
}

// Run calls EndRenderFrame at the broadcast frame rate until ctx is done.
func (s *ConnectionService) Run(ctx context.Context) error {
	rate := s.Broadcast().FrameRate
	interval := time.Duration(float64(time.Second) / rate.Float64())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.EndRenderFrame()
		}
	}
}
