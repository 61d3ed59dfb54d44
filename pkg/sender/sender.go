// Package sender publishes a render target, audio and metadata as a
// network source, paced by the connection service's frame events.
package sender

import (
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Glimesh/ndiio/pkg/control"
	"github.com/Glimesh/ndiio/pkg/convert"
	"github.com/Glimesh/ndiio/pkg/gpu"
	"github.com/Glimesh/ndiio/pkg/metadata"
	"github.com/Glimesh/ndiio/pkg/readback"
	"github.com/Glimesh/ndiio/pkg/transport"
	"github.com/Glimesh/ndiio/pkg/types"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const DefaultMaxMetadataPerTick = 32

// Size of the texture a sender draws from until it is given one.
var defaultTextureSize = image.Pt(352, 240)

type Options struct {
	Name string
	// Address is passed to network transports to listen on.
	Address string

	Broadcast control.BroadcastConfiguration

	OutputAlpha  bool
	AlphaMin     float64
	AlphaMax     float64
	LinearToSRGB bool
	EnablePTZ    bool
	DisableAudio bool

	MaxMetadataPerTick int
	Metadata           transport.MetadataOptions

	// Device allocates the readback ring. Defaults to a CPU device.
	Device gpu.Device
}

type (
	SenderFunc   func(s *Sender)
	MetadataFunc func(s *Sender, data string)
)

type Sender struct {
	id      uuid.UUID
	library transport.Library
	service *control.ConnectionService
	opts    Options
	log     logrus.FieldLogger

	renderMu sync.Mutex
	audioMu  sync.Mutex

	// guarded by renderMu and audioMu together
	sender transport.Sender

	// renderMu
	frameSize      image.Point
	frameRate      types.FrameRate
	frame          types.VideoFrame
	ring           *readback.Ring
	ringAlpha      bool
	target         *gpu.Texture
	texture        *gpu.Texture
	lastRenderTime types.Timecode
	sentVideo      bool
	alphaMin       float64
	alphaMax       float64
	linearToSRGB   bool
	ptz            bool

	changingSize atomic.Bool
	audioEnabled atomic.Bool

	videoHandle control.Handle
	audioHandle control.Handle

	onVideoPreSend     control.Observers[SenderFunc]
	onVideoSent        control.Observers[SenderFunc]
	onAudioPreSend     control.Observers[SenderFunc]
	onAudioSent        control.Observers[SenderFunc]
	onMetadataPreSend  control.Observers[SenderFunc]
	onMetadataSent     control.Observers[SenderFunc]
	onMetadataReceived control.Observers[MetadataFunc]
	onBroadcastChanged control.Observers[SenderFunc]
}

// New builds a sender. service may be nil, in which case the caller
// drives TrySendVideoFrame and TrySendAudioFrame itself.
func New(library transport.Library, service *control.ConnectionService, opts Options) *Sender {
	if opts.MaxMetadataPerTick <= 0 {
		opts.MaxMetadataPerTick = DefaultMaxMetadataPerTick
	}
	if opts.AlphaMin == 0 && opts.AlphaMax == 0 {
		opts.AlphaMax = 1
	}
	if opts.Device == nil {
		opts.Device = gpu.NewCPUDevice()
	}
	if opts.Broadcast.FrameSize == (image.Point{}) {
		if service != nil {
			opts.Broadcast = service.Broadcast()
		} else {
			opts.Broadcast = control.DefaultBroadcastConfiguration()
		}
	}

	s := &Sender{
		id:           uuid.New(),
		library:      library,
		service:      service,
		opts:         opts,
		log:          logrus.StandardLogger(),
		ring:         readback.NewRing(opts.Device),
		frameSize:    opts.Broadcast.FrameSize,
		frameRate:    opts.Broadcast.FrameRate,
		alphaMin:     opts.AlphaMin,
		alphaMax:     opts.AlphaMax,
		linearToSRGB: opts.LinearToSRGB,
		ptz:          opts.EnablePTZ,
	}
	s.audioEnabled.Store(!opts.DisableAudio)
	return s
}

func (s *Sender) SetLogger(log logrus.FieldLogger) {
	s.log = log.WithField("sender", s.id.String())
}

func (s *Sender) ID() uuid.UUID {
	return s.id
}

func (s *Sender) lockAll() {
	s.audioMu.Lock()
	s.renderMu.Lock()
}

func (s *Sender) unlockAll() {
	s.renderMu.Unlock()
	s.audioMu.Unlock()
}

// Initialize creates the transport sender and subscribes to the
// connection service. Calling it again is a no-op.
func (s *Sender) Initialize() error {
	s.lockAll()
	if s.sender != nil {
		s.unlockAll()
		return nil
	}
	if err := s.createSender(); err != nil {
		s.unlockAll()
		return err
	}
	if s.texture == nil {
		s.texture = gpu.NewTexture(defaultTextureSize.X, defaultTextureSize.Y)
	}
	size, rate := s.frameSize, s.frameRate
	s.sentVideo = false
	s.unlockAll()

	s.ChangeRenderTargetConfiguration(size, rate)

	if s.service != nil {
		s.videoHandle = s.service.SubscribeVideo(s.TrySendVideoFrame)
		s.audioHandle = s.service.SubscribeAudio(s.TrySendAudioFrame)
	}
	s.log.WithField("source", s.opts.Name).Info("Sender initialized")
	return nil
}

// createSender replaces the transport sender. Both locks must be held.
func (s *Sender) createSender() error {
	if s.sender != nil {
		if err := s.sender.Close(); err != nil {
			s.log.WithError(err).Warn("Closing transport sender")
		}
		s.sender = nil
	}

	snd, err := s.library.NewSender(transport.SenderOptions{
		Name:       s.opts.Name,
		Address:    s.opts.Address,
		ClockVideo: false,
		ClockAudio: false,
		Metadata:   s.opts.Metadata,
	})
	if err != nil {
		return errors.Wrapf(err, "could not create sender %q", s.opts.Name)
	}
	snd.AddConnectionMetadata(&types.MetadataFrame{Data: metadata.Capabilities(s.ptz)})
	s.sender = snd
	return nil
}

// Shutdown unsubscribes and releases the transport. It is safe to call
// more than once.
func (s *Sender) Shutdown() {
	if s.service != nil {
		s.service.Unsubscribe(s.videoHandle)
		s.service.Unsubscribe(s.audioHandle)
	}
	s.videoHandle = control.Handle{}
	s.audioHandle = control.Handle{}

	s.lockAll()
	defer s.unlockAll()
	if s.sender == nil {
		return
	}
	s.ring.Flush(s.sender)
	s.ring.Destroy()
	if err := s.sender.Close(); err != nil {
		s.log.WithError(err).Warn("Closing transport sender")
	}
	s.sender = nil
	s.target = nil
	s.log.Info("Sender shut down")
}

// ChangeSourceName republishes the sender under name.
func (s *Sender) ChangeSourceName(name string) error {
	s.lockAll()
	defer s.unlockAll()

	s.opts.Name = name
	if s.sender == nil {
		return nil
	}
	s.ring.Flush(s.sender)
	return s.createSender()
}

func (s *Sender) SourceName() string {
	s.renderMu.Lock()
	defer s.renderMu.Unlock()
	return s.opts.Name
}

// ChangeBroadcastConfiguration flushes in-flight frames and resizes the
// output. Sends are suspended while it runs.
func (s *Sender) ChangeBroadcastConfiguration(cfg control.BroadcastConfiguration) {
	cfg = cfg.Clamped()

	s.changingSize.Store(true)
	defer s.changingSize.Store(false)

	s.lockAll()
	if s.sender != nil {
		s.ring.Flush(s.sender)
	}
	s.unlockAll()

	s.ChangeRenderTargetConfiguration(cfg.FrameSize, cfg.FrameRate)
}

// ChangeRenderTargetConfiguration sets the outgoing frame format, rebuilds
// the readback ring and resizes the video texture to match.
// OnBroadcastConfigurationChanged observers run after the lock is
// released.
func (s *Sender) ChangeRenderTargetConfiguration(size image.Point, rate types.FrameRate) {
	// UYVY and its alpha plane pack pixel pairs
	size = image.Pt(size.X&^1, size.Y&^1)

	s.renderMu.Lock()
	s.frameSize = size
	s.frameRate = rate

	alpha := s.opts.OutputAlpha
	fourCC := types.FourCCUYVY
	if alpha {
		fourCC = types.FourCCUYVA
	}
	s.frame = types.VideoFrame{
		Width:     size.X,
		Height:    size.Y,
		Stride:    size.X * 2,
		FourCC:    fourCC,
		FrameRate: rate,
		Field:     types.FieldProgressive,
	}

	rb := convert.ReadbackSize(size, alpha)
	if s.sender != nil {
		s.ring.Flush(s.sender)
	}
	if err := s.ring.Create(rb); err != nil {
		s.log.WithError(err).WithField("size", size).Error("Could not create readback textures")
		s.target = nil
	} else {
		s.target = gpu.NewTexture(rb.X, rb.Y)
	}
	s.ringAlpha = alpha
	if s.texture != nil {
		s.texture.Resize(size.X, size.Y)
	}
	s.renderMu.Unlock()

	s.log.WithFields(logrus.Fields{
		"size": size,
		"rate": rate.String(),
	}).Debug("Broadcast configuration changed")
	s.onBroadcastChanged.Each(func(fn SenderFunc) { fn(s) })
}

// ChangeVideoTexture sets the texture frames are drawn from. nil stops
// video.
func (s *Sender) ChangeVideoTexture(tex *gpu.Texture) {
	s.renderMu.Lock()
	defer s.renderMu.Unlock()
	s.texture = tex
}

// UpdateVideoTexture runs draw against the video texture with the render
// lock held, so it never races a send.
func (s *Sender) UpdateVideoTexture(draw func(tex *gpu.Texture)) bool {
	s.renderMu.Lock()
	defer s.renderMu.Unlock()
	if s.texture == nil {
		return false
	}
	draw(s.texture)
	return true
}

// Snapshot copies the video texture as RGBA.
func (s *Sender) Snapshot() *image.RGBA {
	s.renderMu.Lock()
	defer s.renderMu.Unlock()
	if s.texture == nil {
		return nil
	}
	return s.texture.ToImage()
}

func (s *Sender) VideoTexture() *gpu.Texture {
	s.renderMu.Lock()
	defer s.renderMu.Unlock()
	return s.texture
}

func (s *Sender) ChangeAlphaRemap(lo, hi float64) {
	s.renderMu.Lock()
	defer s.renderMu.Unlock()
	s.alphaMin, s.alphaMax = lo, hi
}

func (s *Sender) PerformLinearTosRGBConversion(enabled bool) {
	s.renderMu.Lock()
	defer s.renderMu.Unlock()
	s.linearToSRGB = enabled
}

// EnablePTZ changes the capabilities announced to receivers that connect
// from now on.
func (s *Sender) EnablePTZ(enabled bool) {
	s.renderMu.Lock()
	defer s.renderMu.Unlock()
	if s.ptz == enabled {
		return
	}
	s.ptz = enabled
	if s.sender != nil {
		s.sender.ClearConnectionMetadata()
		s.sender.AddConnectionMetadata(&types.MetadataFrame{Data: metadata.Capabilities(enabled)})
	}
}

func (s *Sender) PTZEnabled() bool {
	s.renderMu.Lock()
	defer s.renderMu.Unlock()
	return s.ptz
}

func (s *Sender) EnableAudio(enabled bool) {
	s.audioEnabled.Store(enabled)
}

func (s *Sender) AudioEnabled() bool {
	return s.audioEnabled.Load()
}

// GetTallyInformation waits up to timeout for a tally change and returns
// the current state. A zero timeout polls.
func (s *Sender) GetTallyInformation(timeout time.Duration) (onPreview, onProgram bool) {
	snd := s.transport()
	if snd == nil {
		return false, false
	}
	t, _ := snd.Tally(timeout)
	return t.OnPreview, t.OnProgram
}

func (s *Sender) GetNumberOfConnections() int {
	snd := s.transport()
	if snd == nil {
		return 0
	}
	return snd.Connections()
}

func (s *Sender) transport() transport.Sender {
	s.renderMu.Lock()
	defer s.renderMu.Unlock()
	return s.sender
}

func (s *Sender) FrameSize() image.Point {
	s.renderMu.Lock()
	defer s.renderMu.Unlock()
	return s.frameSize
}

func (s *Sender) FrameRate() types.FrameRate {
	s.renderMu.Lock()
	defer s.renderMu.Unlock()
	return s.frameRate
}

// LastRenderTime is the timecode of the last frame sent.
func (s *Sender) LastRenderTime() types.Timecode {
	s.renderMu.Lock()
	defer s.renderMu.Unlock()
	return s.lastRenderTime
}

func (s *Sender) OnVideoPreSend(fn SenderFunc) control.Handle {
	return s.onVideoPreSend.Add(fn)
}

func (s *Sender) OnVideoSent(fn SenderFunc) control.Handle {
	return s.onVideoSent.Add(fn)
}

func (s *Sender) OnAudioPreSend(fn SenderFunc) control.Handle {
	return s.onAudioPreSend.Add(fn)
}

func (s *Sender) OnAudioSent(fn SenderFunc) control.Handle {
	return s.onAudioSent.Add(fn)
}

func (s *Sender) OnMetadataPreSend(fn SenderFunc) control.Handle {
	return s.onMetadataPreSend.Add(fn)
}

func (s *Sender) OnMetadataSent(fn SenderFunc) control.Handle {
	return s.onMetadataSent.Add(fn)
}

// OnMetadataReceived observers see metadata sent upstream by receivers.
func (s *Sender) OnMetadataReceived(fn MetadataFunc) control.Handle {
	return s.onMetadataReceived.Add(fn)
}

func (s *Sender) OnBroadcastConfigurationChanged(fn SenderFunc) control.Handle {
	return s.onBroadcastChanged.Add(fn)
}

func (s *Sender) RemoveObserver(h control.Handle) {
	_ = s.onVideoPreSend.Remove(h) ||
		s.onVideoSent.Remove(h) ||
		s.onAudioPreSend.Remove(h) ||
		s.onAudioSent.Remove(h) ||
		s.onMetadataPreSend.Remove(h) ||
		s.onMetadataSent.Remove(h) ||
		s.onMetadataReceived.Remove(h) ||
		s.onBroadcastChanged.Remove(h)
}
