// Package receiver connects to a network source and pulls its video, audio
// and metadata on the host's render and game ticks.
package receiver

import (
	"image"
	"sync"
	"sync/atomic"

	"github.com/Glimesh/ndiio/pkg/audio"
	"github.com/Glimesh/ndiio/pkg/control"
	"github.com/Glimesh/ndiio/pkg/gpu"
	"github.com/Glimesh/ndiio/pkg/transport"
	"github.com/Glimesh/ndiio/pkg/types"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultMaxMetadataPerTick bounds DrainMetadata when Options leave it
// unset.
const DefaultMaxMetadataPerTick = 32

// Dispatcher runs connection events on the main context.
type Dispatcher interface {
	Post(fn func())
}

type Usage int

const (
	// UsageStandalone decodes every new video frame into the receiver's
	// own texture.
	UsageStandalone Usage = iota
	// UsageManual leaves drawing to whoever observes the video frames.
	UsageManual
)

type Options struct {
	// Name announced to the senders this receiver connects to
	Name string

	MaxMetadataPerTick int
	Metadata           transport.MetadataOptions

	// TimecodeFromSystem stamps frames with the local time of day instead
	// of the source timecode.
	TimecodeFromSystem bool

	SRGBToLinear bool
	FlipAlpha    bool
}

type (
	ConnectionFunc    func(r *Receiver)
	VideoFunc         func(r *Receiver, frame *types.VideoFrame)
	AudioFunc         func(r *Receiver, frame *types.AudioFrame)
	MetadataFunc      func(r *Receiver, data string, attached bool)
	FormatChangedFunc func(r *Receiver, size image.Point)
)

type drawMode int

const (
	drawNone drawMode = iota
	drawProgressive
	drawProgressiveAlpha
	drawInterlaced
	drawInterlacedAlpha
)

// Receiver is the connection state machine and capture scheduler for one
// source. Render state, audio state and metadata state each have their
// own lock; the transport handles are only replaced while all three are
// held.
type Receiver struct {
	id         uuid.UUID
	library    transport.Library
	dispatcher Dispatcher
	opts       Options
	log        logrus.FieldLogger

	renderMu   sync.Mutex
	audioMu    sync.Mutex
	metadataMu sync.Mutex
	connMu     sync.Mutex

	// guarded by renderMu, audioMu and metadataMu together
	initialized bool
	desc        types.ConnectionDescriptor
	recv        transport.Receiver
	frameSync   transport.FrameSync

	connected atomic.Bool

	// renderMu
	usage         Usage
	frameRate     types.FrameRate
	resolution    image.Point
	timecode      types.Timecode
	performance   types.PerformanceCounters
	lastTimestamp int64
	lastField     types.FieldMode
	target        *gpu.Texture
	mode          drawMode
	texture       *gpu.Texture
	displayHandle control.Handle

	// audioMu
	consumers []audio.Consumer

	onConnected     control.Observers[ConnectionFunc]
	onDisconnected  control.Observers[ConnectionFunc]
	onVideo         control.Observers[VideoFunc]
	onAudio         control.Observers[AudioFunc]
	onMetadata      control.Observers[MetadataFunc]
	onFormatChanged control.Observers[FormatChangedFunc]
}

func New(library transport.Library, dispatcher Dispatcher, opts Options) *Receiver {
	if opts.MaxMetadataPerTick <= 0 {
		opts.MaxMetadataPerTick = DefaultMaxMetadataPerTick
	}
	r := &Receiver{
		id:         uuid.New(),
		library:    library,
		dispatcher: dispatcher,
		opts:       opts,
		log:        logrus.StandardLogger(),
	}
	r.resetRenderState()
	return r
}

func (r *Receiver) SetLogger(log logrus.FieldLogger) {
	r.log = log.WithField("receiver", r.id.String())
}

func (r *Receiver) ID() uuid.UUID {
	return r.id
}

func (r *Receiver) lockAll() {
	r.renderMu.Lock()
	r.audioMu.Lock()
	r.metadataMu.Lock()
}

func (r *Receiver) unlockAll() {
	r.metadataMu.Unlock()
	r.audioMu.Unlock()
	r.renderMu.Unlock()
}

// Initialize is idempotent. It connects to desc when desc is valid.
func (r *Receiver) Initialize(desc types.ConnectionDescriptor, usage Usage) bool {
	r.lockAll()
	if r.initialized {
		r.unlockAll()
		return false
	}
	r.initialized = true
	r.usage = usage
	r.unlockAll()

	if usage == UsageStandalone {
		r.displayHandle = r.OnVideo(func(r *Receiver, frame *types.VideoFrame) {
			if tex := r.DisplayFrame(frame); tex != nil {
				r.renderMu.Lock()
				r.texture = tex
				r.renderMu.Unlock()
			}
		})
	}

	if desc.IsValid() {
		r.ChangeConnection(desc)
	}
	return true
}

// ChangeConnection replaces the descriptor. The transport connection is
// rebuilt only when the source identity or bandwidth changed, or when
// there is none yet; an invalid descriptor disconnects.
func (r *Receiver) ChangeConnection(desc types.ConnectionDescriptor) {
	r.lockAll()
	defer r.unlockAll()

	if !r.initialized || r.desc == desc {
		return
	}

	sourceChanged := !r.desc.SameSource(desc)
	bandwidthChanged := r.desc.Bandwidth != desc.Bandwidth

	r.desc = desc

	if !desc.IsValid() {
		r.stopConnection()
		r.setConnected(false)
		return
	}
	if sourceChanged || bandwidthChanged || r.recv == nil || r.frameSync == nil {
		// Connected drops back to Connecting until the new link delivers
		r.setConnected(false)
		r.startConnection()
	}
}

// StartConnection reconnects to the current descriptor.
func (r *Receiver) StartConnection() {
	r.lockAll()
	defer r.unlockAll()
	r.startConnection()
}

// StopConnection is idempotent.
func (r *Receiver) StopConnection() {
	r.lockAll()
	defer r.unlockAll()
	r.stopConnection()
}

func (r *Receiver) startConnection() {
	if !r.desc.IsValid() {
		return
	}
	r.stopConnection()

	recv, err := r.library.NewReceiver(transport.ReceiverOptions{
		Name:      r.opts.Name,
		Bandwidth: r.desc.Bandwidth,
		Metadata:  r.opts.Metadata,
	})
	if err != nil {
		r.log.WithError(err).Error("Could not create transport receiver")
		return
	}
	recv.Connect(r.desc)

	r.recv = recv
	r.frameSync = recv.NewFrameSync()
	r.lastTimestamp = types.TimestampUndefined
	r.log.WithField("source", r.desc.String()).Info("Connecting")
}

func (r *Receiver) stopConnection() {
	if r.frameSync != nil {
		r.frameSync.Close()
		r.frameSync = nil
	}
	if r.recv != nil {
		if err := r.recv.Close(); err != nil {
			r.log.WithError(err).Warn("Closing transport receiver")
		}
		r.recv = nil
	}
}

func (r *Receiver) resetRenderState() {
	r.frameRate = types.FrameRate{Num: 60, Den: 1}
	r.resolution = image.Point{}
	r.timecode = types.Timecode{}
	r.performance = types.PerformanceCounters{}
	r.lastTimestamp = types.TimestampUndefined
	r.lastField = types.FieldProgressive
}

// Shutdown releases the transport and detaches every audio consumer. It
// is safe to call more than once.
func (r *Receiver) Shutdown() {
	r.onVideo.Remove(r.displayHandle)
	r.displayHandle = control.Handle{}

	r.audioMu.Lock()
	consumers := r.consumers
	r.consumers = nil
	r.audioMu.Unlock()

	for i := len(consumers) - 1; i >= 0; i-- {
		consumers[i].SetConnectionSource(nil)
	}

	r.lockAll()
	r.stopConnection()
	r.initialized = false
	r.desc = types.ConnectionDescriptor{}
	r.resetRenderState()
	r.target = nil
	r.texture = nil
	r.mode = drawNone
	r.unlockAll()

	r.setConnected(false)
}

func (r *Receiver) Descriptor() types.ConnectionDescriptor {
	r.metadataMu.Lock()
	defer r.metadataMu.Unlock()
	return r.desc
}

// Address renders the current source as a ndiio:// URL, or "" when there
// is none.
func (r *Receiver) Address() string {
	desc := r.Descriptor()
	if !desc.IsValid() {
		return ""
	}
	return desc.Address()
}

// Connected reports the last connection edge seen by the capture paths.
func (r *Receiver) Connected() bool {
	return r.connected.Load()
}

// Connections polls the transport for the number of live connections.
func (r *Receiver) Connections() int {
	r.metadataMu.Lock()
	defer r.metadataMu.Unlock()
	if r.recv == nil {
		return 0
	}
	return r.recv.Connections()
}

func (r *Receiver) FrameRate() types.FrameRate {
	r.renderMu.Lock()
	defer r.renderMu.Unlock()
	return r.frameRate
}

func (r *Receiver) Resolution() image.Point {
	r.renderMu.Lock()
	defer r.renderMu.Unlock()
	return r.resolution
}

func (r *Receiver) Timecode() types.Timecode {
	r.renderMu.Lock()
	defer r.renderMu.Unlock()
	return r.timecode
}

func (r *Receiver) Performance() types.PerformanceCounters {
	r.renderMu.Lock()
	defer r.renderMu.Unlock()
	return r.performance
}

// Texture is the last frame drawn by a standalone receiver.
func (r *Receiver) Texture() *gpu.Texture {
	r.renderMu.Lock()
	defer r.renderMu.Unlock()
	return r.texture
}

func (r *Receiver) OnConnected(fn ConnectionFunc) control.Handle {
	return r.onConnected.Add(fn)
}

func (r *Receiver) OnDisconnected(fn ConnectionFunc) control.Handle {
	return r.onDisconnected.Add(fn)
}

// OnVideo observers run inline on the render tick for every new frame.
func (r *Receiver) OnVideo(fn VideoFunc) control.Handle {
	return r.onVideo.Add(fn)
}

// OnAudio observers run inline on the game tick.
func (r *Receiver) OnAudio(fn AudioFunc) control.Handle {
	return r.onAudio.Add(fn)
}

func (r *Receiver) OnMetadata(fn MetadataFunc) control.Handle {
	return r.onMetadata.Add(fn)
}

func (r *Receiver) OnVideoFormatChanged(fn FormatChangedFunc) control.Handle {
	return r.onFormatChanged.Add(fn)
}

// RemoveObserver unregisters h from whichever list holds it.
func (r *Receiver) RemoveObserver(h control.Handle) {
	_ = r.onConnected.Remove(h) ||
		r.onDisconnected.Remove(h) ||
		r.onVideo.Remove(h) ||
		r.onAudio.Remove(h) ||
		r.onMetadata.Remove(h) ||
		r.onFormatChanged.Remove(h)
}

// setConnected fires Connected or Disconnected once per edge, on the
// dispatcher.
func (r *Receiver) setConnected(connected bool) {
	if r.connected.Load() == connected {
		return
	}
	r.connMu.Lock()
	defer r.connMu.Unlock()
	if r.connected.Load() == connected {
		return
	}
	r.connected.Store(connected)

	list := &r.onDisconnected
	if connected {
		list = &r.onConnected
		r.log.Info("Connected")
	} else {
		r.log.Info("Disconnected")
	}
	if list.Len() == 0 {
		return
	}
	r.dispatcher.Post(func() {
		list.Each(func(fn ConnectionFunc) { fn(r) })
	})
}
