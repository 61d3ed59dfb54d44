package loopback

import (
	"sync"

	"github.com/Glimesh/ndiio/pkg/transport"
	"github.com/Glimesh/ndiio/pkg/types"
	"github.com/sirupsen/logrus"
)

type Receiver struct {
	lib   *Library
	opts  transport.ReceiverOptions
	store *transport.FrameStore
	meta  *transport.MetadataQueue
	log   logrus.FieldLogger

	mu     sync.Mutex
	desc   types.ConnectionDescriptor
	sender *Sender
	tally  types.Tally
	closed bool
}

func newReceiver(lib *Library, opts transport.ReceiverOptions) *Receiver {
	return &Receiver{
		lib:   lib,
		opts:  opts,
		store: transport.NewFrameStore(),
		meta:  transport.NewMetadataQueue(opts.Metadata),
		log:   lib.log.WithField("receiver", opts.Name),
	}
}

func (r *Receiver) Connect(desc types.ConnectionDescriptor) {
	r.mu.Lock()
	old := r.sender
	r.sender = nil
	r.desc = desc
	r.mu.Unlock()

	if old != nil {
		old.detach(r)
	}
	r.store.Reset()
	r.meta.Reset()
	if r.resolve() == nil && desc.IsValid() {
		r.log.WithField("source", desc.String()).Debug("Waiting for loopback source")
	}
}

// resolve attaches to the addressed sender once it has been published.
func (r *Receiver) resolve() *Sender {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sender != nil || r.closed || !r.desc.IsValid() {
		return r.sender
	}
	s := r.lib.lookup(r.desc)
	if s == nil {
		return nil
	}
	meta, ok := s.attach(r)
	if !ok {
		return nil
	}
	for _, m := range meta {
		r.meta.Push(m)
	}
	r.sender = s
	r.log.WithField("source", s.Name()).Debug("Attached to loopback source")
	return s
}

func (r *Receiver) senderGone(s *Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sender == s {
		r.sender = nil
		r.log.WithField("source", s.Name()).Debug("Loopback source went away")
	}
}

func (r *Receiver) deliverVideo(f *types.VideoFrame) {
	switch r.opts.Bandwidth {
	case types.BandwidthAudioOnly, types.BandwidthMetadataOnly:
		return
	}
	r.store.PushVideo(f)
}

func (r *Receiver) deliverAudio(f *types.AudioFrame) {
	if r.opts.Bandwidth == types.BandwidthMetadataOnly {
		return
	}
	r.store.PushAudio(f)
}

func (r *Receiver) currentTally() types.Tally {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tally
}

func (r *Receiver) NewFrameSync() transport.FrameSync {
	return &frameSync{r: r}
}

func (r *Receiver) CaptureMetadata() (*types.MetadataFrame, bool) {
	r.resolve()
	return r.meta.Pop()
}

func (r *Receiver) FreeMetadata(f *types.MetadataFrame) {}

func (r *Receiver) SendMetadata(f *types.MetadataFrame) bool {
	s := r.resolve()
	if s == nil || f == nil {
		return false
	}
	s.inbound.Push(cloneMetadata(f))
	return true
}

func (r *Receiver) SetTally(t types.Tally) bool {
	r.mu.Lock()
	r.tally = t
	s := r.sender
	r.mu.Unlock()

	if s == nil {
		return false
	}
	s.notifyTally()
	return true
}

func (r *Receiver) Performance() types.PerformanceCounters {
	perf := r.store.Performance()
	perf.MetadataFrames, perf.DroppedMetadataFrames = r.meta.Counters()
	return perf
}

func (r *Receiver) Connections() int {
	if r.resolve() == nil {
		return 0
	}
	return 1
}

func (r *Receiver) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	s := r.sender
	r.sender = nil
	r.mu.Unlock()

	if s != nil {
		s.detach(r)
	}
	r.store.Close()
	r.lib.removeReceiver(r)
	r.log.Debug("Loopback receiver closed")
	return nil
}

// frameSync resolves the source lazily so a receiver created before its
// sender starts capturing once the sender appears.
type frameSync struct {
	r *Receiver
}

func (f *frameSync) CaptureVideo(field types.FieldMode) (*types.VideoFrame, bool) {
	f.r.resolve()
	return f.r.store.CaptureVideo(field)
}

func (f *frameSync) FreeVideo(v *types.VideoFrame) {
	f.r.store.FreeVideo(v)
}

func (f *frameSync) AudioQueueDepth() int {
	f.r.resolve()
	return f.r.store.AudioQueueDepth()
}

func (f *frameSync) CaptureAudio(sampleRate, channels, samples int) *types.AudioFrame {
	return f.r.store.CaptureAudio(sampleRate, channels, samples)
}

func (f *frameSync) FreeAudio(a *types.AudioFrame) {
	f.r.store.FreeAudio(a)
}

func (f *frameSync) Close() {}
