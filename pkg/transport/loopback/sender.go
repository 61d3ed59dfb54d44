package loopback

import (
	"sync"
	"time"

	"github.com/Glimesh/ndiio/pkg/transport"
	"github.com/Glimesh/ndiio/pkg/types"
	"github.com/sirupsen/logrus"
)

type Sender struct {
	lib  *Library
	name string
	opts transport.SenderOptions
	log  logrus.FieldLogger

	mu        sync.Mutex
	receivers map[*Receiver]struct{}
	connMeta  []*types.MetadataFrame
	closed    bool

	inbound      *transport.MetadataQueue
	tallyChanged chan struct{}
}

func newSender(lib *Library, name string, opts transport.SenderOptions) *Sender {
	return &Sender{
		lib:          lib,
		name:         name,
		opts:         opts,
		log:          lib.log.WithField("source", name),
		receivers:    make(map[*Receiver]struct{}),
		inbound:      transport.NewMetadataQueue(opts.Metadata),
		tallyChanged: make(chan struct{}, 1),
	}
}

func (s *Sender) Name() string {
	return s.name
}

// attach connects r and returns the connection metadata it should see.
func (s *Sender) attach(r *Receiver) ([]*types.MetadataFrame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, false
	}
	s.receivers[r] = struct{}{}
	s.log.WithField("connections", len(s.receivers)).Debug("Receiver attached")
	meta := make([]*types.MetadataFrame, len(s.connMeta))
	for i, m := range s.connMeta {
		meta[i] = cloneMetadata(m)
	}
	return meta, true
}

func (s *Sender) detach(r *Receiver) {
	s.mu.Lock()
	delete(s.receivers, r)
	n := len(s.receivers)
	s.mu.Unlock()
	s.log.WithField("connections", n).Debug("Receiver detached")
	s.notifyTally()
}

func (s *Sender) targets() []*Receiver {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Receiver, 0, len(s.receivers))
	for r := range s.receivers {
		out = append(out, r)
	}
	return out
}

// SendVideoAsync copies the frame out before returning, so the caller's
// buffer is released as soon as the call ends.
func (s *Sender) SendVideoAsync(frame *types.VideoFrame) {
	if frame == nil {
		return
	}
	f := cloneVideo(frame)
	for _, r := range s.targets() {
		r.deliverVideo(f)
	}
}

func (s *Sender) SendAudio(frame *types.AudioFrame) {
	if frame == nil {
		return
	}
	f := cloneAudio(frame)
	for _, r := range s.targets() {
		r.deliverAudio(f)
	}
}

func (s *Sender) SendMetadata(frame *types.MetadataFrame) {
	if frame == nil {
		return
	}
	for _, r := range s.targets() {
		r.meta.Push(cloneMetadata(frame))
	}
}

func (s *Sender) CaptureMetadata() (*types.MetadataFrame, bool) {
	return s.inbound.Pop()
}

func (s *Sender) FreeMetadata(f *types.MetadataFrame) {}

func (s *Sender) AddConnectionMetadata(f *types.MetadataFrame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connMeta = append(s.connMeta, cloneMetadata(f))
}

func (s *Sender) ClearConnectionMetadata() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connMeta = nil
}

func (s *Sender) notifyTally() {
	select {
	case s.tallyChanged <- struct{}{}:
	default:
	}
}

// Tally merges the tally of every connected receiver.
func (s *Sender) Tally(timeout time.Duration) (types.Tally, bool) {
	changed := false
	if timeout <= 0 {
		select {
		case <-s.tallyChanged:
			changed = true
		default:
		}
	} else {
		timer := time.NewTimer(timeout)
		select {
		case <-s.tallyChanged:
			changed = true
		case <-timer.C:
		}
		timer.Stop()
	}

	var t types.Tally
	for _, r := range s.targets() {
		rt := r.currentTally()
		t.OnPreview = t.OnPreview || rt.OnPreview
		t.OnProgram = t.OnProgram || rt.OnProgram
	}
	return t, changed
}

func (s *Sender) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.receivers)
}

func (s *Sender) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	receivers := make([]*Receiver, 0, len(s.receivers))
	for r := range s.receivers {
		receivers = append(receivers, r)
	}
	s.receivers = make(map[*Receiver]struct{})
	s.mu.Unlock()

	s.lib.removeSender(s)
	for _, r := range receivers {
		r.senderGone(s)
	}
	s.log.WithField("receivers", len(receivers)).Debug("Loopback source closed")
	return nil
}
