package rtp

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/Glimesh/ndiio/pkg/transport"
	"github.com/Glimesh/ndiio/pkg/types"
	"github.com/pion/rtp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type Receiver struct {
	lib  *Library
	conn *net.UDPConn
	opts transport.ReceiverOptions
	ssrc uint32
	log  logrus.FieldLogger

	store *transport.FrameStore
	meta  *transport.MetadataQueue

	mu         sync.Mutex
	desc       types.ConnectionDescriptor
	peer       *net.UDPAddr
	lastHeard  time.Time
	tally      types.Tally
	assemblers map[uint8]*assembler

	sendMu   sync.Mutex
	upstream rtp.Packetizer

	cancel    context.CancelFunc
	group     *errgroup.Group
	closeOnce sync.Once
}

func newReceiver(lib *Library, conn *net.UDPConn, opts transport.ReceiverOptions) *Receiver {
	ssrc := newSSRC()
	return &Receiver{
		lib:        lib,
		conn:       conn,
		opts:       opts,
		ssrc:       ssrc,
		log:        lib.log.WithField("receiver", opts.Name),
		store:      transport.NewFrameStore(),
		meta:       transport.NewMetadataQueue(opts.Metadata),
		assemblers: newAssemblers(),
		upstream:   newPacketizer(lib.opts.MTU, PayloadTypeMetadata, ssrc),
	}
}

func newAssemblers() map[uint8]*assembler {
	return map[uint8]*assembler{
		PayloadTypeVideo:    newAssembler(),
		PayloadTypeAudio:    newAssembler(),
		PayloadTypeMetadata: newAssembler(),
	}
}

func (r *Receiver) start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.group, ctx = errgroup.WithContext(ctx)
	r.group.Go(func() error {
		return readLoop(ctx, r.conn, r.handle)
	})
	r.group.Go(func() error {
		return r.keepAliveLoop(ctx)
	})
}

func (r *Receiver) Connect(desc types.ConnectionDescriptor) {
	r.mu.Lock()
	old := r.peer
	r.desc = desc
	r.peer = nil
	r.lastHeard = time.Time{}
	r.assemblers = newAssemblers()
	r.mu.Unlock()

	if old != nil {
		if buf, err := goodbye(r.ssrc); err == nil {
			r.write(buf, old)
		}
	}
	r.store.Reset()
	r.meta.Reset()

	if !desc.IsValid() {
		return
	}
	addr, err := r.lib.resolve(desc)
	if err != nil {
		r.log.WithError(err).WithField("source", desc.Name()).Warn("Cannot locate source")
		return
	}

	r.mu.Lock()
	r.peer = addr
	r.mu.Unlock()
	r.sendKeepAlive()
}

func (r *Receiver) subscription() (subscription, *net.UDPAddr) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return subscription{
		ssrc:      r.ssrc,
		name:      r.opts.Name,
		tally:     r.tally,
		bandwidth: r.opts.Bandwidth,
	}, r.peer
}

func (r *Receiver) sendKeepAlive() {
	sub, peer := r.subscription()
	if peer == nil {
		return
	}
	buf, err := keepAlive(sub)
	if err != nil {
		r.log.WithError(err).Debug("Keep-alive marshal failed")
		return
	}
	r.write(buf, peer)
}

func (r *Receiver) keepAliveLoop(ctx context.Context) error {
	ticker := time.NewTicker(r.lib.opts.KeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.sendKeepAlive()
		}
	}
}

func (r *Receiver) write(buf []byte, to *net.UDPAddr) {
	if _, err := r.conn.WriteToUDP(buf, to); err != nil {
		r.log.WithError(err).Debug("Write failed")
	}
}

func (r *Receiver) handle(buf []byte, from *net.UDPAddr) {
	r.mu.Lock()
	if !sameAddr(from, r.peer) {
		r.mu.Unlock()
		return
	}

	if isControl(buf) {
		msg, err := parseControl(buf)
		if err == nil {
			if msg.bye {
				r.lastHeard = time.Time{}
			} else {
				r.lastHeard = time.Now()
			}
		}
		r.mu.Unlock()
		return
	}

	pkt := &rtp.Packet{}
	if err := pkt.Unmarshal(buf); err != nil {
		r.mu.Unlock()
		return
	}
	r.lastHeard = time.Now()
	asm, ok := r.assemblers[pkt.PayloadType]
	var data []byte
	if ok {
		data = asm.Push(pkt)
	}
	r.mu.Unlock()

	if data == nil {
		return
	}
	if err := r.deliver(pkt.PayloadType, data); err != nil {
		r.log.WithError(err).Debug("Dropped message")
	}
}

func (r *Receiver) deliver(pt uint8, data []byte) error {
	switch pt {
	case PayloadTypeVideo:
		f, err := unmarshalVideo(data)
		if err != nil {
			return err
		}
		r.store.PushVideo(f)
	case PayloadTypeAudio:
		f, err := unmarshalAudio(data)
		if err != nil {
			return err
		}
		r.store.PushAudio(f)
	case PayloadTypeMetadata:
		f, err := unmarshalMetadata(data)
		if err != nil {
			return err
		}
		r.meta.Push(f)
	}
	return nil
}

type frameSync struct {
	*transport.FrameStore
}

func (frameSync) Close() {}

func (r *Receiver) NewFrameSync() transport.FrameSync {
	return frameSync{r.store}
}

func (r *Receiver) CaptureMetadata() (*types.MetadataFrame, bool) {
	return r.meta.Pop()
}

func (r *Receiver) FreeMetadata(f *types.MetadataFrame) {}

func (r *Receiver) SendMetadata(f *types.MetadataFrame) bool {
	_, peer := r.subscription()
	if peer == nil || f == nil {
		return false
	}
	r.sendMu.Lock()
	defer r.sendMu.Unlock()
	for _, pkt := range r.upstream.Packetize(marshalMetadata(f), 1) {
		buf, err := pkt.Marshal()
		if err != nil {
			return false
		}
		r.write(buf, peer)
	}
	return true
}

func (r *Receiver) SetTally(t types.Tally) bool {
	r.mu.Lock()
	r.tally = t
	connected := r.peer != nil
	r.mu.Unlock()

	r.sendKeepAlive()
	return connected
}

func (r *Receiver) Performance() types.PerformanceCounters {
	perf := r.store.Performance()
	perf.MetadataFrames, perf.DroppedMetadataFrames = r.meta.Counters()
	return perf
}

// Connections is 1 while the sender has been heard from recently.
func (r *Receiver) Connections() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.peer == nil || r.lastHeard.IsZero() || time.Since(r.lastHeard) > r.lib.opts.Timeout {
		return 0
	}
	return 1
}

func (r *Receiver) Close() error {
	var err error
	r.closeOnce.Do(func() {
		_, peer := r.subscription()
		if peer != nil {
			if buf, e := goodbye(r.ssrc); e == nil {
				r.write(buf, peer)
			}
		}
		r.cancel()
		r.conn.Close()
		err = r.group.Wait()
		r.store.Close()
		r.lib.untrack(r)
	})
	return err
}
