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

type subscriber struct {
	addr     *net.UDPAddr
	sub      subscription
	lastSeen time.Time
}

type Sender struct {
	lib  *Library
	conn *net.UDPConn
	opts transport.SenderOptions
	ssrc uint32
	log  logrus.FieldLogger

	sendMu sync.Mutex
	video  rtp.Packetizer
	audio  rtp.Packetizer
	meta   rtp.Packetizer

	mu          sync.Mutex
	subscribers map[string]*subscriber
	connMeta    []*types.MetadataFrame

	inbound      *transport.MetadataQueue
	upstream     *assembler
	tallyChanged chan struct{}

	cancel    context.CancelFunc
	group     *errgroup.Group
	closeOnce sync.Once
}

func newSender(lib *Library, conn *net.UDPConn, opts transport.SenderOptions) *Sender {
	ssrc := newSSRC()
	return &Sender{
		lib:          lib,
		conn:         conn,
		opts:         opts,
		ssrc:         ssrc,
		log:          lib.log.WithField("source", opts.Name),
		video:        newPacketizer(lib.opts.MTU, PayloadTypeVideo, ssrc),
		audio:        newPacketizer(lib.opts.MTU, PayloadTypeAudio, ssrc),
		meta:         newPacketizer(lib.opts.MTU, PayloadTypeMetadata, ssrc),
		subscribers:  make(map[string]*subscriber),
		inbound:      transport.NewMetadataQueue(opts.Metadata),
		upstream:     newAssembler(),
		tallyChanged: make(chan struct{}, 1),
	}
}

func (s *Sender) start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.group, ctx = errgroup.WithContext(ctx)
	s.group.Go(func() error {
		return readLoop(ctx, s.conn, s.handle)
	})
	s.group.Go(func() error {
		return s.expireLoop(ctx)
	})
}

// Addr is the address receivers subscribe to.
func (s *Sender) Addr() *net.UDPAddr {
	return s.conn.LocalAddr().(*net.UDPAddr)
}

func (s *Sender) handle(buf []byte, from *net.UDPAddr) {
	if isControl(buf) {
		msg, err := parseControl(buf)
		if err != nil {
			s.log.WithError(err).Debug("Bad control packet")
			return
		}
		if msg.bye {
			s.remove(from)
			return
		}
		s.refresh(from, msg.sub)
		return
	}

	pkt := &rtp.Packet{}
	if err := pkt.Unmarshal(buf); err != nil {
		s.log.WithError(err).Debug("Bad RTP packet")
		return
	}
	if pkt.PayloadType != PayloadTypeMetadata {
		return
	}
	data := s.upstream.Push(pkt)
	if data == nil {
		return
	}
	f, err := unmarshalMetadata(data)
	if err != nil {
		s.log.WithError(err).Debug("Dropped upstream metadata")
		return
	}
	s.inbound.Push(f)
}

func (s *Sender) refresh(from *net.UDPAddr, sub subscription) {
	key := from.String()

	s.mu.Lock()
	existing, ok := s.subscribers[key]
	if !ok {
		existing = &subscriber{addr: from}
		s.subscribers[key] = existing
	}
	tallyChanged := !ok || existing.sub.tally != sub.tally
	existing.sub = sub
	existing.lastSeen = time.Now()
	var meta []*types.MetadataFrame
	if !ok {
		meta = append(meta, s.connMeta...)
	}
	s.mu.Unlock()

	if buf, err := announce(s.ssrc, s.opts.Name); err == nil {
		s.write(buf, from)
	}
	if !ok {
		s.log.WithFields(logrus.Fields{"receiver": sub.name, "address": key}).Info("Receiver connected")
		for _, m := range meta {
			s.sendMetadataTo(m, []*net.UDPAddr{from})
		}
	}
	if tallyChanged {
		s.notifyTally()
	}
}

func (s *Sender) remove(from *net.UDPAddr) {
	s.mu.Lock()
	_, ok := s.subscribers[from.String()]
	delete(s.subscribers, from.String())
	s.mu.Unlock()

	if ok {
		s.log.WithField("address", from.String()).Info("Receiver disconnected")
		s.notifyTally()
	}
}

func (s *Sender) expireLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.lib.opts.KeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			expired := false
			s.mu.Lock()
			for key, sub := range s.subscribers {
				if now.Sub(sub.lastSeen) > s.lib.opts.Timeout {
					delete(s.subscribers, key)
					expired = true
				}
			}
			s.mu.Unlock()
			if expired {
				s.notifyTally()
			}
		}
	}
}

// targets lists subscribers whose bandwidth mode accepts want.
func (s *Sender) targets(want func(types.Bandwidth) bool) []*net.UDPAddr {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*net.UDPAddr, 0, len(s.subscribers))
	for _, sub := range s.subscribers {
		if want(sub.sub.bandwidth) {
			out = append(out, sub.addr)
		}
	}
	return out
}

func wantsVideo(bw types.Bandwidth) bool {
	return bw == types.BandwidthHighest || bw == types.BandwidthLowest
}

func wantsAudio(bw types.Bandwidth) bool {
	return bw != types.BandwidthMetadataOnly
}

func wantsMetadata(types.Bandwidth) bool {
	return true
}

func (s *Sender) write(buf []byte, to *net.UDPAddr) {
	if _, err := s.conn.WriteToUDP(buf, to); err != nil {
		s.log.WithError(err).Debug("Write failed")
	}
}

// send packetizes payload and writes every packet to each address. The
// caller holds sendMu.
func (s *Sender) send(p rtp.Packetizer, payload []byte, to []*net.UDPAddr) {
	for _, pkt := range p.Packetize(payload, 1) {
		buf, err := pkt.Marshal()
		if err != nil {
			s.log.WithError(err).Debug("Marshal failed")
			return
		}
		for _, addr := range to {
			s.write(buf, addr)
		}
	}
}

// SendVideoAsync writes the frame out before returning, so the caller may
// reuse its buffer straight away.
func (s *Sender) SendVideoAsync(frame *types.VideoFrame) {
	if frame == nil {
		return
	}
	to := s.targets(wantsVideo)
	if len(to) == 0 {
		return
	}
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	s.send(s.video, marshalVideo(frame), to)
}

func (s *Sender) SendAudio(frame *types.AudioFrame) {
	if frame == nil {
		return
	}
	to := s.targets(wantsAudio)
	if len(to) == 0 {
		return
	}
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	s.send(s.audio, marshalAudio(frame), to)
}

func (s *Sender) SendMetadata(frame *types.MetadataFrame) {
	if frame == nil {
		return
	}
	s.sendMetadataTo(frame, s.targets(wantsMetadata))
}

func (s *Sender) sendMetadataTo(frame *types.MetadataFrame, to []*net.UDPAddr) {
	if len(to) == 0 {
		return
	}
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	s.send(s.meta, marshalMetadata(frame), to)
}

func (s *Sender) CaptureMetadata() (*types.MetadataFrame, bool) {
	return s.inbound.Pop()
}

func (s *Sender) FreeMetadata(f *types.MetadataFrame) {}

func (s *Sender) AddConnectionMetadata(f *types.MetadataFrame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *f
	s.connMeta = append(s.connMeta, &c)
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

	s.mu.Lock()
	defer s.mu.Unlock()
	var t types.Tally
	for _, sub := range s.subscribers {
		t.OnPreview = t.OnPreview || sub.sub.tally.OnPreview
		t.OnProgram = t.OnProgram || sub.sub.tally.OnProgram
	}
	return t, changed
}

func (s *Sender) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers)
}

func (s *Sender) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if buf, e := goodbye(s.ssrc); e == nil {
			for _, addr := range s.targets(wantsMetadata) {
				s.write(buf, addr)
			}
		}
		s.cancel()
		s.conn.Close()
		err = s.group.Wait()
		s.lib.untrack(s)
	})
	return err
}
