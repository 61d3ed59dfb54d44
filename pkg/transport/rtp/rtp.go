// Package rtp is a transport library over UDP. Media travels as RTP with
// one payload type per kind (video, audio, metadata); receivers subscribe
// to a sender with periodic RTCP receiver reports, carry their tally in an
// SDES note, and leave with a BYE.
package rtp

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/Glimesh/ndiio/pkg/transport"
	"github.com/Glimesh/ndiio/pkg/types"
	"github.com/google/uuid"
	"github.com/pion/rtp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	DefaultMTU       = 1200
	DefaultKeepAlive = 500 * time.Millisecond
	DefaultTimeout   = 2 * time.Second

	readBufferSize = 1500
)

type Options struct {
	// Bind is the local address receivers listen on.
	Bind string
	// Peers maps source names to the address their sender listens on.
	Peers map[string]string

	MTU       int
	KeepAlive time.Duration
	Timeout   time.Duration
}

type Library struct {
	opts Options
	log  logrus.FieldLogger

	mu        sync.Mutex
	endpoints map[closer]struct{}
	closed    bool
}

type closer interface {
	Close() error
}

func New(opts Options) *Library {
	if opts.MTU <= 0 {
		opts.MTU = DefaultMTU
	}
	if opts.KeepAlive <= 0 {
		opts.KeepAlive = DefaultKeepAlive
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Bind == "" {
		opts.Bind = ":0"
	}
	return &Library{
		opts:      opts,
		log:       logrus.StandardLogger(),
		endpoints: make(map[closer]struct{}),
	}
}

func (l *Library) SetLogger(log logrus.FieldLogger) {
	l.log = log
}

// AddPeer records where the sender of a source listens.
func (l *Library) AddPeer(source, address string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.opts.Peers == nil {
		l.opts.Peers = make(map[string]string)
	}
	l.opts.Peers[source] = address
}

// resolve finds the UDP address a descriptor points at: a peer entry for
// its source name, or its URL taken as host:port.
func (l *Library) resolve(desc types.ConnectionDescriptor) (*net.UDPAddr, error) {
	desc = desc.Normalize()

	l.mu.Lock()
	address, ok := l.opts.Peers[desc.SourceName]
	l.mu.Unlock()

	if !ok {
		if desc.URL == "" {
			return nil, ErrUnknownPeer
		}
		address = desc.URL
	}
	addr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s", address)
	}
	return addr, nil
}

func (l *Library) listen(address string) (*net.UDPConn, error) {
	addr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s", address)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen %s", address)
	}
	return conn, nil
}

func (l *Library) track(c closer) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return transport.ErrClosed
	}
	l.endpoints[c] = struct{}{}
	return nil
}

func (l *Library) untrack(c closer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.endpoints, c)
}

func (l *Library) NewSender(opts transport.SenderOptions) (transport.Sender, error) {
	address := opts.Address
	if address == "" {
		address = ":0"
	}
	conn, err := l.listen(address)
	if err != nil {
		return nil, err
	}
	s := newSender(l, conn, opts)
	if err := l.track(s); err != nil {
		conn.Close()
		return nil, err
	}
	s.start()
	l.log.WithFields(logrus.Fields{
		"source":  opts.Name,
		"address": conn.LocalAddr().String(),
	}).Info("RTP sender listening")
	return s, nil
}

func (l *Library) NewReceiver(opts transport.ReceiverOptions) (transport.Receiver, error) {
	conn, err := l.listen(l.opts.Bind)
	if err != nil {
		return nil, err
	}
	r := newReceiver(l, conn, opts)
	if err := l.track(r); err != nil {
		conn.Close()
		return nil, err
	}
	r.start()
	return r, nil
}

func (l *Library) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	endpoints := make([]closer, 0, len(l.endpoints))
	for c := range l.endpoints {
		endpoints = append(endpoints, c)
	}
	l.mu.Unlock()

	for _, c := range endpoints {
		c.Close()
	}
	return nil
}

func newSSRC() uint32 {
	if ssrc := uuid.New().ID(); ssrc != 0 {
		return ssrc
	}
	return 1
}

func newPacketizer(mtu int, pt uint8, ssrc uint32) rtp.Packetizer {
	return rtp.NewPacketizer(uint16(mtu), pt, ssrc, chunkPayloader{}, rtp.NewRandomSequencer(), 90000)
}

// readLoop hands every datagram to handle until ctx ends or the socket
// is closed.
func readLoop(ctx context.Context, conn *net.UDPConn, handle func(buf []byte, from *net.UDPAddr)) error {
	buf := make([]byte, readBufferSize)
	for {
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return errors.Wrap(err, "read")
		}
		handle(buf[:n], from)
	}
}

func sameAddr(a, b *net.UDPAddr) bool {
	return a != nil && b != nil && a.Port == b.Port && a.IP.Equal(b.IP)
}
