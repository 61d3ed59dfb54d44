// Package timecode exposes the timecode of a received source as a clock
// other components can synchronise to.
package timecode

import (
	"sync"

	"github.com/Glimesh/ndiio/pkg/control"
	"github.com/Glimesh/ndiio/pkg/receiver"
	"github.com/Glimesh/ndiio/pkg/types"
	"github.com/sirupsen/logrus"
)

type State int

const (
	StateClosed State = iota
	StateSynchronizing
	StateSynchronized
	StateError
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateSynchronizing:
		return "synchronizing"
	case StateSynchronized:
		return "synchronized"
	case StateError:
		return "error"
	}
	return "unknown"
}

// FrameTime is a timecode qualified by the rate it counts frames at.
type FrameTime struct {
	Timecode types.Timecode
	Rate     types.FrameRate
}

func (t FrameTime) String() string {
	return t.Timecode.String() + "@" + t.Rate.String()
}

// Provider follows a receiver: connecting starts synchronising, every
// captured video frame makes it synchronised, and disconnecting closes it.
type Provider struct {
	rx  *receiver.Receiver
	log logrus.FieldLogger

	mu     sync.Mutex
	state  State
	recent FrameTime

	handles []control.Handle
}

func NewProvider(rx *receiver.Receiver) *Provider {
	return &Provider{rx: rx, log: logrus.StandardLogger()}
}

func (p *Provider) SetLogger(log logrus.FieldLogger) {
	p.log = log
}

// Initialize subscribes to the receiver. Without one the provider is in
// the error state.
func (p *Provider) Initialize() bool {
	if p.rx == nil {
		p.setState(StateError)
		return false
	}
	p.setState(StateClosed)

	p.handles = append(p.handles,
		p.rx.OnVideo(func(r *receiver.Receiver, _ *types.VideoFrame) {
			ft := FrameTime{Timecode: r.Timecode(), Rate: r.FrameRate()}
			p.mu.Lock()
			p.recent = ft
			p.mu.Unlock()
			p.setState(StateSynchronized)
		}),
		p.rx.OnConnected(func(*receiver.Receiver) { p.setState(StateSynchronizing) }),
		p.rx.OnDisconnected(func(*receiver.Receiver) { p.setState(StateClosed) }),
	)
	return true
}

func (p *Provider) setState(s State) {
	p.mu.Lock()
	prev := p.state
	p.state = s
	p.mu.Unlock()

	if prev != s {
		p.log.WithFields(logrus.Fields{
			"from": prev.String(),
			"to":   s.String(),
		}).Debug("Timecode provider state changed")
	}
}

// Shutdown unsubscribes and closes the provider.
func (p *Provider) Shutdown() {
	if p.rx != nil {
		for _, h := range p.handles {
			p.rx.RemoveObserver(h)
		}
	}
	p.handles = nil
	p.setState(StateClosed)
}

func (p *Provider) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rx == nil && p.state != StateError {
		return StateClosed
	}
	return p.state
}

// FetchTimecode returns the most recent frame time once synchronised.
func (p *Provider) FetchTimecode() (FrameTime, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rx == nil || p.state != StateSynchronized {
		return FrameTime{}, false
	}
	return p.recent, true
}
