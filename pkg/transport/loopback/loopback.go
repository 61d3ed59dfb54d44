// Package loopback is an in-process transport library. Senders publish
// under "MACHINE (NAME)" and receivers in the same process find them by
// that name, so the whole media path runs without a network.
package loopback

import (
	"fmt"
	"sync"

	"github.com/Glimesh/ndiio/pkg/transport"
	"github.com/Glimesh/ndiio/pkg/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type Library struct {
	mu        sync.Mutex
	machine   string
	senders   map[string]*Sender
	receivers map[*Receiver]struct{}
	closed    bool

	log logrus.FieldLogger
}

func New(machine string) *Library {
	if machine == "" {
		machine = "LOOPBACK"
	}
	return &Library{
		machine:   machine,
		senders:   make(map[string]*Sender),
		receivers: make(map[*Receiver]struct{}),
		log:       logrus.StandardLogger(),
	}
}

func (l *Library) SetLogger(log logrus.FieldLogger) {
	l.log = log
}

// SourceName is the name a sender called name is published under.
func (l *Library) SourceName(name string) string {
	return fmt.Sprintf("%s (%s)", l.machine, name)
}

// Sources lists the published source names.
func (l *Library) Sources() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]string, 0, len(l.senders))
	for name := range l.senders {
		out = append(out, name)
	}
	return out
}

func (l *Library) NewSender(opts transport.SenderOptions) (transport.Sender, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, transport.ErrClosed
	}
	name := l.SourceName(opts.Name)
	if _, ok := l.senders[name]; ok {
		return nil, errors.Errorf("source %q already exists", name)
	}

	s := newSender(l, name, opts)
	l.senders[name] = s
	l.log.WithField("source", name).Debug("Published loopback source")
	return s, nil
}

func (l *Library) NewReceiver(opts transport.ReceiverOptions) (transport.Receiver, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, transport.ErrClosed
	}
	r := newReceiver(l, opts)
	l.receivers[r] = struct{}{}
	return r, nil
}

// lookup finds the sender a descriptor addresses.
func (l *Library) lookup(desc types.ConnectionDescriptor) *Sender {
	l.mu.Lock()
	defer l.mu.Unlock()

	desc = desc.Normalize()
	if s, ok := l.senders[desc.SourceName]; ok {
		return s
	}
	if desc.URL != "" {
		if s, ok := l.senders[desc.URL]; ok {
			return s
		}
	}
	return nil
}

func (l *Library) removeSender(s *Sender) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.senders[s.name] == s {
		delete(l.senders, s.name)
	}
}

func (l *Library) removeReceiver(r *Receiver) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.receivers, r)
}

func (l *Library) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	senders := make([]*Sender, 0, len(l.senders))
	for _, s := range l.senders {
		senders = append(senders, s)
	}
	receivers := make([]*Receiver, 0, len(l.receivers))
	for r := range l.receivers {
		receivers = append(receivers, r)
	}
	l.mu.Unlock()

	for _, r := range receivers {
		r.Close()
	}
	for _, s := range senders {
		s.Close()
	}
	return nil
}
