package control

import (
	"context"
	"sync"
)

// Dispatcher runs posted functions on the main context, away from the
// capture goroutines that post them.
type Dispatcher struct {
	mu      sync.Mutex
	pending []func()
	wake    chan struct{}
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{wake: make(chan struct{}, 1)}
}

// Post queues fn and never blocks.
func (d *Dispatcher) Post(fn func()) {
	d.mu.Lock()
	d.pending = append(d.pending, fn)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Drain runs everything queued so far on the calling goroutine and
// returns how many functions ran.
func (d *Dispatcher) Drain() int {
	d.mu.Lock()
	pending := d.pending
	d.pending = nil
	d.mu.Unlock()

	for _, fn := range pending {
		fn()
	}
	return len(pending)
}

func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Run drains the queue whenever something is posted until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			d.Drain()
			return nil
		case <-d.wake:
			d.Drain()
		}
	}
}
