package control

import (
	"sync"

	"github.com/google/uuid"
)

// Handle identifies a registered callback. The zero Handle is never
// issued.
type Handle uuid.UUID

func (h Handle) IsValid() bool {
	return uuid.UUID(h) != uuid.Nil
}

func (h Handle) String() string {
	return uuid.UUID(h).String()
}

type observer[T any] struct {
	handle Handle
	fn     T
}

// Observers is a list of callbacks registered by handle. Callers invoke a
// snapshot so no lock is held while a callback runs.
type Observers[T any] struct {
	mu   sync.Mutex
	list []observer[T]
}

func (o *Observers[T]) Add(fn T) Handle {
	h := Handle(uuid.New())

	o.mu.Lock()
	defer o.mu.Unlock()
	o.list = append(o.list, observer[T]{handle: h, fn: fn})
	return h
}

// Remove reports whether h was registered.
func (o *Observers[T]) Remove(h Handle) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := range o.list {
		if o.list[i].handle == h {
			o.list = append(o.list[:i], o.list[i+1:]...)
			return true
		}
	}
	return false
}

func (o *Observers[T]) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.list)
}

func (o *Observers[T]) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.list = nil
}

func (o *Observers[T]) Snapshot() []T {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]T, len(o.list))
	for i := range o.list {
		out[i] = o.list[i].fn
	}
	return out
}

// Each calls call with every registered callback, outside the lock.
func (o *Observers[T]) Each(call func(fn T)) {
	for _, fn := range o.Snapshot() {
		call(fn)
	}
}
