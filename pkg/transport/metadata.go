package transport

import (
	"strings"
	"sync"

	"github.com/Glimesh/ndiio/pkg/types"
)

// DropPolicy picks which message a full metadata queue gives up.
type DropPolicy int

const (
	DropOldest DropPolicy = iota
	DropNewest
)

const DefaultMetadataQueueSize = 64

func (p DropPolicy) String() string {
	if p == DropNewest {
		return "drop_newest"
	}
	return "drop_oldest"
}

func ParseDropPolicy(s string) (DropPolicy, error) {
	switch strings.ToLower(s) {
	case "", "drop_oldest", "oldest":
		return DropOldest, nil
	case "drop_newest", "newest":
		return DropNewest, nil
	}
	return DropOldest, ErrUnknownDropPolicy
}

// MetadataQueue is a bounded FIFO of inbound metadata messages.
type MetadataQueue struct {
	mu       sync.Mutex
	items    []*types.MetadataFrame
	limit    int
	policy   DropPolicy
	received int64
	dropped  int64
}

func NewMetadataQueue(opts MetadataOptions) *MetadataQueue {
	limit := opts.QueueSize
	if limit <= 0 {
		limit = DefaultMetadataQueueSize
	}
	return &MetadataQueue{limit: limit, policy: opts.Policy}
}

// Push enqueues f and reports whether it was kept.
func (q *MetadataQueue) Push(f *types.MetadataFrame) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.received++
	if len(q.items) >= q.limit {
		q.dropped++
		if q.policy == DropNewest {
			return false
		}
		copy(q.items, q.items[1:])
		q.items = q.items[:len(q.items)-1]
	}
	q.items = append(q.items, f)
	return true
}

func (q *MetadataQueue) Pop() (*types.MetadataFrame, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, false
	}
	f := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return f, true
}

func (q *MetadataQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Counters returns messages received and dropped so far.
func (q *MetadataQueue) Counters() (received, dropped int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.received, q.dropped
}

func (q *MetadataQueue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
}
