package rtp

import (
	"sort"

	"github.com/pion/rtp"
)

// chunkPayloader splits a message into MTU sized payloads. The packetizer
// marks the last one.
type chunkPayloader struct{}

func (chunkPayloader) Payload(mtu uint16, payload []byte) [][]byte {
	size := int(mtu)
	if size <= 0 {
		return nil
	}
	out := make([][]byte, 0, (len(payload)+size-1)/size)
	for len(payload) > 0 {
		n := size
		if n > len(payload) {
			n = len(payload)
		}
		out = append(out, payload[:n])
		payload = payload[n:]
	}
	return out
}

// maxPending is how many incomplete messages of one payload type are kept
// before the oldest is discarded.
const maxPending = 8

type partial struct {
	packets map[uint16][]byte
	age     uint64
}

// assembler collects the packets of one payload type by timestamp until
// the marker packet arrives.
type assembler struct {
	pending map[uint32]*partial
	clock   uint64
	lost    int64
}

func newAssembler() *assembler {
	return &assembler{pending: make(map[uint32]*partial)}
}

// Push adds p and returns the whole message once its marker has been seen.
func (a *assembler) Push(p *rtp.Packet) []byte {
	a.clock++
	msg, ok := a.pending[p.Timestamp]
	if !ok {
		a.evict()
		msg = &partial{packets: make(map[uint16][]byte)}
		a.pending[p.Timestamp] = msg
	}
	msg.age = a.clock
	msg.packets[p.SequenceNumber] = append([]byte(nil), p.Payload...)

	if !p.Marker {
		return nil
	}
	delete(a.pending, p.Timestamp)

	// order by distance back from the marker so sequence wrap is harmless
	last := p.SequenceNumber
	keys := make([]uint16, 0, len(msg.packets))
	for k := range msg.packets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return last-keys[i] > last-keys[j]
	})

	var out []byte
	for _, k := range keys {
		out = append(out, msg.packets[k]...)
	}
	return out
}

func (a *assembler) evict() {
	for len(a.pending) >= maxPending {
		var oldest uint32
		var age uint64
		first := true
		for ts, m := range a.pending {
			if first || m.age < age {
				oldest, age, first = ts, m.age, false
			}
		}
		delete(a.pending, oldest)
		a.lost++
	}
}

func (a *assembler) Reset() {
	a.pending = make(map[uint32]*partial)
}

// Lost is the number of messages discarded incomplete.
func (a *assembler) Lost() int64 {
	return a.lost
}
