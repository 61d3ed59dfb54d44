package receiver

import "github.com/Glimesh/ndiio/pkg/types"

// ConnectionState is derived from the transport handle and the last
// observed link state.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	}
	return "disconnected"
}

// State is Disconnected without a transport connection, Connecting until
// the first capture succeeds on it and Connected after.
func (r *Receiver) State() ConnectionState {
	r.metadataMu.Lock()
	live := r.recv != nil
	r.metadataMu.Unlock()

	switch {
	case !live:
		return StateDisconnected
	case r.connected.Load():
		return StateConnected
	}
	return StateConnecting
}

type Status struct {
	Address     string                    `json:"address"`
	State       string                    `json:"state"`
	Connected   bool                      `json:"connected"`
	Connections int                       `json:"connections"`
	Width       int                       `json:"width"`
	Height      int                       `json:"height"`
	FrameRate   string                    `json:"frame_rate"`
	Timecode    string                    `json:"timecode"`
	Performance types.PerformanceCounters `json:"performance"`
}

func (r *Receiver) Status() Status {
	res := r.Resolution()
	return Status{
		Address:     r.Address(),
		State:       r.State().String(),
		Connected:   r.Connected(),
		Connections: r.Connections(),
		Width:       res.X,
		Height:      res.Y,
		FrameRate:   r.FrameRate().String(),
		Timecode:    r.Timecode().String(),
		Performance: r.Performance(),
	}
}
