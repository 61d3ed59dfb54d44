// Package transport is the contract between the media core and the
// network library that discovers sources and moves frames. Frames handed
// out by a capture call belong to the library until they are freed.
package transport

import (
	"time"

	"github.com/Glimesh/ndiio/pkg/types"
)

type Library interface {
	NewReceiver(opts ReceiverOptions) (Receiver, error)
	NewSender(opts SenderOptions) (Sender, error)
	Close() error
}

type ReceiverOptions struct {
	// Name this receiver announces to the senders it connects to.
	Name      string
	Bandwidth types.Bandwidth
	Metadata  MetadataOptions
}

type SenderOptions struct {
	Name       string
	// Address a network library listens on. In-process libraries ignore it.
	Address    string
	ClockVideo bool
	ClockAudio bool
	Metadata   MetadataOptions
}

type MetadataOptions struct {
	QueueSize int
	Policy    DropPolicy
}

type Receiver interface {
	// Connect points the receiver at a source. An invalid descriptor
	// disconnects.
	Connect(desc types.ConnectionDescriptor)
	NewFrameSync() FrameSync

	CaptureMetadata() (*types.MetadataFrame, bool)
	FreeMetadata(f *types.MetadataFrame)
	SendMetadata(f *types.MetadataFrame) bool

	SetTally(t types.Tally) bool
	Performance() types.PerformanceCounters
	Connections() int

	Close() error
}

// FrameSync hands out the most recent video frame and a bounded audio
// queue at whatever rate it is polled. Captures never block.
type FrameSync interface {
	CaptureVideo(field types.FieldMode) (*types.VideoFrame, bool)
	FreeVideo(f *types.VideoFrame)

	// AudioQueueDepth is the number of queued samples per channel.
	AudioQueueDepth() int
	// CaptureAudio returns samples frames per channel, padding with
	// silence when the queue is short. Zero sampleRate or channels keep
	// the source's own.
	CaptureAudio(sampleRate, channels, samples int) *types.AudioFrame
	FreeAudio(f *types.AudioFrame)

	Close()
}

type Sender interface {
	// SendVideoAsync queues frame. Returning guarantees the previously
	// sent frame is no longer referenced. A nil frame flushes.
	SendVideoAsync(frame *types.VideoFrame)
	SendAudio(frame *types.AudioFrame)
	SendMetadata(frame *types.MetadataFrame)

	CaptureMetadata() (*types.MetadataFrame, bool)
	FreeMetadata(f *types.MetadataFrame)

	// AddConnectionMetadata is delivered to every receiver when it
	// connects.
	AddConnectionMetadata(f *types.MetadataFrame)
	ClearConnectionMetadata()

	// Tally waits up to timeout for a tally change and returns the
	// current state. ok is false if nothing changed.
	Tally(timeout time.Duration) (t types.Tally, ok bool)
	Connections() int

	Close() error
}
