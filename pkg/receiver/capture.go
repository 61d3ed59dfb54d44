package receiver

import (
	"time"

	"github.com/Glimesh/ndiio/pkg/types"
)

// CaptureConnectedVideo pulls the latest frame from the frame-sync. Video
// observers run only when the frame is new: its timestamp is undefined or
// changed, or its field changed.
func (r *Receiver) CaptureConnectedVideo() bool {
	r.renderMu.Lock()
	fs, recv := r.frameSync, r.recv
	if fs == nil || r.desc.MuteVideo {
		r.renderMu.Unlock()
		return false
	}

	frame, ok := fs.CaptureVideo(types.FieldProgressive)
	r.performance = recv.Performance()

	captured := false
	if ok && frame != nil && frame.Data != nil {
		r.setConnected(true)

		r.frameRate = frame.FrameRate
		r.resolution.X = frame.Width
		r.resolution.Y = frame.Height
		if r.opts.TimecodeFromSystem {
			r.timecode = types.TimecodeFromTicks(types.TicksOfDay(time.Now()), r.frameRate)
		} else {
			r.timecode = types.TimecodeFromTicks(frame.Timecode%types.TicksPerDay, r.frameRate)
		}

		if frame.Timestamp == types.TimestampUndefined ||
			frame.Timestamp != r.lastTimestamp ||
			frame.Field != r.lastField {
			captured = true
			r.lastTimestamp = frame.Timestamp
			r.lastField = frame.Field
		}
	}
	r.renderMu.Unlock()

	if captured {
		r.onVideo.Each(func(fn VideoFunc) { fn(r, frame) })
		if frame.Metadata != "" {
			r.broadcastMetadata(frame.Metadata, true)
		}
	}
	if frame != nil {
		fs.FreeVideo(frame)
	}
	return captured
}

// CaptureConnectedAudio takes everything queued in the frame-sync.
func (r *Receiver) CaptureConnectedAudio() bool {
	r.audioMu.Lock()
	fs := r.frameSync
	if fs == nil || r.desc.MuteAudio {
		r.audioMu.Unlock()
		return false
	}

	frame := fs.CaptureAudio(0, 0, fs.AudioQueueDepth())
	captured := false
	if frame != nil && frame.Data != nil {
		r.setConnected(true)
		captured = frame.Samples*frame.Channels > 0
	}
	r.audioMu.Unlock()

	if captured {
		r.onAudio.Each(func(fn AudioFunc) { fn(r, frame) })
	}
	if frame != nil {
		fs.FreeAudio(frame)
	}
	return captured
}

// CaptureConnectedMetadata makes one non-blocking metadata capture and
// reports whether a non-empty message arrived.
func (r *Receiver) CaptureConnectedMetadata() bool {
	r.metadataMu.Lock()
	recv := r.recv
	if recv == nil {
		r.metadataMu.Unlock()
		return false
	}

	frame, ok := recv.CaptureMetadata()
	if !ok || frame == nil {
		r.metadataMu.Unlock()
		return false
	}
	r.setConnected(true)
	data := frame.Data
	recv.FreeMetadata(frame)
	r.metadataMu.Unlock()

	if len(data) == 0 {
		return false
	}
	r.broadcastMetadata(data, false)
	return true
}

// DrainMetadata captures at most MaxMetadataPerTick messages. Anything
// beyond stays queued in the transport.
func (r *Receiver) DrainMetadata() int {
	n := 0
	for n < r.opts.MaxMetadataPerTick && r.CaptureConnectedMetadata() {
		n++
	}
	return n
}

func (r *Receiver) broadcastMetadata(data string, attached bool) {
	r.onMetadata.Each(func(fn MetadataFunc) { fn(r, data, attached) })
}

// RenderTick runs on the render context once per frame.
func (r *Receiver) RenderTick() {
	r.DrainMetadata()
	r.CaptureConnectedVideo()
}

// GameTick runs on the game context. It reports a lost link once the
// transport has no connections left. Audio is captured for the OnAudio
// observers only while no audio consumer is registered: consumers pull
// from the same frame-sync queue and would otherwise read silence.
func (r *Receiver) GameTick() {
	if r.AudioConsumers() == 0 {
		r.CaptureConnectedAudio()
	}
	if r.Connected() && r.Connections() == 0 {
		r.setConnected(false)
	}
}
