package sender

import (
	"image"
	"time"

	"github.com/Glimesh/ndiio/pkg/audio"
	"github.com/Glimesh/ndiio/pkg/control"
	"github.com/Glimesh/ndiio/pkg/convert"
	"github.com/Glimesh/ndiio/pkg/metadata"
	"github.com/Glimesh/ndiio/pkg/types"
)

// TrySendVideoFrame draws the video texture and hands it to the transport
// when someone is connected and ticks falls on a new frame at the
// broadcast rate. Metadata from receivers is drained first.
func (s *Sender) TrySendVideoFrame(ticks int64) {
	if s.changingSize.Load() {
		return
	}
	s.DrainMetadata()

	tc, ok := s.videoDue(ticks)
	if !ok {
		return
	}

	s.onVideoPreSend.Each(func(fn SenderFunc) { fn(s) })

	s.renderMu.Lock()
	if s.sender == nil || s.texture == nil || s.target == nil || s.changingSize.Load() {
		s.renderMu.Unlock()
		return
	}
	s.drawRenderTarget()
	s.ring.Resolve(s.target)

	w, h := s.ring.Map()
	w *= 2
	if s.ringAlpha {
		h = (2 * h) / 3
	}
	if size := image.Pt(w, h); size != s.frameSize {
		s.ring.Flush(s.sender)
		rate := s.frameRate
		s.renderMu.Unlock()
		s.log.WithField("size", size).Warn("Readback size does not match the frame, reconfiguring")
		s.ChangeRenderTargetConfiguration(size, rate)
		return
	}

	frame := s.frame
	frame.Timecode = ticks
	frame.Timestamp = ticks
	s.ring.Send(s.sender, &frame)
	s.lastRenderTime = tc
	s.sentVideo = true
	s.renderMu.Unlock()

	s.onVideoSent.Each(func(fn SenderFunc) { fn(s) })
}

// videoDue reports whether a frame should go out at ticks and the
// timecode it would carry.
func (s *Sender) videoDue(ticks int64) (types.Timecode, bool) {
	s.renderMu.Lock()
	defer s.renderMu.Unlock()

	if s.sender == nil || s.texture == nil || s.target == nil {
		return types.Timecode{}, false
	}
	if s.sender.Connections() <= 0 {
		return types.Timecode{}, false
	}
	tc := types.TimecodeFromTicks(ticks, s.frameRate)
	if s.sentVideo && tc == s.lastRenderTime {
		return tc, false
	}
	return tc, true
}

// drawRenderTarget converts the video texture into the readback layout,
// letterboxed to the frame. renderMu must be held.
func (s *Sender) drawRenderTarget() {
	p := convert.SendParams(s.frameSize, s.texture.Size(), s.linearToSRGB, s.alphaMin, s.alphaMax)
	if s.ringAlpha {
		convert.EncodeUYVA(s.target, s.texture, s.frameSize, p)
	} else {
		convert.EncodeUYVY(s.target, s.texture, s.frameSize, p)
	}
}

// TrySendAudioFrame sends buf as a planar frame when audio is enabled and
// someone is connected.
func (s *Sender) TrySendAudioFrame(buf control.AudioBuffer) {
	if !s.audioEnabled.Load() || s.changingSize.Load() {
		return
	}
	if buf.Samples <= 0 || buf.Channels <= 0 {
		return
	}
	if s.GetNumberOfConnections() <= 0 {
		return
	}

	in := buf.InterleavedAudio
	in.Timecode = buf.Ticks
	frame := audio.ToPlanar(&in)

	s.onAudioPreSend.Each(func(fn SenderFunc) { fn(s) })

	s.audioMu.Lock()
	if s.sender == nil {
		s.audioMu.Unlock()
		return
	}
	s.sender.SendAudio(frame)
	s.audioMu.Unlock()

	s.onAudioSent.Each(func(fn SenderFunc) { fn(s) })
}

// SendMetadataFrame sends data to every connected receiver. Attached
// metadata rides along with the next video frame instead.
func (s *Sender) SendMetadataFrame(data string, attachToVideo bool) bool {
	if attachToVideo {
		s.renderMu.Lock()
		defer s.renderMu.Unlock()
		if s.sender == nil {
			return false
		}
		s.ring.AddMetaData(data)
		return true
	}

	if s.transport() == nil {
		return false
	}
	s.onMetadataPreSend.Each(func(fn SenderFunc) { fn(s) })

	s.renderMu.Lock()
	snd := s.sender
	if snd != nil {
		snd.SendMetadata(&types.MetadataFrame{
			Timecode: types.TicksOfDay(time.Now()),
			Data:     data,
		})
	}
	s.renderMu.Unlock()
	if snd == nil {
		return false
	}

	s.onMetadataSent.Each(func(fn SenderFunc) { fn(s) })
	return true
}

// SendMetadataFrameAttr sends <element>data</element>.
func (s *Sender) SendMetadataFrameAttr(element, data string, attachToVideo bool) bool {
	return s.SendMetadataFrame(metadata.Element(element, data), attachToVideo)
}

// SendMetadataFrameAttrs sends <element k="v" .../>.
func (s *Sender) SendMetadataFrameAttrs(element string, attrs map[string]string, attachToVideo bool) bool {
	return s.SendMetadataFrame(metadata.ElementAttrs(element, attrs), attachToVideo)
}

// DrainMetadata delivers up to MaxMetadataPerTick upstream metadata
// frames to the OnMetadataReceived observers.
func (s *Sender) DrainMetadata() int {
	n := 0
	for n < s.opts.MaxMetadataPerTick && s.captureMetadata() {
		n++
	}
	return n
}

func (s *Sender) captureMetadata() bool {
	s.renderMu.Lock()
	snd := s.sender
	if snd == nil {
		s.renderMu.Unlock()
		return false
	}
	f, ok := snd.CaptureMetadata()
	s.renderMu.Unlock()
	if !ok {
		return false
	}
	defer snd.FreeMetadata(f)

	if f.Data != "" {
		s.onMetadataReceived.Each(func(fn MetadataFunc) { fn(s, f.Data) })
	}
	return true
}
