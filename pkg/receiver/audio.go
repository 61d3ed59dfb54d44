package receiver

import (
	"github.com/Glimesh/ndiio/pkg/audio"
)

var _ audio.Source = (*Receiver)(nil)

// GeneratePCMData fills pcm with interleaved 16-bit samples remixed to
// the consumer's channel count. With nothing queued it writes a short
// block of silence so the consumer keeps playing.
func (r *Receiver) GeneratePCMData(c audio.Consumer, pcm []byte, samplesNeeded int) int {
	r.audioMu.Lock()
	defer r.audioMu.Unlock()

	sampleRate, channels := audio.DefaultSampleRate, audio.DefaultChannels
	if c != nil {
		sampleRate, channels = c.SampleRate(), c.Channels()
	}
	if channels <= 0 {
		return 0
	}

	if r.frameSync == nil || r.desc.MuteAudio {
		return 0
	}

	available := r.frameSync.AudioQueueDepth()
	if available <= 0 {
		return audio.Silence(pcm, channels, samplesNeeded)
	}

	frames := samplesNeeded / channels
	if available < frames {
		frames = available
	}
	frame := r.frameSync.CaptureAudio(sampleRate, 0, frames)
	defer r.frameSync.FreeAudio(frame)
	return audio.GeneratePCM(pcm, frame, channels)
}

// AudioChannels reports the channel count of the queued source audio, or
// zero when nothing is queued.
func (r *Receiver) AudioChannels() int {
	r.audioMu.Lock()
	defer r.audioMu.Unlock()

	if r.frameSync == nil || r.desc.MuteAudio || r.frameSync.AudioQueueDepth() <= 0 {
		return 0
	}
	frame := r.frameSync.CaptureAudio(audio.DefaultSampleRate, 0, 0)
	defer r.frameSync.FreeAudio(frame)
	return frame.Channels
}

// RegisterAudioConsumer attaches c once and points it at this receiver.
func (r *Receiver) RegisterAudioConsumer(c audio.Consumer) {
	if c == nil {
		return
	}

	r.audioMu.Lock()
	for _, existing := range r.consumers {
		if existing == c {
			r.audioMu.Unlock()
			return
		}
	}
	r.consumers = append(r.consumers, c)
	r.audioMu.Unlock()

	c.SetConnectionSource(r)
}

func (r *Receiver) UnregisterAudioConsumer(c audio.Consumer) {
	r.audioMu.Lock()
	defer r.audioMu.Unlock()
	for i, existing := range r.consumers {
		if existing == c {
			r.consumers[i] = r.consumers[len(r.consumers)-1]
			r.consumers = r.consumers[:len(r.consumers)-1]
			return
		}
	}
}

func (r *Receiver) AudioConsumers() int {
	r.audioMu.Lock()
	defer r.audioMu.Unlock()
	return len(r.consumers)
}
