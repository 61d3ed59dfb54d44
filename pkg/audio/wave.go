package audio

import "sync"

// Source produces PCM for the consumers registered with it.
type Source interface {
	GeneratePCMData(c Consumer, pcm []byte, samplesNeeded int) int
	UnregisterAudioConsumer(c Consumer)
}

// Consumer pulls 16-bit interleaved PCM from a Source.
type Consumer interface {
	SampleRate() int
	Channels() int
	SetConnectionSource(s Source)
}

// Wave is a procedural audio output fed by one source at a time.
type Wave struct {
	mu         sync.Mutex
	source     Source
	sampleRate int
	channels   int
}

func NewWave(sampleRate, channels int) *Wave {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if channels <= 0 {
		channels = DefaultChannels
	}
	return &Wave{sampleRate: sampleRate, channels: channels}
}

func (w *Wave) SampleRate() int {
	return w.sampleRate
}

func (w *Wave) Channels() int {
	return w.channels
}

// SetConnectionSource switches the wave to s, leaving any previous source.
func (w *Wave) SetConnectionSource(s Source) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.source != nil && w.source != s {
		w.source.UnregisterAudioConsumer(w)
	}
	w.source = s
}

// OnGeneratePCMAudio fills out with numSamples zeroed samples, asks the
// source for data and returns the buffer and the samples generated.
func (w *Wave) OnGeneratePCMAudio(out []byte, numSamples int) ([]byte, int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	size := numSamples * 2
	if cap(out) < size {
		out = make([]byte, size)
	}
	out = out[:size]
	for i := range out {
		out[i] = 0
	}

	if w.source == nil {
		return out, 0
	}
	return out, w.source.GeneratePCMData(w, out, numSamples)
}
