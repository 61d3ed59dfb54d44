// Package disk records received audio to Opus in Ogg files.
package disk

import (
	"context"
	"encoding/binary"
	"sync/atomic"
	"time"

	"github.com/Glimesh/ndiio/pkg/audio"
	"github.com/google/uuid"
	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	opus "gopkg.in/hraban/opus.v2"
)

const (
	SampleRate    = 48000
	FrameDuration = 20 * time.Millisecond

	// samples per channel in one FrameDuration block
	frameSamples = SampleRate / 50

	opusPayloadType = 111
	maxOpusPacket   = 4000
	mtu             = 1200
	queueSize       = 64
)

type Status struct {
	Path     string `json:"path"`
	Channels int    `json:"channels"`
	Packets  int64  `json:"packets"`
	Dropped  int64  `json:"dropped"`
}

// Recorder pulls PCM from whatever source its consumer is attached to,
// encodes it in 20 ms Opus blocks and writes them to an Ogg file.
type Recorder struct {
	path     string
	channels int
	log      logrus.FieldLogger

	wave       *audio.Wave
	encoder    *opus.Encoder
	packetizer rtp.Packetizer
	packetCh   chan *rtp.Packet
	open       func(path string, sampleRate, channels int) (Writer, error)

	pcm     []byte
	samples []int16
	payload []byte

	packets atomic.Int64
	dropped atomic.Int64
}

// NewRecorder prepares a recorder for path. Opus carries mono or stereo,
// anything else is recorded as stereo.
func NewRecorder(path string, channels int) (*Recorder, error) {
	if channels != 1 {
		channels = 2
	}

	enc, err := opus.NewEncoder(SampleRate, channels, opus.AppAudio)
	if err != nil {
		return nil, errors.Wrap(err, "opus encoder")
	}

	id := uuid.New()
	ssrc := binary.BigEndian.Uint32(id[:4])

	return &Recorder{
		path:     path,
		channels: channels,
		log:      logrus.StandardLogger(),

		wave:    audio.NewWave(SampleRate, channels),
		encoder: enc,
		packetizer: rtp.NewPacketizer(
			mtu,
			opusPayloadType,
			ssrc,
			&codecs.OpusPayloader{},
			rtp.NewRandomSequencer(),
			SampleRate,
		),
		packetCh: make(chan *rtp.Packet, queueSize),
		open:     NewAudioWriter,

		samples: make([]int16, frameSamples*channels),
		payload: make([]byte, maxOpusPacket),
	}, nil
}

func (r *Recorder) SetLogger(log logrus.FieldLogger) {
	r.log = log.WithField("recorder", r.path)
}

// Consumer is what gets registered with an audio source.
func (r *Recorder) Consumer() audio.Consumer {
	return r.wave
}

func (r *Recorder) Channels() int {
	return r.channels
}

// EncodeBlock pulls one block from the source, padding with silence when
// it comes up short, and packetizes the encoded result.
func (r *Recorder) EncodeBlock() ([]*rtp.Packet, error) {
	r.pcm, _ = r.wave.OnGeneratePCMAudio(r.pcm, len(r.samples))
	for i := range r.samples {
		r.samples[i] = int16(binary.LittleEndian.Uint16(r.pcm[2*i:]))
	}

	n, err := r.encoder.Encode(r.samples, r.payload)
	if err != nil {
		return nil, errors.Wrap(err, "encode opus")
	}
	return r.packetizer.Packetize(r.payload[:n], frameSamples), nil
}

// SendRTP queues p for the writer and drops it when the queue is full.
func (r *Recorder) SendRTP(p *rtp.Packet) {
	select {
	case r.packetCh <- p:
	default:
		r.dropped.Add(1)
	}
}

// Run records until ctx is done or writing fails. The file is closed on
// return.
func (r *Recorder) Run(ctx context.Context) error {
	w, err := r.open(r.path, SampleRate, r.channels)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.writeLoop(ctx, w)
	})
	g.Go(func() error {
		return r.encodeLoop(ctx)
	})
	return g.Wait()
}

func (r *Recorder) encodeLoop(ctx context.Context) error {
	ticker := time.NewTicker(FrameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			packets, err := r.EncodeBlock()
			if err != nil {
				return err
			}
			for _, p := range packets {
				r.SendRTP(p)
			}
		}
	}
}

func (r *Recorder) writeLoop(ctx context.Context, w Writer) error {
	r.log.Debug("Starting recorder")
	defer func() {
		if err := w.Close(); err != nil {
			r.log.WithError(err).Warn("Failed closing recording")
		}
		r.log.Debug("Recorder stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return r.flush(w)
		case p := <-r.packetCh:
			if err := r.write(w, p); err != nil {
				return err
			}
		}
	}
}

// flush writes whatever is still queued.
func (r *Recorder) flush(w Writer) error {
	for {
		select {
		case p := <-r.packetCh:
			if err := r.write(w, p); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

func (r *Recorder) write(w Writer, p *rtp.Packet) error {
	if err := w.WriteRTP(p); err != nil {
		return errors.Wrapf(err, "write %s", r.path)
	}
	r.packets.Add(1)
	return nil
}

func (r *Recorder) Status() Status {
	return Status{
		Path:     r.path,
		Channels: r.channels,
		Packets:  r.packets.Load(),
		Dropped:  r.dropped.Load(),
	}
}
