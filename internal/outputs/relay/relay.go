// Package relay re-broadcasts what one of the inputs receives under a new
// source name, paced by the input's own frames.
package relay

import (
	"context"
	"image"
	"time"

	"github.com/Glimesh/ndiio/config"
	"github.com/Glimesh/ndiio/pkg/audio"
	"github.com/Glimesh/ndiio/pkg/control"
	"github.com/Glimesh/ndiio/pkg/gpu"
	"github.com/Glimesh/ndiio/pkg/receiver"
	"github.com/Glimesh/ndiio/pkg/sender"
	"github.com/Glimesh/ndiio/pkg/transport"
	"github.com/Glimesh/ndiio/pkg/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/draw"
)

const statusKind = "senders"

var (
	ErrNoControl    = errors.New("output has no control")
	ErrUnknownInput = errors.New("unknown input")
)

// Finder looks inputs up by name.
type Finder interface {
	Find(name string) control.Input
}

// receiverInput is an input that exposes its receiver.
type receiverInput interface {
	Receiver() *receiver.Receiver
}

type Source struct {
	log     logrus.FieldLogger
	control *control.Control
	library transport.Library
	inputs  Finder

	name  string
	input string
	opts  sender.Options

	snd     *sender.Sender
	rx      *receiver.Receiver
	handles []control.Handle
	now     func() time.Time
}

func New(src config.OutputSource, lib transport.Library, inputs Finder, metadata transport.MetadataOptions, maxMetadataPerTick int) *Source {
	return &Source{
		log:     logrus.StandardLogger(),
		library: lib,
		inputs:  inputs,
		name:    src.Name,
		input:   src.Input,
		opts: sender.Options{
			Name:               src.Name,
			Address:            src.Address,
			OutputAlpha:        src.Alpha,
			AlphaMin:           src.AlphaMin,
			AlphaMax:           src.AlphaMax,
			LinearToSRGB:       src.LinearToSRGB,
			DisableAudio:       src.NoAudio,
			MaxMetadataPerTick: maxMetadataPerTick,
			Metadata:           metadata,
		},
		now: time.Now,
	}
}

func (s *Source) SetControl(ctrl *control.Control) {
	s.control = ctrl
}

func (s *Source) SetLogger(log logrus.FieldLogger) {
	s.log = log
}

func (s *Source) Name() string {
	return s.name
}

// Sender is nil until Listen.
func (s *Source) Sender() *sender.Sender {
	return s.snd
}

func (s *Source) receiver() (*receiver.Receiver, error) {
	in := s.inputs.Find(s.input)
	if in == nil {
		return nil, errors.Wrapf(ErrUnknownInput, "relay %s: %q", s.name, s.input)
	}
	ri, ok := in.(receiverInput)
	if !ok || ri.Receiver() == nil {
		return nil, errors.Wrapf(ErrUnknownInput, "relay %s: %q has no receiver", s.name, s.input)
	}
	return ri.Receiver(), nil
}

// Listen forwards every new video frame and audio block of the input
// until ctx is done.
func (s *Source) Listen(ctx context.Context) error {
	if s.control == nil {
		return ErrNoControl
	}
	rx, err := s.receiver()
	if err != nil {
		return err
	}
	s.rx = rx

	if size := rx.Resolution(); size.X > 0 && size.Y > 0 {
		s.opts.Broadcast.FrameSize = size
		s.opts.Broadcast.FrameRate = rx.FrameRate()
	} else {
		s.opts.Broadcast = s.control.Service().Broadcast()
	}

	// Paced by the input, not the connection service.
	s.snd = sender.New(s.library, nil, s.opts)
	s.snd.SetLogger(s.log)
	if err := s.snd.Initialize(); err != nil {
		return err
	}
	defer s.Shutdown()

	s.log.WithFields(logrus.Fields{
		"source": s.snd.SourceName(),
		"input":  s.input,
	}).Info("Relaying input")
	s.handles = append(s.handles,
		rx.OnVideoFormatChanged(s.formatChanged),
		rx.OnVideo(s.forwardVideo),
		rx.OnAudio(s.forwardAudio),
		rx.OnMetadata(s.forwardMetadata),
	)
	s.control.RegisterStatus(statusKind, s.name, func() interface{} { return s.snd.Status() })
	s.control.RegisterThumbnail(s.name, s.snd.Snapshot)

	<-ctx.Done()
	return nil
}

func (s *Source) formatChanged(rx *receiver.Receiver, size image.Point) {
	s.snd.ChangeBroadcastConfiguration(control.BroadcastConfiguration{
		FrameSize: size,
		FrameRate: rx.FrameRate(),
	})
}

func (s *Source) forwardVideo(rx *receiver.Receiver, _ *types.VideoFrame) {
	src := rx.Texture()
	if src == nil {
		return
	}
	s.snd.UpdateVideoTexture(func(dst *gpu.Texture) {
		Blit(dst, src)
	})
	s.snd.TrySendVideoFrame(types.TicksOfDay(s.now()))
}

func (s *Source) forwardAudio(_ *receiver.Receiver, frame *types.AudioFrame) {
	s.snd.TrySendAudioFrame(control.AudioBuffer{
		Ticks:            types.TicksOfDay(s.now()),
		InterleavedAudio: *audio.Interleave(frame),
	})
}

// forwardMetadata passes on standalone messages. Attached ones already
// rode in on a frame and go out with the next one.
func (s *Source) forwardMetadata(_ *receiver.Receiver, data string, attached bool) {
	s.snd.SendMetadataFrame(data, attached)
}

// Blit copies src over dst, scaling when the sizes differ.
func Blit(dst, src *gpu.Texture) {
	if dst.Size() == src.Size() {
		copy(dst.Pix, src.Pix)
		return
	}
	draw.ApproxBiLinear.Scale(dst.View(), dst.View().Bounds(), src.View(), src.View().Bounds(), draw.Src, nil)
}

func (s *Source) Shutdown() {
	if s.rx != nil {
		for _, h := range s.handles {
			s.rx.RemoveObserver(h)
		}
		s.handles = nil
	}
	if s.snd == nil {
		return
	}
	s.snd.Shutdown()
	s.control.UnregisterStatus(statusKind, s.name)
	s.control.UnregisterThumbnail(s.name)
}
