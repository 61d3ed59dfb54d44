// Package recv is the input that receives a network source: it drives a
// receiver's render and game ticks and can record its audio and follow
// its timecode.
package recv

import (
	"context"
	"time"

	"github.com/Glimesh/ndiio/config"
	"github.com/Glimesh/ndiio/pkg/control"
	"github.com/Glimesh/ndiio/pkg/disk"
	"github.com/Glimesh/ndiio/pkg/receiver"
	"github.com/Glimesh/ndiio/pkg/timecode"
	"github.com/Glimesh/ndiio/pkg/transport"
	"github.com/Glimesh/ndiio/pkg/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const statusKind = "receivers"

var (
	ErrNoControl = errors.New("input has no control")
	ErrStarted   = errors.New("input already started")
)

type Status struct {
	receiver.Status
	Timecode string       `json:"timecode_provider,omitempty"`
	Recorder *disk.Status `json:"recorder,omitempty"`
}

type Source struct {
	log     logrus.FieldLogger
	control *control.Control
	library transport.Library

	name string
	desc types.ConnectionDescriptor
	opts receiver.Options

	renderInterval time.Duration
	gameInterval   time.Duration

	withTimecode bool

	rx       *receiver.Receiver
	recorder *disk.Recorder
	timecode *timecode.Provider
}

// New prepares an input for src. The receiver itself is built once the
// control is set.
func New(src config.InputSource, lib transport.Library, opts receiver.Options, renderRate, gameRate int) (*Source, error) {
	bandwidth, err := types.ParseBandwidth(src.Bandwidth)
	if err != nil {
		return nil, errors.Wrapf(err, "input %s", src.Name)
	}

	opts.FlipAlpha = src.FlipAlpha
	opts.SRGBToLinear = src.SRGBToLinear

	s := &Source{
		log:     logrus.StandardLogger(),
		library: lib,
		name:    src.Name,
		desc: types.ConnectionDescriptor{
			SourceName:  src.SourceName,
			MachineName: src.MachineName,
			StreamName:  src.StreamName,
			URL:         src.URL,
			Bandwidth:   bandwidth,
			MuteAudio:   src.MuteAudio,
			MuteVideo:   src.MuteVideo,
		},
		opts:           opts,
		renderInterval: interval(renderRate),
		gameInterval:   interval(gameRate),
		withTimecode:   src.Timecode,
	}

	if src.Record != "" {
		s.recorder, err = disk.NewRecorder(src.Record, src.Channels)
		if err != nil {
			return nil, errors.Wrapf(err, "input %s", src.Name)
		}
	}
	return s, nil
}

func interval(rate int) time.Duration {
	if rate <= 0 {
		rate = 60
	}
	return time.Second / time.Duration(rate)
}

func (s *Source) SetControl(ctrl *control.Control) {
	s.control = ctrl
	s.rx = receiver.New(s.library, ctrl.Dispatcher(), s.opts)
	s.rx.SetLogger(s.log)
	if s.withTimecode {
		s.timecode = timecode.NewProvider(s.rx)
		s.timecode.SetLogger(s.log.WithField("component", "timecode"))
	}
}

func (s *Source) SetLogger(log logrus.FieldLogger) {
	s.log = log
	if s.rx != nil {
		s.rx.SetLogger(log)
	}
	if s.timecode != nil {
		s.timecode.SetLogger(log.WithField("component", "timecode"))
	}
	if s.recorder != nil {
		s.recorder.SetLogger(log)
	}
}

func (s *Source) Name() string {
	return s.name
}

// Receiver is nil until SetControl.
func (s *Source) Receiver() *receiver.Receiver {
	return s.rx
}

func (s *Source) Timecode() *timecode.Provider {
	return s.timecode
}

// Listen connects and ticks the receiver until ctx is done.
func (s *Source) Listen(ctx context.Context) error {
	if s.rx == nil {
		return ErrNoControl
	}
	if !s.rx.Initialize(s.desc, receiver.UsageStandalone) {
		return errors.Wrapf(ErrStarted, "input %s", s.name)
	}
	defer s.Shutdown()

	s.log.WithField("source", s.desc.Name()).Info("Receiving")
	s.control.RegisterStatus(statusKind, s.name, func() interface{} { return s.Status() })
	s.control.RegisterThumbnail(s.name, s.rx.Snapshot)

	if s.timecode != nil && !s.timecode.Initialize() {
		s.log.Warn("Timecode provider could not start")
	}

	g, ctx := errgroup.WithContext(ctx)
	if s.recorder != nil {
		s.rx.RegisterAudioConsumer(s.recorder.Consumer())
		g.Go(func() error {
			return s.recorder.Run(ctx)
		})
	}
	g.Go(func() error {
		tick(ctx, s.renderInterval, s.rx.RenderTick)
		return nil
	})
	g.Go(func() error {
		tick(ctx, s.gameInterval, s.rx.GameTick)
		return nil
	})
	return g.Wait()
}

func tick(ctx context.Context, every time.Duration, fn func()) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

// Shutdown is safe to call more than once.
func (s *Source) Shutdown() {
	if s.rx == nil {
		return
	}
	if s.timecode != nil {
		s.timecode.Shutdown()
	}
	s.rx.Shutdown()
	s.control.UnregisterStatus(statusKind, s.name)
	s.control.UnregisterThumbnail(s.name)
}

func (s *Source) Status() Status {
	st := Status{}
	if s.rx != nil {
		st.Status = s.rx.Status()
	}
	if s.timecode != nil {
		st.Timecode = s.timecode.State().String()
	}
	if s.recorder != nil {
		rec := s.recorder.Status()
		st.Recorder = &rec
	}
	return st
}
