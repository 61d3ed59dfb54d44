// Package testpattern broadcasts colour bars with a running timecode, an
// optional alpha ramp, a steerable digital PTZ camera and a test tone.
package testpattern

import (
	"context"
	"image"
	"math"
	"sync"
	"time"

	"github.com/Glimesh/ndiio/config"
	"github.com/Glimesh/ndiio/pkg/control"
	"github.com/Glimesh/ndiio/pkg/gpu"
	"github.com/Glimesh/ndiio/pkg/ptz"
	"github.com/Glimesh/ndiio/pkg/sender"
	"github.com/Glimesh/ndiio/pkg/transport"
	"github.com/Glimesh/ndiio/pkg/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	statusKind = "senders"

	toneFrequency = 1000.0
	toneLevel     = 0.1
	toneChannels  = 2
	toneBlock     = 20 * time.Millisecond
	ptzInterval   = time.Second / 60
)

var ErrNoControl = errors.New("output has no control")

type Source struct {
	log     logrus.FieldLogger
	control *control.Control
	library transport.Library

	name string
	text string
	opts sender.Options

	snd        *sender.Sender
	camera     *ptz.Camera
	controller *ptz.Controller

	// pattern is drawn once per size and copied, or filmed by the camera,
	// into the sender texture on every frame.
	mu      sync.Mutex
	pattern *gpu.Texture

	phase float64
}

func New(src config.OutputSource, lib transport.Library, metadata transport.MetadataOptions, maxMetadataPerTick int) *Source {
	s := &Source{
		log:     logrus.StandardLogger(),
		library: lib,
		name:    src.Name,
		text:    src.Text,
		opts: sender.Options{
			Name:               src.Name,
			Address:            src.Address,
			OutputAlpha:        src.Alpha,
			AlphaMin:           src.AlphaMin,
			AlphaMax:           src.AlphaMax,
			LinearToSRGB:       src.LinearToSRGB,
			EnablePTZ:          src.PTZ,
			DisableAudio:       src.NoAudio,
			MaxMetadataPerTick: maxMetadataPerTick,
			Metadata:           metadata,
		},
		pattern: &gpu.Texture{},
	}
	if src.Width > 0 && src.Height > 0 {
		s.opts.Broadcast.FrameSize = image.Pt(src.Width, src.Height)
	}
	if s.text == "" {
		s.text = src.Name
	}
	if src.PTZ {
		s.camera = ptz.NewCamera()
		s.controller = ptz.NewController(s.camera, ptz.DefaultOptions())
	}
	return s
}

func (s *Source) SetControl(ctrl *control.Control) {
	s.control = ctrl
}

func (s *Source) SetLogger(log logrus.FieldLogger) {
	s.log = log
	if s.controller != nil {
		s.controller.SetLogger(log)
	}
}

func (s *Source) Name() string {
	return s.name
}

// Sender is nil until Listen.
func (s *Source) Sender() *sender.Sender {
	return s.snd
}

func (s *Source) Camera() *ptz.Camera {
	return s.camera
}

func (s *Source) Listen(ctx context.Context) error {
	if s.control == nil {
		return ErrNoControl
	}

	service := s.control.Service()
	if s.opts.Broadcast.FrameSize == (image.Point{}) {
		s.opts.Broadcast = service.Broadcast()
	} else {
		s.opts.Broadcast.FrameRate = service.Broadcast().FrameRate
	}

	s.snd = sender.New(s.library, service, s.opts)
	s.snd.SetLogger(s.log)
	if err := s.snd.Initialize(); err != nil {
		return err
	}
	defer s.Shutdown()

	s.snd.OnVideoPreSend(func(snd *sender.Sender) { s.Render() })
	if s.controller != nil {
		s.controller.Attach(s.snd)
	}

	s.log.WithField("source", s.snd.SourceName()).Info("Broadcasting test pattern")
	s.control.RegisterStatus(statusKind, s.name, func() interface{} { return s.snd.Status() })
	s.control.RegisterThumbnail(s.name, s.snd.Snapshot)

	g, ctx := errgroup.WithContext(ctx)
	if s.controller != nil {
		g.Go(func() error {
			ticker := time.NewTicker(ptzInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					s.controller.Tick(ptzInterval)
				}
			}
		})
	}
	if !s.opts.DisableAudio {
		g.Go(func() error {
			ticker := time.NewTicker(toneBlock)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					service.SubmitAudio(control.AudioBuffer{InterleavedAudio: s.Tone(toneBlock)})
				}
			}
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		return nil
	})
	return g.Wait()
}

// Render draws the next frame into the sender texture.
func (s *Source) Render() {
	if s.snd == nil {
		return
	}
	label := s.text + " " + s.snd.LastRenderTime().String()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snd.UpdateVideoTexture(func(tex *gpu.Texture) {
		if s.pattern.Resize(tex.Width, tex.Height) {
			DrawBars(s.pattern, s.opts.OutputAlpha)
		}
		if s.camera != nil {
			s.camera.Render(tex, s.pattern)
		} else {
			copy(tex.Pix, s.pattern.Pix)
		}
		DrawText(tex, label)
	})
}

// Tone returns d worth of the test tone, continuing from the last call.
func (s *Source) Tone(d time.Duration) types.InterleavedAudio {
	const rate = 48000
	samples := int(d * rate / time.Second)
	data := make([]float32, samples*toneChannels)

	s.mu.Lock()
	step := 2 * math.Pi * toneFrequency / rate
	for i := 0; i < samples; i++ {
		v := float32(toneLevel * math.Sin(s.phase))
		for c := 0; c < toneChannels; c++ {
			data[i*toneChannels+c] = v
		}
		s.phase = math.Mod(s.phase+step, 2*math.Pi)
	}
	s.mu.Unlock()

	return types.InterleavedAudio{
		SampleRate: rate,
		Channels:   toneChannels,
		Samples:    samples,
		Data:       data,
	}
}

func (s *Source) Shutdown() {
	if s.snd == nil {
		return
	}
	s.snd.Shutdown()
	s.control.UnregisterStatus(statusKind, s.name)
	s.control.UnregisterThumbnail(s.name)
}
