package testpattern

import (
	"context"
	"testing"
	"time"

	"github.com/Glimesh/ndiio/config"
	"github.com/Glimesh/ndiio/pkg/control"
	"github.com/Glimesh/ndiio/pkg/gpu"
	"github.com/Glimesh/ndiio/pkg/transport"
	"github.com/Glimesh/ndiio/pkg/transport/loopback"
	"github.com/Glimesh/ndiio/pkg/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrawBars(t *testing.T) {
	assert := assert.New(t)

	tex := gpu.NewTexture(70, 30)
	DrawBars(tex, false)
	assert.Equal([]byte{191, 191, 191, 255}, tex.Texel(0, 0))
	assert.Equal([]byte{0, 191, 191, 255}, tex.Texel(10, 0))
	assert.Equal([]byte{191, 0, 0, 255}, tex.Texel(69, 19))
	assert.Equal([]byte{0, 0, 0, 255}, tex.Texel(0, 20))
	assert.Equal([]byte{255, 255, 255, 255}, tex.Texel(69, 29))

	DrawBars(tex, true)
	assert.Equal(byte(0), tex.Texel(0, 29)[3])
	assert.Equal(byte(255), tex.Texel(69, 29)[3])
	assert.Equal(byte(255), tex.Texel(0, 0)[3])
}

func TestDrawText(t *testing.T) {
	tex := gpu.NewTexture(64, 32)
	DrawText(tex, "ndi")

	lit := 0
	for i := 0; i < len(tex.Pix); i += 4 {
		if tex.Pix[i] == 0xff {
			lit++
		}
	}
	assert.Greater(t, lit, 0)
	assert.Equal(t, []byte{0, 0, 0, 0}, tex.Texel(0, 0))
}

func TestTone(t *testing.T) {
	assert := assert.New(t)

	s := New(config.OutputSource{Name: "bars"}, nil, transport.MetadataOptions{}, 0)
	a := s.Tone(10 * time.Millisecond)
	assert.Equal(480, a.Samples)
	assert.Equal(2, a.Channels)
	assert.Len(a.Data, 960)
	assert.Equal(float32(0), a.Data[0])
	assert.Equal(a.Data[2], a.Data[3])
	for _, v := range a.Data {
		assert.LessOrEqual(v, float32(toneLevel))
	}

	// a quarter cycle later the tone peaks
	s.Tone(250 * time.Microsecond)
	b := s.Tone(time.Millisecond)
	assert.InDelta(toneLevel, b.Data[0], 1e-6)
}

type harness struct {
	lib  *loopback.Library
	ctrl *control.Control
	src  *Source
}

func start(t *testing.T, out config.OutputSource) *harness {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	lib := loopback.New("HOST")
	t.Cleanup(func() { lib.Close() })

	var cfg config.Config
	cfg.Broadcast.Width = 320
	cfg.Broadcast.Height = 240
	cfg.Broadcast.FrameRateNum = 30
	cfg.Broadcast.FrameRateDen = 1
	ctrl := control.New(cfg, log)
	ctrl.Service().Start()
	t.Cleanup(ctrl.Shutdown)

	src := New(out, lib, transport.MetadataOptions{}, 0)
	src.SetControl(ctrl)
	src.SetLogger(log)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- src.Listen(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
		assert.Empty(t, ctrl.StatusNames(statusKind))
	})

	require.Eventually(t, func() bool {
		return len(ctrl.StatusNames(statusKind)) == 1
	}, time.Second, 5*time.Millisecond)
	return &harness{lib: lib, ctrl: ctrl, src: src}
}

func TestBroadcastsPattern(t *testing.T) {
	assert := assert.New(t)

	h := start(t, config.OutputSource{Name: "bars", NoAudio: true})
	r, err := h.lib.NewReceiver(transport.ReceiverOptions{})
	require.NoError(t, err)
	defer r.Close()
	r.Connect(types.ConnectionDescriptor{SourceName: "HOST (bars)"})
	fs := r.NewFrameSync()

	h.ctrl.Service().EndRenderFrame()

	frame, ok := fs.CaptureVideo(types.FieldProgressive)
	require.True(t, ok)
	assert.Equal(320, frame.Width)
	assert.Equal(240, frame.Height)
	assert.Equal(types.FourCCUYVY, frame.FourCC)

	tex := h.src.Sender().VideoTexture()
	assert.Equal([]byte{191, 191, 191, 255}, tex.Texel(0, 0))
	assert.Equal([]byte{0, 0, 0, 255}, tex.Texel(0, 239))
}

func TestCustomSizeAndAlpha(t *testing.T) {
	assert := assert.New(t)

	h := start(t, config.OutputSource{Name: "key", Width: 640, Height: 360, Alpha: true, NoAudio: true})
	r, err := h.lib.NewReceiver(transport.ReceiverOptions{})
	require.NoError(t, err)
	defer r.Close()
	r.Connect(types.ConnectionDescriptor{SourceName: "HOST (key)"})
	fs := r.NewFrameSync()

	h.ctrl.Service().EndRenderFrame()

	frame, ok := fs.CaptureVideo(types.FieldProgressive)
	require.True(t, ok)
	assert.Equal(640, frame.Width)
	assert.Equal(types.FourCCUYVA, frame.FourCC)
	assert.Equal(byte(0), h.src.Sender().VideoTexture().Texel(0, 359)[3])
}

func TestPTZFromReceiver(t *testing.T) {
	h := start(t, config.OutputSource{Name: "cam", PTZ: true, NoAudio: true})
	r, err := h.lib.NewReceiver(transport.ReceiverOptions{})
	require.NoError(t, err)
	defer r.Close()
	r.Connect(types.ConnectionDescriptor{SourceName: "HOST (cam)"})

	require.True(t, r.SendMetadata(&types.MetadataFrame{Data: `<ntk_ptz_zoom_speed zoom_speed="1"/>`}))

	assert.Eventually(t, func() bool {
		h.ctrl.Service().EndRenderFrame()
		return h.src.Camera().PTZState().FieldOfView < 90
	}, time.Second, 10*time.Millisecond)
}
