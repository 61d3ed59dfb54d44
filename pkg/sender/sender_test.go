package sender

import (
	"fmt"
	"image"
	"testing"

	"github.com/Glimesh/ndiio/pkg/control"
	"github.com/Glimesh/ndiio/pkg/gpu"
	"github.com/Glimesh/ndiio/pkg/metadata"
	"github.com/Glimesh/ndiio/pkg/transport"
	"github.com/Glimesh/ndiio/pkg/transport/loopback"
	"github.com/Glimesh/ndiio/pkg/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// one frame at 30/1, nudged past the boundary
const frameTicks = types.TicksPerSecond/30 + 1

type fixture struct {
	lib *loopback.Library
	s   *Sender

	videoSent int
	audioSent int
}

func small() control.BroadcastConfiguration {
	return control.BroadcastConfiguration{
		FrameSize: image.Pt(8, 4),
		FrameRate: types.FrameRate{Num: 30, Den: 1},
	}
}

func newFixture(t *testing.T, opts Options) *fixture {
	lib := loopback.New("HOST")
	t.Cleanup(func() { lib.Close() })

	if opts.Name == "" {
		opts.Name = "out"
	}
	if opts.Broadcast.FrameSize == (image.Point{}) {
		opts.Broadcast = small()
	}

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	f := &fixture{lib: lib, s: New(lib, nil, opts)}
	f.s.SetLogger(log)
	f.s.OnVideoSent(func(*Sender) { f.videoSent++ })
	f.s.OnAudioSent(func(*Sender) { f.audioSent++ })
	require.NoError(t, f.s.Initialize())
	t.Cleanup(f.s.Shutdown)
	return f
}

func (f *fixture) connect(t *testing.T) transport.Receiver {
	r, err := f.lib.NewReceiver(transport.ReceiverOptions{Name: "viewer"})
	require.NoError(t, err)
	r.Connect(types.ConnectionDescriptor{SourceName: f.lib.SourceName(f.s.SourceName())})
	return r
}

func fillWhite(tex *gpu.Texture) {
	for i := range tex.Pix {
		tex.Pix[i] = 0xff
	}
}

func TestInitializeAnnouncesCapabilities(t *testing.T) {
	assert := assert.New(t)

	f := newFixture(t, Options{EnablePTZ: true})
	assert.NoError(f.s.Initialize())

	r := f.connect(t)
	assert.Equal(1, f.s.GetNumberOfConnections())

	m, ok := r.CaptureMetadata()
	require.True(t, ok)
	assert.Equal(metadata.Capabilities(true), m.Data)

	assert.Equal(image.Pt(8, 4), f.s.VideoTexture().Size())
}

func TestEnablePTZUpdatesConnectionMetadata(t *testing.T) {
	f := newFixture(t, Options{})
	f.s.EnablePTZ(true)

	r := f.connect(t)
	m, ok := r.CaptureMetadata()
	require.True(t, ok)
	assert.Equal(t, metadata.Capabilities(true), m.Data)
}

func TestVideoRequiresConnection(t *testing.T) {
	f := newFixture(t, Options{})
	f.s.TrySendVideoFrame(0)
	assert.Equal(t, 0, f.videoSent)
}

func TestVideoSentOncePerFrame(t *testing.T) {
	assert := assert.New(t)

	f := newFixture(t, Options{})
	require.True(t, f.s.UpdateVideoTexture(fillWhite))

	r := f.connect(t)
	fs := r.NewFrameSync()

	f.s.TrySendVideoFrame(0)
	f.s.TrySendVideoFrame(frameTicks / 4)
	assert.Equal(1, f.videoSent)

	frame, ok := fs.CaptureVideo(types.FieldProgressive)
	require.True(t, ok)
	assert.Equal(8, frame.Width)
	assert.Equal(4, frame.Height)
	assert.Equal(16, frame.Stride)
	assert.Equal(types.FourCCUYVY, frame.FourCC)
	assert.Len(frame.Data, 16*4)
	assert.Greater(frame.Data[1], byte(200))

	f.s.TrySendVideoFrame(frameTicks)
	assert.Equal(2, f.videoSent)
	assert.Equal(types.Timecode{Frames: 1}, f.s.LastRenderTime())
}

func TestVideoWithAlpha(t *testing.T) {
	assert := assert.New(t)

	f := newFixture(t, Options{OutputAlpha: true})
	f.s.UpdateVideoTexture(fillWhite)
	fs := f.connect(t).NewFrameSync()

	f.s.TrySendVideoFrame(0)
	frame, ok := fs.CaptureVideo(types.FieldProgressive)
	require.True(t, ok)
	assert.Equal(types.FourCCUYVA, frame.FourCC)
	// UYVY plane followed by a full resolution alpha plane
	assert.Len(frame.Data, 16*4+8*4)
	assert.Equal(byte(0xff), frame.Data[len(frame.Data)-1])
}

func TestOddRenderTargetRoundsToPixelPairs(t *testing.T) {
	assert := assert.New(t)

	f := newFixture(t, Options{OutputAlpha: true})
	f.s.ChangeRenderTargetConfiguration(image.Pt(9, 5), types.FrameRate{Num: 30, Den: 1})
	assert.Equal(image.Pt(8, 4), f.s.FrameSize())

	fs := f.connect(t).NewFrameSync()
	f.s.TrySendVideoFrame(0)
	frame, ok := fs.CaptureVideo(types.FieldProgressive)
	require.True(t, ok)
	assert.NoError(frame.Validate())
}

func TestBroadcastChangeResizesOnce(t *testing.T) {
	assert := assert.New(t)

	device := gpu.NewCPUDevice()
	f := newFixture(t, Options{
		Device: device,
		Broadcast: control.BroadcastConfiguration{
			FrameSize: image.Pt(1920, 1080),
			FrameRate: types.FrameRate{Num: 60, Den: 1},
		},
	})

	changed := 0
	f.s.OnBroadcastConfigurationChanged(func(*Sender) { changed++ })

	f.s.ChangeBroadcastConfiguration(control.BroadcastConfiguration{
		FrameSize: image.Pt(1280, 720),
		FrameRate: types.FrameRate{Num: 30, Den: 1},
	})

	assert.Equal(1, changed)
	assert.Equal(image.Pt(1280, 720), f.s.FrameSize())
	assert.Equal(types.FrameRate{Num: 30, Den: 1}, f.s.FrameRate())
	assert.Equal(image.Pt(1280, 720), f.s.VideoTexture().Size())
	assert.Equal(2, device.Live())
}

func TestReadbackMismatchReconfigures(t *testing.T) {
	assert := assert.New(t)

	f := newFixture(t, Options{})
	f.connect(t)

	changed := 0
	f.s.OnBroadcastConfigurationChanged(func(*Sender) { changed++ })

	f.s.renderMu.Lock()
	f.s.frameSize = image.Pt(4, 4)
	f.s.renderMu.Unlock()

	f.s.TrySendVideoFrame(0)
	assert.Equal(0, f.videoSent)
	assert.Equal(1, changed)
	assert.Equal(image.Pt(8, 4), f.s.FrameSize())

	f.s.TrySendVideoFrame(0)
	assert.Equal(1, f.videoSent)
}

func TestAudioRequiresConnectionAndEnabled(t *testing.T) {
	assert := assert.New(t)

	f := newFixture(t, Options{})
	buf := control.AudioBuffer{
		Ticks: 5,
		InterleavedAudio: types.InterleavedAudio{
			SampleRate: 48000,
			Channels:   2,
			Samples:    4,
			Data:       []float32{1, -1, 1, -1, 1, -1, 1, -1},
		},
	}

	f.s.TrySendAudioFrame(buf)
	assert.Equal(0, f.audioSent)

	fs := f.connect(t).NewFrameSync()
	f.s.TrySendAudioFrame(buf)
	assert.Equal(1, f.audioSent)
	assert.Equal(4, fs.AudioQueueDepth())

	frame := fs.CaptureAudio(0, 0, 4)
	assert.Equal(2, frame.Channels)
	assert.Equal([]float32{1, 1, 1, 1}, frame.Channel(0))
	assert.Equal([]float32{-1, -1, -1, -1}, frame.Channel(1))

	f.s.EnableAudio(false)
	f.s.TrySendAudioFrame(buf)
	assert.Equal(1, f.audioSent)
}

func TestUpstreamMetadataIsBounded(t *testing.T) {
	assert := assert.New(t)

	f := newFixture(t, Options{MaxMetadataPerTick: 3})
	r := f.connect(t)

	var got []string
	f.s.OnMetadataReceived(func(_ *Sender, data string) { got = append(got, data) })

	for i := 0; i < 5; i++ {
		require.True(t, r.SendMetadata(&types.MetadataFrame{Data: fmt.Sprintf("<m%d/>", i)}))
	}
	assert.Equal(3, f.s.DrainMetadata())
	assert.Equal(2, f.s.DrainMetadata())
	assert.Equal(0, f.s.DrainMetadata())
	assert.Equal([]string{"<m0/>", "<m1/>", "<m2/>", "<m3/>", "<m4/>"}, got)
}

func TestMetadataToReceivers(t *testing.T) {
	assert := assert.New(t)

	f := newFixture(t, Options{})
	r := f.connect(t)
	fs := r.NewFrameSync()
	_, _ = r.CaptureMetadata()

	assert.True(f.s.SendMetadataFrameAttrs("tag", map[string]string{"id": "1"}, false))
	m, ok := r.CaptureMetadata()
	require.True(t, ok)
	assert.Equal(`<tag id="1"/>`, m.Data)

	assert.True(f.s.SendMetadataFrameAttr("frame", "7", true))
	f.s.TrySendVideoFrame(0)
	frame, ok := fs.CaptureVideo(types.FieldProgressive)
	require.True(t, ok)
	assert.Equal("<frame>7</frame>", frame.Metadata)

	f.s.TrySendVideoFrame(frameTicks)
	frame, _ = fs.CaptureVideo(types.FieldProgressive)
	assert.Empty(frame.Metadata)
}

func TestTallyInformation(t *testing.T) {
	assert := assert.New(t)

	f := newFixture(t, Options{})
	preview, program := f.s.GetTallyInformation(0)
	assert.False(preview)
	assert.False(program)

	r := f.connect(t)
	r.SetTally(types.Tally{OnProgram: true})
	preview, program = f.s.GetTallyInformation(0)
	assert.False(preview)
	assert.True(program)
}

func TestChangeSourceNameRepublishes(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.s.ChangeSourceName("renamed"))
	assert.Equal(t, []string{"HOST (renamed)"}, f.lib.Sources())
}

func TestDrivenByConnectionService(t *testing.T) {
	assert := assert.New(t)

	lib := loopback.New("HOST")
	defer lib.Close()

	svc := control.NewConnectionService("", control.DefaultBroadcastConfiguration())
	svc.Start()
	defer svc.Shutdown()

	s := New(lib, svc, Options{Name: "out", Broadcast: small()})
	require.NoError(t, s.Initialize())

	sent := 0
	s.OnVideoSent(func(*Sender) { sent++ })

	r, err := lib.NewReceiver(transport.ReceiverOptions{})
	require.NoError(t, err)
	r.Connect(types.ConnectionDescriptor{SourceName: "HOST (out)"})

	svc.EndRenderFrame()
	assert.Equal(1, sent)

	s.Shutdown()
	s.Shutdown()
	assert.Equal(0, s.GetNumberOfConnections())

	svc.EndRenderFrame()
	assert.Equal(1, sent)
}

func TestStatus(t *testing.T) {
	f := newFixture(t, Options{EnablePTZ: true})
	st := f.s.Status()
	assert.Equal(t, Status{
		Name:      "out",
		Width:     8,
		Height:    4,
		FrameRate: "30/1",
		Timecode:  "00:00:00:00",
		Audio:     true,
		PTZ:       true,
	}, st)
}
