package timecode

import (
	"testing"

	"github.com/Glimesh/ndiio/pkg/control"
	"github.com/Glimesh/ndiio/pkg/receiver"
	"github.com/Glimesh/ndiio/pkg/transport"
	"github.com/Glimesh/ndiio/pkg/transport/loopback"
	"github.com/Glimesh/ndiio/pkg/types"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frameAt(ticks int64) *types.VideoFrame {
	return &types.VideoFrame{
		Width:     2,
		Height:    2,
		Stride:    4,
		FourCC:    types.FourCCUYVY,
		FrameRate: types.FrameRate{Num: 30, Den: 1},
		Timestamp: ticks,
		Timecode:  ticks,
		Data:      make([]byte, 8),
	}
}

func TestProviderFollowsReceiver(t *testing.T) {
	assert := assert.New(t)

	lib := loopback.New("HOST")
	defer lib.Close()
	snd, err := lib.NewSender(transport.SenderOptions{Name: "clock"})
	require.NoError(t, err)

	dispatcher := control.NewDispatcher()
	rx := receiver.New(lib, dispatcher, receiver.Options{})
	rx.Initialize(types.ConnectionDescriptor{SourceName: "HOST (clock)"}, receiver.UsageManual)
	defer rx.Shutdown()

	p := NewProvider(rx)
	require.True(t, p.Initialize())
	assert.Equal(StateClosed, p.State())
	_, ok := p.FetchTimecode()
	assert.False(ok)

	snd.SendVideoAsync(frameAt(1))
	rx.CaptureConnectedVideo()
	dispatcher.Drain()
	assert.Equal(StateSynchronizing, p.State())

	hour := int64(3600 * types.TicksPerSecond)
	snd.SendVideoAsync(frameAt(hour))
	rx.CaptureConnectedVideo()
	assert.Equal(StateSynchronized, p.State())

	ft, ok := p.FetchTimecode()
	require.True(t, ok)
	assert.Equal("01:00:00:00@30/1", ft.String())

	require.NoError(t, snd.Close())
	rx.GameTick()
	dispatcher.Drain()
	assert.Equal(StateClosed, p.State())
	_, ok = p.FetchTimecode()
	assert.False(ok)
}

func TestProviderWithoutReceiver(t *testing.T) {
	p := NewProvider(nil)
	assert.False(t, p.Initialize())
	assert.Equal(t, StateError, p.State())
	assert.Equal(t, "error", p.State().String())
}

func TestProviderLogsStateChanges(t *testing.T) {
	assert := assert.New(t)

	log, hook := logtest.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	p := NewProvider(nil)
	p.SetLogger(log)
	p.Initialize()
	p.Initialize()

	require.Len(t, hook.AllEntries(), 1)
	entry := hook.LastEntry()
	assert.Equal("Timecode provider state changed", entry.Message)
	assert.Equal("closed", entry.Data["from"])
	assert.Equal("error", entry.Data["to"])
}

func TestShutdownUnsubscribes(t *testing.T) {
	lib := loopback.New("HOST")
	defer lib.Close()
	snd, err := lib.NewSender(transport.SenderOptions{Name: "clock"})
	require.NoError(t, err)

	rx := receiver.New(lib, control.NewDispatcher(), receiver.Options{})
	rx.Initialize(types.ConnectionDescriptor{SourceName: "HOST (clock)"}, receiver.UsageManual)
	defer rx.Shutdown()

	p := NewProvider(rx)
	p.Initialize()
	p.Shutdown()

	snd.SendVideoAsync(frameAt(1))
	rx.CaptureConnectedVideo()
	assert.Equal(t, StateClosed, p.State())
}
