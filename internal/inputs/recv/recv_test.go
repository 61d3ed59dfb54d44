package recv

import (
	"context"
	"image"
	"path/filepath"
	"testing"
	"time"

	"github.com/Glimesh/ndiio/config"
	"github.com/Glimesh/ndiio/pkg/control"
	"github.com/Glimesh/ndiio/pkg/receiver"
	"github.com/Glimesh/ndiio/pkg/sender"
	"github.com/Glimesh/ndiio/pkg/timecode"
	"github.com/Glimesh/ndiio/pkg/transport/loopback"
	"github.com/Glimesh/ndiio/pkg/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestNewRejectsBandwidth(t *testing.T) {
	_, err := New(config.InputSource{Name: "in", Bandwidth: "most"}, nil, receiver.Options{}, 60, 60)
	assert.Error(t, err)
}

func TestListenNeedsControl(t *testing.T) {
	src, err := New(config.InputSource{Name: "in"}, nil, receiver.Options{}, 60, 60)
	require.NoError(t, err)
	assert.ErrorIs(t, src.Listen(context.Background()), ErrNoControl)
}

func TestReceivesFromSender(t *testing.T) {
	assert := assert.New(t)
	log := quietLogger()

	lib := loopback.New("HOST")
	defer lib.Close()

	var cfg config.Config
	ctrl := control.New(cfg, log)

	snd := sender.New(lib, nil, sender.Options{
		Name: "cam",
		Broadcast: control.BroadcastConfiguration{
			FrameSize: image.Pt(8, 4),
			FrameRate: types.FrameRate{Num: 30, Den: 1},
		},
	})
	snd.SetLogger(log)
	require.NoError(t, snd.Initialize())
	defer snd.Shutdown()

	src, err := New(config.InputSource{
		Name:       "in",
		SourceName: "HOST (cam)",
		Channels:   2,
		Record:     filepath.Join(t.TempDir(), "in.ogg"),
		Timecode:   true,
	}, lib, receiver.Options{}, 200, 200)
	require.NoError(t, err)
	src.SetControl(ctrl)
	src.SetLogger(log)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- src.Listen(ctx) }()

	require.Eventually(t, func() bool {
		return snd.GetNumberOfConnections() == 1
	}, time.Second, 5*time.Millisecond)

	var ticks int64
	require.Eventually(t, func() bool {
		ticks += types.TicksPerSecond/30 + 1
		snd.TrySendVideoFrame(ticks)
		return src.Receiver().Connected() && src.Timecode().State() == timecode.StateSynchronized
	}, time.Second, 5*time.Millisecond)

	assert.Equal([]string{"in"}, ctrl.StatusNames(statusKind))
	st := src.Status()
	assert.True(st.Connected)
	assert.Equal(8, st.Width)
	assert.Equal("synchronized", st.Timecode)
	require.NotNil(t, st.Recorder)
	assert.Equal(2, st.Recorder.Channels)
	assert.Equal(1, src.Receiver().AudioConsumers())

	cancel()
	select {
	case err := <-done:
		assert.NoError(err)
	case <-time.After(time.Second):
		t.Fatal("input did not stop")
	}

	assert.Empty(ctrl.StatusNames(statusKind))
	assert.Equal(0, snd.GetNumberOfConnections())
	assert.Equal(0, src.Receiver().AudioConsumers())

	src.Shutdown()
}
