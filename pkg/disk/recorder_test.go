package disk

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Glimesh/ndiio/pkg/audio"
	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rampSource struct {
	calls  int
	needed int
}

func (s *rampSource) GeneratePCMData(_ audio.Consumer, pcm []byte, samplesNeeded int) int {
	s.calls++
	s.needed = samplesNeeded
	for i := 0; i < samplesNeeded; i++ {
		binary.LittleEndian.PutUint16(pcm[2*i:], uint16(int16(i%200*100)))
	}
	return samplesNeeded
}

func (s *rampSource) UnregisterAudioConsumer(audio.Consumer) {}

type failingWriter struct {
	closed bool
}

func (w *failingWriter) WriteRTP(*rtp.Packet) error {
	return errors.New("disk full")
}

func (w *failingWriter) Close() error {
	w.closed = true
	return nil
}

func TestNewRecorderChannels(t *testing.T) {
	assert := assert.New(t)

	rec, err := NewRecorder("mono.ogg", 1)
	require.NoError(t, err)
	assert.Equal(1, rec.Channels())
	assert.Equal(1, rec.Consumer().Channels())
	assert.Equal(SampleRate, rec.Consumer().SampleRate())

	rec, err = NewRecorder("surround.ogg", 6)
	require.NoError(t, err)
	assert.Equal(2, rec.Channels())
}

func TestEncodeBlockPullsFromSource(t *testing.T) {
	assert := assert.New(t)

	rec, err := NewRecorder("out.ogg", 2)
	require.NoError(t, err)

	src := &rampSource{}
	rec.Consumer().SetConnectionSource(src)

	first, err := rec.EncodeBlock()
	require.NoError(t, err)
	require.NotEmpty(t, first)
	assert.Equal(1, src.calls)
	assert.Equal(frameSamples*2, src.needed)
	assert.Equal(uint8(opusPayloadType), first[0].PayloadType)
	assert.NotEmpty(first[0].Payload)

	second, err := rec.EncodeBlock()
	require.NoError(t, err)
	require.NotEmpty(t, second)
	assert.Equal(first[0].Timestamp+frameSamples, second[0].Timestamp)
	assert.Equal(first[len(first)-1].SequenceNumber+1, second[0].SequenceNumber)
}

func TestEncodeBlockWithoutSource(t *testing.T) {
	rec, err := NewRecorder("out.ogg", 2)
	require.NoError(t, err)

	packets, err := rec.EncodeBlock()
	require.NoError(t, err)
	assert.NotEmpty(t, packets)
}

func TestSendRTPDropsWhenFull(t *testing.T) {
	rec, err := NewRecorder("out.ogg", 2)
	require.NoError(t, err)

	for i := 0; i < queueSize+3; i++ {
		rec.SendRTP(&rtp.Packet{})
	}
	assert.Equal(t, int64(3), rec.Status().Dropped)
}

func TestRunWritesOggFile(t *testing.T) {
	assert := assert.New(t)

	path := filepath.Join(t.TempDir(), "rec.ogg")
	rec, err := NewRecorder(path, 2)
	require.NoError(t, err)
	rec.Consumer().SetConnectionSource(&rampSource{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*FrameDuration)
	defer cancel()
	require.NoError(t, rec.Run(ctx))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(len(data) > 4)
	assert.Equal("OggS", string(data[:4]))
	assert.Greater(rec.Status().Packets, int64(0))
}

func TestRunStopsOnWriteError(t *testing.T) {
	rec, err := NewRecorder("out.ogg", 2)
	require.NoError(t, err)

	w := &failingWriter{}
	rec.open = func(string, int, int) (Writer, error) { return w, nil }

	err = rec.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.True(t, w.closed)
}

func TestRunFailsWhenFileCannotBeCreated(t *testing.T) {
	rec, err := NewRecorder(filepath.Join(t.TempDir(), "missing", "rec.ogg"), 2)
	require.NoError(t, err)
	assert.Error(t, rec.Run(context.Background()))
}
