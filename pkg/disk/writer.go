package disk

import (
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3/pkg/media/oggwriter"
	"github.com/pkg/errors"
)

// Writer persists encoded RTP payloads.
type Writer interface {
	WriteRTP(p *rtp.Packet) error
	Close() error
}

// NewAudioWriter returns a writer storing Opus packets in an Ogg file at
// path.
func NewAudioWriter(path string, sampleRate, channels int) (Writer, error) {
	w, err := oggwriter.New(path, uint32(sampleRate), uint16(channels))
	if err != nil {
		return nil, errors.Wrapf(err, "create %s", path)
	}
	return w, nil
}
