package rtp

import (
	"fmt"
	"strings"

	"github.com/Glimesh/ndiio/pkg/types"
	"github.com/pion/rtcp"
)

// subscription is what a receiver announces in every keep-alive.
type subscription struct {
	ssrc      uint32
	name      string
	tally     types.Tally
	bandwidth types.Bandwidth
}

func (s subscription) note() string {
	return fmt.Sprintf("program=%t;preview=%t;bandwidth=%s", s.tally.OnProgram, s.tally.OnPreview, s.bandwidth)
}

func parseNote(note string, s *subscription) {
	for _, field := range strings.Split(note, ";") {
		k, v, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch k {
		case "program":
			s.tally.OnProgram = v == "true"
		case "preview":
			s.tally.OnPreview = v == "true"
		case "bandwidth":
			if bw, err := types.ParseBandwidth(v); err == nil {
				s.bandwidth = bw
			}
		}
	}
}

// keepAlive is the compound packet a receiver sends to stay subscribed: an
// empty receiver report and a description carrying its name and tally.
func keepAlive(s subscription) ([]byte, error) {
	return rtcp.Marshal([]rtcp.Packet{
		&rtcp.ReceiverReport{SSRC: s.ssrc},
		&rtcp.SourceDescription{Chunks: []rtcp.SourceDescriptionChunk{{
			Source: s.ssrc,
			Items: []rtcp.SourceDescriptionItem{
				{Type: rtcp.SDESCNAME, Text: s.name},
				{Type: rtcp.SDESNote, Text: s.note()},
			},
		}}},
	})
}

// announce is the sender's answer to a keep-alive.
func announce(ssrc uint32, name string) ([]byte, error) {
	return rtcp.Marshal([]rtcp.Packet{
		&rtcp.SourceDescription{Chunks: []rtcp.SourceDescriptionChunk{{
			Source: ssrc,
			Items:  []rtcp.SourceDescriptionItem{{Type: rtcp.SDESCNAME, Text: name}},
		}}},
	})
}

func goodbye(ssrc uint32) ([]byte, error) {
	return rtcp.Marshal([]rtcp.Packet{
		&rtcp.Goodbye{Sources: []uint32{ssrc}, Reason: "closed"},
	})
}

type controlMessage struct {
	sub subscription
	bye bool
}

func parseControl(buf []byte) (controlMessage, error) {
	var msg controlMessage
	pkts, err := rtcp.Unmarshal(buf)
	if err != nil {
		return msg, err
	}
	for _, p := range pkts {
		switch p := p.(type) {
		case *rtcp.ReceiverReport:
			msg.sub.ssrc = p.SSRC
		case *rtcp.SourceDescription:
			for _, c := range p.Chunks {
				if msg.sub.ssrc == 0 {
					msg.sub.ssrc = c.Source
				}
				for _, item := range c.Items {
					switch item.Type {
					case rtcp.SDESCNAME:
						msg.sub.name = item.Text
					case rtcp.SDESNote:
						parseNote(item.Text, &msg.sub)
					}
				}
			}
		case *rtcp.Goodbye:
			msg.bye = true
			if len(p.Sources) > 0 {
				msg.sub.ssrc = p.Sources[0]
			}
		}
	}
	return msg, nil
}

// isControl tells RTCP from RTP on a shared socket by the packet type
// byte.
func isControl(buf []byte) bool {
	return len(buf) >= 2 && buf[1] >= 192 && buf[1] <= 223
}
