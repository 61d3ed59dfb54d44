package types

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// URLScheme identifies sources addressed through this transport
const URLScheme = "ndiio"

type Bandwidth int

const (
	BandwidthHighest Bandwidth = iota
	BandwidthLowest
	BandwidthAudioOnly
	BandwidthMetadataOnly
)

func (b Bandwidth) String() string {
	switch b {
	case BandwidthHighest:
		return "highest"
	case BandwidthLowest:
		return "lowest"
	case BandwidthAudioOnly:
		return "audio_only"
	case BandwidthMetadataOnly:
		return "metadata_only"
	}
	return fmt.Sprintf("bandwidth(%d)", int(b))
}

func ParseBandwidth(s string) (Bandwidth, error) {
	switch strings.ToLower(s) {
	case "", "highest":
		return BandwidthHighest, nil
	case "lowest":
		return BandwidthLowest, nil
	case "audio_only", "audio":
		return BandwidthAudioOnly, nil
	case "metadata_only", "metadata":
		return BandwidthMetadataOnly, nil
	}
	return BandwidthHighest, errors.Wrapf(ErrUnknownBandwidth, "%q", s)
}

// ConnectionDescriptor identifies a remote source and how to receive it.
// It is a value type; a receiver replaces it wholesale.
type ConnectionDescriptor struct {
	SourceName  string
	MachineName string
	StreamName  string
	URL         string

	Bandwidth Bandwidth

	MuteAudio bool
	MuteVideo bool
}

func (d ConnectionDescriptor) IsValid() bool {
	return d.SourceName != "" ||
		(d.MachineName != "" && d.StreamName != "") ||
		d.URL != ""
}

// Name returns the network name of the source, "MACHINE (STREAM)" when
// only the machine and stream parts are known.
func (d ConnectionDescriptor) Name() string {
	if d.SourceName != "" {
		return d.SourceName
	}
	if d.MachineName == "" && d.StreamName == "" {
		return ""
	}
	return fmt.Sprintf("%s (%s)", d.MachineName, d.StreamName)
}

// Normalize fills in whichever of SourceName or MachineName/StreamName
// can be derived from the other.
func (d ConnectionDescriptor) Normalize() ConnectionDescriptor {
	if d.SourceName != "" && d.MachineName == "" && d.StreamName == "" {
		if machine, stream, ok := SplitSourceName(d.SourceName); ok {
			d.MachineName, d.StreamName = machine, stream
		}
	} else if d.SourceName == "" && d.MachineName != "" && d.StreamName != "" {
		d.SourceName = d.Name()
	}
	return d
}

// SameSource reports whether both descriptors address the same source.
func (d ConnectionDescriptor) SameSource(o ConnectionDescriptor) bool {
	a, b := d.Normalize(), o.Normalize()
	return a.SourceName == b.SourceName &&
		a.MachineName == b.MachineName &&
		a.StreamName == b.StreamName &&
		a.URL == b.URL
}

// Address renders the descriptor as a ndiio:// URL.
func (d ConnectionDescriptor) Address() string {
	if name := d.Name(); name != "" {
		return URLScheme + "://" + name
	}
	return URLScheme + "://" + d.URL
}

func (d ConnectionDescriptor) String() string {
	return fmt.Sprintf("%s [%s]", d.Address(), d.Bandwidth)
}

// SplitSourceName splits "MACHINE (STREAM)" into its parts.
func SplitSourceName(name string) (machine, stream string, ok bool) {
	open := strings.LastIndex(name, " (")
	if open <= 0 || !strings.HasSuffix(name, ")") {
		return "", "", false
	}
	machine = name[:open]
	stream = name[open+2 : len(name)-1]
	if stream == "" {
		return "", "", false
	}
	return machine, stream, true
}

// ParseAddress is the inverse of Address.
func ParseAddress(address string) (ConnectionDescriptor, bool) {
	prefix := URLScheme + "://"
	if !strings.HasPrefix(address, prefix) {
		return ConnectionDescriptor{}, false
	}
	rest := strings.TrimPrefix(address, prefix)
	if rest == "" {
		return ConnectionDescriptor{}, false
	}
	if strings.Contains(rest, ":") && !strings.Contains(rest, " (") {
		return ConnectionDescriptor{URL: rest}, true
	}
	return ConnectionDescriptor{SourceName: rest}.Normalize(), true
}

type Tally struct {
	OnPreview bool
	OnProgram bool
}

type PerformanceCounters struct {
	VideoFrames           int64
	DroppedVideoFrames    int64
	AudioFrames           int64
	DroppedAudioFrames    int64
	MetadataFrames        int64
	DroppedMetadataFrames int64
}
