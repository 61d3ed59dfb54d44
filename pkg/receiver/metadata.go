package receiver

import (
	"time"

	"github.com/Glimesh/ndiio/pkg/metadata"
	"github.com/Glimesh/ndiio/pkg/types"
)

// SendMetadataFrame sends data upstream to the connected sender, stamped
// with the current time of day.
func (r *Receiver) SendMetadataFrame(data string) bool {
	r.metadataMu.Lock()
	defer r.metadataMu.Unlock()
	if r.recv == nil {
		return false
	}
	return r.recv.SendMetadata(&types.MetadataFrame{
		Timecode: types.TicksOfDay(time.Now()),
		Data:     data,
	})
}

// SendMetadataFrameAttr sends <element>data</element>.
func (r *Receiver) SendMetadataFrameAttr(element, data string) bool {
	return r.SendMetadataFrame(metadata.Element(element, data))
}

// SendMetadataFrameAttrs sends <element k="v" .../>.
func (r *Receiver) SendMetadataFrameAttrs(element string, attrs map[string]string) bool {
	return r.SendMetadataFrame(metadata.ElementAttrs(element, attrs))
}

// SendTallyInformation tells the sender whether this receiver is on
// preview or program.
func (r *Receiver) SendTallyInformation(onPreview, onProgram bool) bool {
	r.metadataMu.Lock()
	defer r.metadataMu.Unlock()
	if r.recv == nil {
		return false
	}
	return r.recv.SetTally(types.Tally{OnPreview: onPreview, OnProgram: onProgram})
}
