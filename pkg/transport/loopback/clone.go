package loopback

import "github.com/Glimesh/ndiio/pkg/types"

func cloneVideo(f *types.VideoFrame) *types.VideoFrame {
	c := *f
	c.Data = append([]byte(nil), f.Data...)
	return &c
}

func cloneAudio(f *types.AudioFrame) *types.AudioFrame {
	c := *f
	c.Data = append([]float32(nil), f.Data...)
	return &c
}

func cloneMetadata(f *types.MetadataFrame) *types.MetadataFrame {
	c := *f
	return &c
}
