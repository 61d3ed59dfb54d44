package rtp

import "errors"

var (
	ErrShortPayload = errors.New("rtp: payload shorter than its header")
	ErrUnknownPeer  = errors.New("rtp: no address for source")
)
