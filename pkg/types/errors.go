package types

import "github.com/pkg/errors"

var (
	ErrUnknownBandwidth = errors.New("unknown bandwidth mode")
	ErrInvalidFrame     = errors.New("invalid video frame")
)
