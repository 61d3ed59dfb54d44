package transport

import "errors"

var (
	ErrUnavailable       = errors.New("transport library is not available")
	ErrClosed            = errors.New("transport is closed")
	ErrUnknownSource     = errors.New("unknown source")
	ErrUnknownDropPolicy = errors.New("unknown metadata drop policy")
)
