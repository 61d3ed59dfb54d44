package metadata

import "errors"

var ErrRejected = errors.New("metadata handler rejected the message")
