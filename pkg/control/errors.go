package control

import "errors"

var (
	ErrUnknownServerType = errors.New("unknown http server type")
	ErrUnknownThumbnail  = errors.New("no thumbnail source by that name")
	ErrNoPicture         = errors.New("no picture yet")
)
