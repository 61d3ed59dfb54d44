package control

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Output broadcasts a source. Listen runs until ctx is done.
type Output interface {
	SetControl(ctrl *Control)
	SetLogger(log logrus.FieldLogger)

	Name() string
	Listen(ctx context.Context) error
	Shutdown()
}
