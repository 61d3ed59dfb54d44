package control

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Input receives a network source. Listen drives its capture ticks until
// ctx is done.
type Input interface {
	SetControl(ctrl *Control)
	SetLogger(log logrus.FieldLogger)

	Name() string
	Listen(ctx context.Context) error
	Shutdown()
}
