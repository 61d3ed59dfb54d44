package output

import (
	"context"
	"fmt"

	"github.com/Glimesh/ndiio/config"
	"github.com/Glimesh/ndiio/internal/outputs/relay"
	"github.com/Glimesh/ndiio/internal/outputs/testpattern"
	"github.com/Glimesh/ndiio/internal/transports"
	"github.com/Glimesh/ndiio/pkg/control"
	"github.com/Glimesh/ndiio/pkg/transport"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type Outputs []control.Output

func New(cfg config.Config, ctrl *control.Control, lib transport.Library, inputs relay.Finder, logger logrus.FieldLogger) (Outputs, error) {
	sources := cfg.Output.Sources

	metadata, err := transports.MetadataOptions(cfg)
	if err != nil {
		return nil, err
	}

	outputs := make(Outputs, 0, len(sources))

	for _, src := range sources {
		var output control.Output

		switch src.Type {
		case "testpattern":
			output = testpattern.New(src, lib, metadata, cfg.Metadata.MaxPerTick)
		case "relay":
			output = relay.New(src, lib, inputs, metadata, cfg.Metadata.MaxPerTick)
		default:
			return nil, fmt.Errorf("unsupported output source type %s", src.Type)
		}
		output.SetControl(ctrl)
		output.SetLogger(logger.WithFields(logrus.Fields{"output": src.Type, "name": src.Name}))
		outputs = append(outputs, output)
	}

	return outputs, nil
}

// Start runs every output in g.
func (out Outputs) Start(ctx context.Context, g *errgroup.Group) {
	for i := range out {
		output := out[i]
		g.Go(func() error {
			return output.Listen(ctx)
		})
	}
}

func (out Outputs) Shutdown() {
	for _, output := range out {
		output.Shutdown()
	}
}
