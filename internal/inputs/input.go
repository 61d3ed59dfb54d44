package input

import (
	"context"
	"fmt"

	"github.com/Glimesh/ndiio/config"
	"github.com/Glimesh/ndiio/internal/inputs/recv"
	"github.com/Glimesh/ndiio/internal/transports"
	"github.com/Glimesh/ndiio/pkg/control"
	"github.com/Glimesh/ndiio/pkg/receiver"
	"github.com/Glimesh/ndiio/pkg/transport"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type Inputs []control.Input

func New(cfg config.Config, ctrl *control.Control, lib transport.Library, logger logrus.FieldLogger) (Inputs, error) {
	sources := cfg.Input.Sources

	metadata, err := transports.MetadataOptions(cfg)
	if err != nil {
		return nil, err
	}

	inputs := make(Inputs, 0, len(sources))

	for _, src := range sources {
		var input control.Input

		switch src.Type {
		case "receiver":
			opts := receiver.Options{
				Name:               src.Name,
				MaxMetadataPerTick: cfg.Metadata.MaxPerTick,
				Metadata:           metadata,
			}
			in, err := recv.New(src, lib, opts, cfg.Control.RenderRate, cfg.Control.GameRate)
			if err != nil {
				return nil, err
			}
			input = in
		default:
			return nil, fmt.Errorf("unsupported input source type %s", src.Type)
		}
		input.SetControl(ctrl)
		input.SetLogger(logger.WithFields(logrus.Fields{"input": src.Type, "name": src.Name}))
		inputs = append(inputs, input)
	}

	return inputs, nil
}

// Start runs every input in g.
func (in Inputs) Start(ctx context.Context, g *errgroup.Group) {
	for i := range in {
		input := in[i]
		g.Go(func() error {
			return input.Listen(ctx)
		})
	}
}

// Find returns the input called name, or nil.
func (in Inputs) Find(name string) control.Input {
	for _, input := range in {
		if input.Name() == name {
			return input
		}
	}
	return nil
}

func (in Inputs) Shutdown() {
	for _, input := range in {
		input.Shutdown()
	}
}
