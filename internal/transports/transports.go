// Package transports opens the transport library named in the config.
package transports

import (
	"github.com/Glimesh/ndiio/config"
	"github.com/Glimesh/ndiio/pkg/transport"
	"github.com/Glimesh/ndiio/pkg/transport/loopback"
	"github.com/Glimesh/ndiio/pkg/transport/rtp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// New opens the configured library. Any failure wraps
// transport.ErrUnavailable.
func New(cfg config.Config, logger logrus.FieldLogger) (transport.Library, error) {
	log := logger.WithField("transport", cfg.Transport.Type)

	switch cfg.Transport.Type {
	case "loopback":
		lib := loopback.New(cfg.Transport.Machine)
		lib.SetLogger(log)
		return lib, nil
	case "rtp":
		lib := rtp.New(rtp.Options{
			Bind:      cfg.Transport.Bind,
			Peers:     cfg.Transport.Peers,
			MTU:       cfg.Transport.MTU,
			KeepAlive: cfg.Transport.KeepAlive,
			Timeout:   cfg.Transport.Timeout,
		})
		lib.SetLogger(log)
		return lib, nil
	default:
		return nil, errors.Wrapf(transport.ErrUnavailable, "transport type %q", cfg.Transport.Type)
	}
}

// MetadataOptions builds the inbound metadata queue settings shared by
// every receiver and sender.
func MetadataOptions(cfg config.Config) (transport.MetadataOptions, error) {
	policy, err := transport.ParseDropPolicy(cfg.Metadata.DropPolicy)
	if err != nil {
		return transport.MetadataOptions{}, errors.Wrapf(err, "metadata drop_policy %q", cfg.Metadata.DropPolicy)
	}
	return transport.MetadataOptions{
		QueueSize: cfg.Metadata.QueueSize,
		Policy:    policy,
	}, nil
}
