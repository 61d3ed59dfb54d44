package main

import (
	"context"
	"flag"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Glimesh/ndiio/config"
	inputs "github.com/Glimesh/ndiio/internal/inputs"
	outputs "github.com/Glimesh/ndiio/internal/outputs"
	"github.com/Glimesh/ndiio/internal/transports"
	"github.com/Glimesh/ndiio/pkg/control"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to the config file")
	pprofAddress := flag.String("pprof", "", "serve pprof on this address")
	flag.Parse()

	log := logrus.New()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to read config: %v", err)
	}

	level, err := logrus.ParseLevel(cfg.Control.LogLevel)
	if err != nil {
		log.Fatalf("failed to parse log level: %v", err)
	}
	log.SetLevel(level)

	if cfg.Transport.Machine == "" {
		hostname, err := os.Hostname()
		if err != nil {
			log.Fatal(err)
		}
		cfg.Transport.Machine = strings.ToUpper(hostname)
	}
	log.Debugf("Machine name: %s", cfg.Transport.Machine)

	if *pprofAddress != "" {
		go func() {
			log.Println(http.ListenAndServe(*pprofAddress, nil))
		}()
	}

	lib, err := transports.New(cfg, log)
	if err != nil {
		log.Fatalf("failed to open transport: %v", err)
	}

	ctrl := control.New(cfg, log)
	ctrl.Service().Start()

	in, err := inputs.New(cfg, ctrl, lib, log)
	if err != nil {
		log.Fatalf("failed to create inputs: %v", err)
	}

	out, err := outputs.New(cfg, ctrl, lib, in, log)
	if err != nil {
		log.Fatalf("failed to create outputs: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ctrl.Dispatcher().Run(ctx) })
	g.Go(func() error { return ctrl.Service().Run(ctx) })
	g.Go(func() error { return ctrl.StartHTTPServer(ctx) })
	in.Start(ctx, g)
	out.Start(ctx, g)

	if err := g.Wait(); err != nil {
		log.WithError(err).Error("Stopped with error")
	}

	log.Info("Exiting and cleaning up")
	out.Shutdown()
	in.Shutdown()
	ctrl.Shutdown()
	if err := lib.Close(); err != nil {
		log.WithError(err).Warn("Closing transport")
	}
}
