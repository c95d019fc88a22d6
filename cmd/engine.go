package cmd

import (
	"fmt"

	"github.com/rtctunnel/rtcbackend/internal/app"
	"github.com/rtctunnel/rtcbackend/internal/backend"
	"github.com/rtctunnel/rtcbackend/internal/engine/fake"
	"github.com/rtctunnel/rtcbackend/internal/engine/pion"
	"github.com/rtctunnel/rtcbackend/internal/runloop"
)

// newFactory creates the named engine. Its callbacks are delivered on loop.
func newFactory(cfg *app.Config, name string, loop *runloop.Loop) (*backend.Factory, error) {
	switch name {
	case app.EngineFake:
		return backend.NewFactory(fake.New(fake.WithAutoRespond(loop))), nil
	case app.EnginePion:
		opts := []pion.Option{
			pion.WithSignaling(loop),
			pion.WithLoopbackCandidates(cfg.Pion.LoopbackCandidates),
			pion.WithMulticastDNS(cfg.Pion.MulticastDNS),
		}
		if cfg.Pion.UDPPortMax > 0 {
			opts = append(opts, pion.WithUDPPortRange(cfg.Pion.UDPPortMin, cfg.Pion.UDPPortMax))
		}
		engine, err := pion.New(opts...)
		if err != nil {
			return nil, err
		}
		return backend.NewFactory(engine), nil
	}
	return nil, fmt.Errorf("unknown engine %q", name)
}

// loadConfig loads the config file. The fake engine runs without one.
func loadConfig(engine string) (*app.Config, error) {
	cfg, err := app.LoadConfig(options.configFile)
	if err != nil {
		if engine == app.EngineFake {
			return &app.Config{Engine: app.EngineFake}, nil
		}
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	return cfg, nil
}
