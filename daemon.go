package main

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type Configuration struct {
	StateDir         string        `envconfig:"default=/run/evpn-sph"`
	StatusDir        string        `envconfig:"default=/run/frr/evpn-mh"`
	RulesetPath      string        `envconfig:"default=/run/nftables_evpn_sph.conf"`
	TickInterval     time.Duration `envconfig:"default=500ms"`
	DebounceInterval time.Duration `envconfig:"default=500ms"`
	RefreshPeriod    time.Duration `envconfig:"default=30s"`
}

type Daemon struct {
	Config  Configuration
	cp      ControlPlane
	network NetworkStrategy
}

func NewDaemon(config Configuration, cp ControlPlane, network NetworkStrategy) *Daemon {
	return &Daemon{
		Config:  config,
		cp:      cp,
		network: network,
	}
}

const (
	readyAttempts = 20
	readyDelay    = 500 * time.Millisecond
)

// WaitReady blocks until FRR and nftables answer, or fails after a bounded
// number of attempts. The daemon is useless before both are up.
func (d *Daemon) WaitReady(ctx context.Context) error {
	err := retry.Do(
		d.cp.Ready,
		retry.Context(ctx),
		retry.Attempts(readyAttempts),
		retry.Delay(readyDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return errors.Wrap(err, "frr not ready")
	}
	err = retry.Do(
		d.network.Ready,
		retry.Context(ctx),
		retry.Attempts(readyAttempts),
		retry.Delay(readyDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return errors.Wrap(err, "nftables not ready")
	}
	return nil
}

func (d *Daemon) Run(ctx context.Context) error {
	if err := d.WaitReady(ctx); err != nil {
		return err
	}
	log.Info().Msg("frr and nftables ready")

	reconciler := NewReconciler(d.Config, d.cp, d.network)
	return reconciler.Run(ctx)
}
