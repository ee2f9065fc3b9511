package main

import (
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Handler performs the minimal per-interface enforcement change for one
// DF-role-change event. Each invocation is a separate short-lived process;
// rapid retriggers for the same interface are collapsed by the token
// protocol, not by locking.
type Handler struct {
	config   Configuration
	cp       ControlPlane
	network  NetworkStrategy
	state    StateDir
	sleep    func(time.Duration)
	nowNanos func() int64
}

func NewHandler(config Configuration, cp ControlPlane, network NetworkStrategy) *Handler {
	return &Handler{
		config:   config,
		cp:       cp,
		network:  network,
		state:    StateDir{Dir: config.StateDir},
		sleep:    time.Sleep,
		nowNanos: func() int64 { return time.Now().UnixNano() },
	}
}

func (h *Handler) Run(iface string, nonDf bool) error {
	desired := Df
	if nonDf {
		desired = NonDf
	}

	token := Token{Nanos: h.nowNanos(), State: desired}
	if err := h.state.WriteToken(iface, token); err != nil {
		return errors.Wrap(err, "could not write token")
	}

	h.sleep(h.config.DebounceInterval)

	current, ok, err := h.state.ReadToken(iface)
	if err != nil {
		return errors.Wrap(err, "could not re-read token")
	}
	if !ok || current != token {
		// A newer trigger owns the transition now.
		log.Debug().Str("interface", iface).Stringer("status", desired).Msg("handler: superseded by newer trigger")
		return nil
	}

	last, ok, err := h.state.ReadState(iface)
	if err != nil {
		return errors.Wrap(err, "could not read persisted state")
	}
	if ok && last == desired {
		log.Debug().Str("interface", iface).Stringer("status", desired).Msg("handler: state already applied")
		return nil
	}

	tableExists := h.network.TableExists("netdev", interfaceTableName(iface))
	vteps, err := h.cp.InterfaceVteps(iface)
	if err != nil {
		return errors.Wrap(err, "could not query vteps")
	}
	if len(vteps) == 0 {
		// A rule scoped to zero VTEPs would match nothing; treat as
		// insufficient information and leave everything untouched.
		log.Warn().Str("interface", iface).Msg("handler: no vteps known, aborting")
		return nil
	}

	switch desired {
	case NonDf:
		if tableExists {
			if err = h.network.DeleteInterfaceTables(iface); err != nil {
				return errors.Wrap(err, "could not delete tables")
			}
		}
		if err = h.network.SetFlood(iface, false); err != nil {
			return errors.Wrap(err, "could not disable flooding")
		}
	case Df:
		if !tableExists {
			if err = h.network.CreateInterfaceTables(iface, vteps); err != nil {
				return errors.Wrap(err, "could not create tables")
			}
		}
		if err = h.network.SetFlood(iface, true); err != nil {
			return errors.Wrap(err, "could not enable flooding")
		}
	}

	// Persist only after every external command succeeded.
	if err = h.state.WriteState(iface, desired); err != nil {
		return errors.Wrap(err, "could not persist state")
	}
	log.Info().
		Str("interface", iface).
		Stringer("status", desired).
		Int("vteps", len(vteps)).
		Msg("handler: interface role updated")
	return nil
}
