package main

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Reconciler drives the enforced configuration toward the control plane's
// reported DF roles. It is a single-threaded loop; all loop state lives here
// instead of in package globals.
type Reconciler struct {
	config  Configuration
	cp      ControlPlane
	applier *Applier
	reader  *StableReader
	nudge   chan struct{}

	reported        ReportedStateMap
	needsRefresh    bool
	firstRun        bool
	refreshDeadline time.Time
}

func NewReconciler(config Configuration, cp ControlPlane, network NetworkStrategy) *Reconciler {
	return &Reconciler{
		config:          config,
		cp:              cp,
		applier:         NewApplier(config, cp, network),
		reader:          NewStableReader(config.DebounceInterval),
		nudge:           make(chan struct{}, 1),
		firstRun:        true,
		refreshDeadline: time.Now().Add(config.RefreshPeriod),
	}
}

// watchStatusDir nudges the loop when a DF-status file changes so drift is
// picked up on the next tick instead of a full scan interval later. The
// stable-read protocol still guards every accepted file; the loop is correct
// without the watcher.
func (r *Reconciler) watchStatusDir(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warn().Err(err).Msg("reconciler: status watcher unavailable")
		return
	}
	defer watcher.Close()
	if err = watcher.Add(r.config.StatusDir); err != nil {
		log.Warn().Err(err).Str("dir", r.config.StatusDir).Msg("reconciler: could not watch status directory")
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			select {
			case r.nudge <- struct{}{}:
			default:
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("reconciler: status watcher error")
		}
	}
}

// Run ticks until ctx is cancelled. The shutdown signal is observed between
// ticks only; an apply in progress always completes.
func (r *Reconciler) Run(ctx context.Context) error {
	go r.watchStatusDir(ctx)

	ticker := time.NewTicker(r.config.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("reconciler: shutting down")
			return nil
		case <-r.nudge:
		case <-ticker.C:
		}
		r.Tick()
	}
}

func (r *Reconciler) Tick() {
	if r.needsRefresh || len(r.reported) == 0 {
		reported, err := r.cp.EthernetSegments()
		if err != nil {
			log.Error().Err(err).Msg("reconciler: could not query es data")
			reported = nil
		}
		r.reported = reported
	}
	if len(r.reported) == 0 {
		// No ES data yet; wait for the next tick.
		return
	}

	if r.firstRun {
		r.runApply()
		r.firstRun = false
		return
	}

	status := ScanDfStatusFiles(r.config.StatusDir, r.reader)
	if len(status) == 0 {
		return
	}

	r.needsRefresh = false
	for iface, record := range r.reported {
		observed, ok := status[iface]
		if !ok || record.DfStatus == observed {
			continue
		}
		log.Info().
			Str("interface", iface).
			Stringer("reported", record.DfStatus).
			Stringer("observed", observed).
			Msg("reconciler: role drift detected")
		r.needsRefresh = true
		break
	}

	if time.Now().After(r.refreshDeadline) {
		log.Debug().Msg("reconciler: periodic forced refresh")
		r.needsRefresh = true
	}

	if r.needsRefresh {
		r.runApply()
	}
}

// runApply leaves needsRefresh untouched so the next tick re-queries the
// control plane before comparing again.
func (r *Reconciler) runApply() {
	if err := r.applier.Apply(r.reported); err != nil {
		log.Error().Err(err).Msg("reconciler: enforcement refresh failed")
	}
	r.refreshDeadline = time.Now().Add(r.config.RefreshPeriod)
}
