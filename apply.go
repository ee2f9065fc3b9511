package main

import (
	"reflect"
	"sort"

	"github.com/emirpasic/gods/sets/treeset"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Applier computes and installs the full enforcement configuration. Failures
// are returned to the caller but never leave an unvalidated ruleset applied.
type Applier struct {
	config  Configuration
	cp      ControlPlane
	network NetworkStrategy
}

func NewApplier(config Configuration, cp ControlPlane, network NetworkStrategy) *Applier {
	return &Applier{
		config:  config,
		cp:      cp,
		network: network,
	}
}

func configuredStatus(iface string, dfMembers []string, nonDfMembers []string) DfStatus {
	for _, member := range dfMembers {
		if member == iface {
			return Df
		}
	}
	for _, member := range nonDfMembers {
		if member == iface {
			return NonDf
		}
	}
	return DfUnknown
}

func (a *Applier) Apply(reported ReportedStateMap) error {
	// The snapshot may predate the trigger; the fresh query always wins,
	// even when it reports fewer interfaces than the snapshot did.
	fresh, err := a.cp.EthernetSegments()
	if err != nil {
		return errors.Wrap(err, "could not query es data")
	}
	if !reflect.DeepEqual(fresh, reported) {
		reported = fresh
	}
	if len(reported) == 0 {
		log.Info().Msg("applier: control plane reports no ethernet segments, leaving enforcement unchanged")
		return nil
	}

	netdevExists := a.network.TableExists("netdev", NetdevTable)
	bridgeExists := a.network.TableExists("bridge", BridgeTable)
	dfMembers := a.network.SetMembers("bridge", BridgeTable, DfSet)
	nonDfMembers := a.network.SetMembers("bridge", BridgeTable, NonDfSet)

	updateRequired := !netdevExists || !bridgeExists

	vteps := treeset.NewWithStringComparator()
	dfInterfaces := make([]string, 0)
	nonDfInterfaces := make([]string, 0)
	interfaces := make([]string, 0, len(reported))

	for iface, record := range reported {
		configured := configuredStatus(iface, dfMembers, nonDfMembers)
		if configured != record.DfStatus {
			updateRequired = true
		}
		switch record.DfStatus {
		case Df:
			dfInterfaces = append(dfInterfaces, iface)
			// Split-horizon: only forwarding interfaces contribute VTEPs.
			for _, vtep := range record.Vteps {
				vteps.Add(vtep)
			}
		case NonDf:
			nonDfInterfaces = append(nonDfInterfaces, iface)
		}
		interfaces = append(interfaces, iface)
	}
	sort.Strings(dfInterfaces)
	sort.Strings(nonDfInterfaces)
	sort.Strings(interfaces)

	if !updateRequired {
		// Log what is actually configured, not what was reported; the sets
		// may hold interfaces the control plane no longer mentions.
		log.Info().
			Strs("df_interfaces", dfMembers).
			Strs("non_df_interfaces", nonDfMembers).
			Msg("applier: enforcement already in sync")
		return nil
	}

	underlay, err := a.cp.UnderlayInterfaces()
	if err != nil {
		return errors.Wrap(err, "could not derive underlay interfaces")
	}

	ruleset := RulesetConfig{
		Vteps:              treesetStrings(vteps),
		DfInterfaces:       dfInterfaces,
		NonDfInterfaces:    nonDfInterfaces,
		Interfaces:         interfaces,
		UnderlayInterfaces: underlay,
		Mark:               SplitHorizonMark,
		NetdevTableExists:  netdevExists,
		BridgeTableExists:  bridgeExists,
	}
	if err = RenderRuleset(a.config.RulesetPath, ruleset); err != nil {
		return errors.Wrap(err, "could not render ruleset")
	}

	if err = a.network.ValidateRuleset(a.config.RulesetPath); err != nil {
		// Previous enforcement stays in effect; never apply unvalidated config.
		return errors.Wrap(err, "ruleset validation failed")
	}
	if err = a.network.ApplyRuleset(a.config.RulesetPath); err != nil {
		// No rollback; the engine's partial-apply semantics decide what stuck.
		return errors.Wrap(err, "ruleset apply failed")
	}

	log.Info().
		Strs("df_interfaces", dfInterfaces).
		Strs("non_df_interfaces", nonDfInterfaces).
		Strs("underlay", underlay).
		Msg("applier: split-horizon filters updated")
	return nil
}
