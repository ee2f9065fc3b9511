package main

// Mark stamped on ingress traffic from remote VTEPs so the bridge ruleset can
// suppress it toward non-DF bonds.
const SplitHorizonMark = "0x00575048"

const (
	NetdevTable = "evpn_sph"
	BridgeTable = "evpn_sph"
	DfSet       = "df_bonds"
	NonDfSet    = "non_df_bonds"
)

func interfaceTableName(iface string) string {
	return "evpn_sph_" + iface
}

// NetworkStrategy is the enforcement boundary: nftables tables and sets plus
// the bridge flood flags. Probes mirror the filter engine's own notion of
// existence; a probe on a missing object simply reports absence.
type NetworkStrategy interface {
	Ready() error
	TableExists(family string, table string) bool
	SetMembers(family string, table string, set string) []string
	ValidateRuleset(path string) error
	ApplyRuleset(path string) error
	CreateInterfaceTables(iface string, vteps []string) error
	DeleteInterfaceTables(iface string) error
	SetFlood(iface string, enabled bool) error
}
