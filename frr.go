package main

import (
	"encoding/json"
	"os/exec"
	"sync"

	"github.com/emirpasic/gods/sets/treeset"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ControlPlane is the routing daemon boundary: Ethernet-Segment state and the
// routing data the underlay derivation needs.
type ControlPlane interface {
	Ready() error
	EthernetSegments() (ReportedStateMap, error)
	InterfaceVteps(iface string) ([]string, error)
	UnderlayInterfaces() ([]string, error)
}

type FRRClient struct {
	lock *sync.Mutex
}

func NewFRRClient() *FRRClient {
	return &FRRClient{
		lock: &sync.Mutex{},
	}
}

func (frr *FRRClient) vtysh(command string) ([]byte, error) {
	frr.lock.Lock()
	defer frr.lock.Unlock()

	log.Debug().Str("command", command).Msg("vtysh")
	output, err := exec.Command("vtysh", "-c", command).Output()
	if err != nil {
		return nil, errors.Wrap(err, "vtysh failed")
	}
	return output, nil
}

func (frr *FRRClient) Ready() error {
	_, err := frr.vtysh("show evpn es detail json")
	return err
}

type esJSON struct {
	AccessPort string       `json:"accessPort"`
	Flags      []string     `json:"flags"`
	Vteps      []esVtepJSON `json:"vteps"`
}

type esVtepJSON struct {
	Vtep string `json:"vtep"`
}

func classifyDfStatus(flags []string) DfStatus {
	for _, flag := range flags {
		if flag == "df" {
			return Df
		}
	}
	for _, flag := range flags {
		if flag == "nonDF" {
			return NonDf
		}
	}
	return DfUnknown
}

// parseEthernetSegments indexes ES records by access port. Records without an
// access port cannot participate in reconciliation; their count is returned
// so the caller can log them.
func parseEthernetSegments(data []byte) (ReportedStateMap, int, error) {
	var records []esJSON
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, 0, errors.Wrap(err, "could not parse es data")
	}

	reported := make(ReportedStateMap)
	unknown := 0
	for _, record := range records {
		if record.AccessPort == "" {
			unknown++
			continue
		}
		vteps := make([]string, 0, len(record.Vteps))
		for _, vtep := range record.Vteps {
			if vtep.Vtep != "" {
				vteps = append(vteps, vtep.Vtep)
			}
		}
		reported[record.AccessPort] = EthernetSegmentRecord{
			Interface: record.AccessPort,
			Flags:     record.Flags,
			Vteps:     vteps,
			DfStatus:  classifyDfStatus(record.Flags),
		}
	}
	return reported, unknown, nil
}

// EthernetSegments rebuilds the reported state from scratch; callers treat a
// failed query as an empty snapshot and retry on a later tick.
func (frr *FRRClient) EthernetSegments() (ReportedStateMap, error) {
	output, err := frr.vtysh("show evpn es detail json")
	if err != nil {
		return nil, errors.Wrap(err, "could not query es data")
	}
	reported, unknown, err := parseEthernetSegments(output)
	if err != nil {
		return nil, err
	}
	if unknown > 0 {
		log.Debug().Int("count", unknown).Msg("frr: es records without access port")
	}
	return reported, nil
}

func (frr *FRRClient) InterfaceVteps(iface string) ([]string, error) {
	reported, err := frr.EthernetSegments()
	if err != nil {
		return nil, err
	}
	return reported[iface].Vteps, nil
}

type bgpSummaryJSON struct {
	Peers map[string]json.RawMessage `json:"peers"`
}

type routeEntryJSON struct {
	Nexthops []struct {
		InterfaceName string `json:"interfaceName"`
	} `json:"nexthops"`
}

func parsePeerAddresses(data []byte) ([]string, error) {
	var summary bgpSummaryJSON
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, errors.Wrap(err, "could not parse bgp summary")
	}
	peers := make([]string, 0, len(summary.Peers))
	for peer := range summary.Peers {
		peers = append(peers, peer)
	}
	return peers, nil
}

func parseRouteInterfaces(data []byte) ([]string, error) {
	var routes map[string][]routeEntryJSON
	if err := json.Unmarshal(data, &routes); err != nil {
		return nil, errors.Wrap(err, "could not parse route")
	}
	interfaces := make([]string, 0)
	for _, entries := range routes {
		for _, entry := range entries {
			for _, nexthop := range entry.Nexthops {
				if nexthop.InterfaceName != "" {
					interfaces = append(interfaces, nexthop.InterfaceName)
				}
			}
		}
	}
	return interfaces, nil
}

// UnderlayInterfaces resolves every established EVPN peer to the egress
// interfaces of its route and dedupes them into a sorted list.
func (frr *FRRClient) UnderlayInterfaces() ([]string, error) {
	output, err := frr.vtysh("show bgp l2vpn evpn summary established json")
	if err != nil {
		return nil, errors.Wrap(err, "could not query bgp peers")
	}
	peers, err := parsePeerAddresses(output)
	if err != nil {
		return nil, err
	}

	underlay := treeset.NewWithStringComparator()
	for _, peer := range peers {
		output, err = frr.vtysh("show ip route " + peer + " json")
		if err != nil {
			return nil, errors.Wrap(err, "could not query route for peer "+peer)
		}
		interfaces, err := parseRouteInterfaces(output)
		if err != nil {
			return nil, err
		}
		for _, iface := range interfaces {
			underlay.Add(iface)
		}
	}
	return treesetStrings(underlay), nil
}

func treesetStrings(set *treeset.Set) []string {
	values := set.Values()
	result := make([]string, len(values))
	for i, value := range values {
		result[i] = value.(string)
	}
	return result
}
