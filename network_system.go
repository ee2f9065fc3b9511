package main

import (
	"os/exec"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type SystemNetworkStrategy struct {
	lock *sync.Mutex
}

func NewSystemNetworkStrategy() *SystemNetworkStrategy {
	return &SystemNetworkStrategy{
		lock: &sync.Mutex{},
	}
}

func (s *SystemNetworkStrategy) nft(args ...string) ([]byte, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	log.Debug().Strs("args", args).Msg("nft")
	output, err := exec.Command("nft", args...).Output()
	if err != nil {
		return output, errors.Wrap(err, "nft failed")
	}
	return output, nil
}

func (s *SystemNetworkStrategy) bridge(args ...string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	log.Debug().Strs("args", args).Msg("bridge")
	_, err := exec.Command("bridge", args...).Output()
	if err != nil {
		return errors.Wrap(err, "bridge failed")
	}
	return nil
}

func (s *SystemNetworkStrategy) Ready() error {
	_, err := s.nft("list", "tables")
	return err
}

func (s *SystemNetworkStrategy) TableExists(family string, table string) bool {
	_, err := s.nft("list", "table", family, table)
	return err == nil
}

// parseSetElements pulls the member names out of `nft list set` output, e.g.
// `elements = { bond0, bond1 }`.
func parseSetElements(output []byte) []string {
	text := string(output)
	start := strings.Index(text, "elements = {")
	if start == -1 {
		return nil
	}
	text = text[start+len("elements = {"):]
	end := strings.Index(text, "}")
	if end == -1 {
		return nil
	}
	members := make([]string, 0)
	for _, member := range strings.Split(text[:end], ",") {
		member = strings.TrimSpace(member)
		if member != "" {
			members = append(members, member)
		}
	}
	return members
}

func (s *SystemNetworkStrategy) SetMembers(family string, table string, set string) []string {
	output, err := s.nft("list", "set", family, table, set)
	if err != nil {
		return nil
	}
	return parseSetElements(output)
}

func (s *SystemNetworkStrategy) ValidateRuleset(path string) error {
	_, err := s.nft("-c", "-f", path)
	return err
}

func (s *SystemNetworkStrategy) ApplyRuleset(path string) error {
	_, err := s.nft("-f", path)
	return err
}

// CreateInterfaceTables builds the per-interface enforcement table with the
// imperative nft commands so the handler does not touch the global ruleset.
func (s *SystemNetworkStrategy) CreateInterfaceTables(iface string, vteps []string) error {
	table := interfaceTableName(iface)
	commands := [][]string{
		{"add", "table", "netdev", table},
		{"add", "set", "netdev", table, "vteps", "{", "type", "ipv4_addr;", "}"},
		{"add", "element", "netdev", table, "vteps", "{", strings.Join(vteps, ", "), "}"},
		{"add", "chain", "netdev", table, "ingress", "{", "type", "filter", "hook", "ingress", "device", iface, "priority", "-100;", "}"},
		{"add", "rule", "netdev", table, "ingress", "ip", "saddr", "@vteps", "meta", "mark", "set", SplitHorizonMark},
	}
	for _, command := range commands {
		if _, err := s.nft(command...); err != nil {
			return errors.Wrap(err, "could not create table for "+iface)
		}
	}
	return nil
}

func (s *SystemNetworkStrategy) DeleteInterfaceTables(iface string) error {
	_, err := s.nft("delete", "table", "netdev", interfaceTableName(iface))
	if err != nil {
		return errors.Wrap(err, "could not delete table for "+iface)
	}
	return nil
}

func (s *SystemNetworkStrategy) SetFlood(iface string, enabled bool) error {
	state := "off"
	if enabled {
		state = "on"
	}
	return s.bridge("link", "set", "dev", iface, "flood", state, "mcast_flood", state, "bcast_flood", state)
}
