package main

import "github.com/pkg/errors"

type MockNetworkStrategy struct {
	tables       map[string]bool
	sets         map[string][]string
	flood        map[string]bool
	ifaceVteps   map[string][]string
	validated    int
	applied      int
	createCalls  int
	deleteCalls  int
	floodCalls   int
	failValidate bool
	failApply    bool
}

func NewMockNetworkStrategy() *MockNetworkStrategy {
	return &MockNetworkStrategy{
		tables:     make(map[string]bool),
		sets:       make(map[string][]string),
		flood:      make(map[string]bool),
		ifaceVteps: make(map[string][]string),
	}
}

func (s *MockNetworkStrategy) Ready() error {
	return nil
}

func (s *MockNetworkStrategy) TableExists(family string, table string) bool {
	return s.tables[family+"/"+table]
}

func (s *MockNetworkStrategy) SetMembers(family string, table string, set string) []string {
	return s.sets[family+"/"+table+"/"+set]
}

func (s *MockNetworkStrategy) ValidateRuleset(path string) error {
	s.validated++
	if s.failValidate {
		return errors.New("validation failed")
	}
	return nil
}

func (s *MockNetworkStrategy) ApplyRuleset(path string) error {
	s.applied++
	if s.failApply {
		return errors.New("apply failed")
	}
	s.tables["netdev/"+NetdevTable] = true
	s.tables["bridge/"+BridgeTable] = true
	return nil
}

func (s *MockNetworkStrategy) CreateInterfaceTables(iface string, vteps []string) error {
	s.createCalls++
	s.tables["netdev/"+interfaceTableName(iface)] = true
	s.ifaceVteps[iface] = vteps
	return nil
}

func (s *MockNetworkStrategy) DeleteInterfaceTables(iface string) error {
	s.deleteCalls++
	delete(s.tables, "netdev/"+interfaceTableName(iface))
	delete(s.ifaceVteps, iface)
	return nil
}

func (s *MockNetworkStrategy) SetFlood(iface string, enabled bool) error {
	s.floodCalls++
	s.flood[iface] = enabled
	return nil
}
