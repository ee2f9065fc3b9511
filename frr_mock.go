package main

import "github.com/pkg/errors"

var errQueryFailed = errors.New("query failed")

type MockControlPlane struct {
	segments  ReportedStateMap
	underlay  []string
	esQueries int
	failES    bool
}

func NewMockControlPlane() *MockControlPlane {
	return &MockControlPlane{
		segments: make(ReportedStateMap),
	}
}

func (cp *MockControlPlane) Ready() error {
	return nil
}

func (cp *MockControlPlane) EthernetSegments() (ReportedStateMap, error) {
	cp.esQueries++
	if cp.failES {
		return nil, errQueryFailed
	}
	reported := make(ReportedStateMap, len(cp.segments))
	for iface, record := range cp.segments {
		reported[iface] = record
	}
	return reported, nil
}

func (cp *MockControlPlane) InterfaceVteps(iface string) ([]string, error) {
	if cp.failES {
		return nil, errQueryFailed
	}
	return cp.segments[iface].Vteps, nil
}

func (cp *MockControlPlane) UnderlayInterfaces() ([]string, error) {
	return cp.underlay, nil
}
