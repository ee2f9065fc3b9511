package main

import (
	"testing"
	"time"
)

func newTestHandler(t *testing.T, cp *MockControlPlane, ns *MockNetworkStrategy) *Handler {
	t.Helper()
	handler := NewHandler(Configuration{StateDir: t.TempDir()}, cp, ns)
	handler.sleep = func(time.Duration) {}
	return handler
}

func TestHandlerAppliesNonDf(t *testing.T) {
	cp := NewMockControlPlane()
	ns := NewMockNetworkStrategy()
	cp.segments["eth1"] = dfRecord("eth1", NonDf, "10.0.0.1")
	ns.tables["netdev/"+interfaceTableName("eth1")] = true

	handler := newTestHandler(t, cp, ns)
	if err := handler.Run("eth1", true); err != nil {
		t.Errorf("handler.Run(eth1, true) = %v; want nil", err)
	}
	if ns.deleteCalls != 1 {
		t.Errorf("deleteCalls = %v; want 1", ns.deleteCalls)
	}
	if flood, ok := ns.flood["eth1"]; !ok || flood {
		t.Errorf("flood[eth1] = %v, %v; want false, true", flood, ok)
	}
	state, ok, err := handler.state.ReadState("eth1")
	if err != nil || !ok || state != NonDf {
		t.Errorf("persisted state = %v, %v, %v; want NonDf, true, nil", state, ok, err)
	}
}

func TestHandlerAppliesDf(t *testing.T) {
	cp := NewMockControlPlane()
	ns := NewMockNetworkStrategy()
	cp.segments["eth1"] = dfRecord("eth1", Df, "10.0.0.1", "10.0.0.2")

	handler := newTestHandler(t, cp, ns)
	if err := handler.Run("eth1", false); err != nil {
		t.Errorf("handler.Run(eth1, false) = %v; want nil", err)
	}
	if ns.createCalls != 1 {
		t.Errorf("createCalls = %v; want 1", ns.createCalls)
	}
	if len(ns.ifaceVteps["eth1"]) != 2 {
		t.Errorf("ifaceVteps[eth1] = %v; want both vteps", ns.ifaceVteps["eth1"])
	}
	if flood, ok := ns.flood["eth1"]; !ok || !flood {
		t.Errorf("flood[eth1] = %v, %v; want true, true", flood, ok)
	}
}

func TestHandlerIdempotence(t *testing.T) {
	cp := NewMockControlPlane()
	ns := NewMockNetworkStrategy()
	cp.segments["eth1"] = dfRecord("eth1", Df, "10.0.0.1")

	handler := newTestHandler(t, cp, ns)
	if err := handler.Run("eth1", false); err != nil {
		t.Errorf("handler.Run(eth1, false) = %v; want nil", err)
	}
	if err := handler.Run("eth1", false); err != nil {
		t.Errorf("handler.Run(eth1, false) = %v; want nil", err)
	}
	if ns.createCalls != 1 {
		t.Errorf("createCalls = %v; want 1 after duplicate trigger", ns.createCalls)
	}
	if ns.floodCalls != 1 {
		t.Errorf("floodCalls = %v; want 1 after duplicate trigger", ns.floodCalls)
	}
}

// A trigger that lands during another invocation's debounce window must win,
// and the superseded invocation must not touch anything.
func TestHandlerDebounceCollapse(t *testing.T) {
	cp := NewMockControlPlane()
	ns := NewMockNetworkStrategy()
	cp.segments["eth1"] = dfRecord("eth1", NonDf, "10.0.0.1")

	config := Configuration{StateDir: t.TempDir()}
	first := NewHandler(config, cp, ns)
	second := NewHandler(config, cp, ns)
	first.nowNanos = func() int64 { return 1 }
	second.nowNanos = func() int64 { return 2 }
	second.sleep = func(time.Duration) {}
	first.sleep = func(time.Duration) {
		if err := second.Run("eth1", true); err != nil {
			t.Errorf("second.Run(eth1, true) = %v; want nil", err)
		}
	}

	if err := first.Run("eth1", false); err != nil {
		t.Errorf("first.Run(eth1, false) = %v; want nil", err)
	}

	if ns.createCalls != 0 {
		t.Errorf("createCalls = %v; want 0, first invocation was superseded", ns.createCalls)
	}
	if ns.floodCalls != 1 {
		t.Errorf("floodCalls = %v; want 1", ns.floodCalls)
	}
	if flood := ns.flood["eth1"]; flood {
		t.Errorf("flood[eth1] = %v; want false", flood)
	}
	state, ok, err := first.state.ReadState("eth1")
	if err != nil || !ok || state != NonDf {
		t.Errorf("persisted state = %v, %v, %v; want NonDf, true, nil", state, ok, err)
	}
}

func TestHandlerAbortsWithoutVteps(t *testing.T) {
	cp := NewMockControlPlane()
	ns := NewMockNetworkStrategy()
	cp.segments["eth2"] = dfRecord("eth2", Df)

	handler := newTestHandler(t, cp, ns)
	if err := handler.Run("eth2", false); err != nil {
		t.Errorf("handler.Run(eth2, false) = %v; want nil", err)
	}
	if ns.createCalls != 0 || ns.floodCalls != 0 {
		t.Errorf("createCalls = %v, floodCalls = %v; want 0, 0", ns.createCalls, ns.floodCalls)
	}
	if _, ok, _ := handler.state.ReadState("eth2"); ok {
		t.Errorf("persisted state present; want untouched after abort")
	}
}
