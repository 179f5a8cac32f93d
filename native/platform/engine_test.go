package platform

import (
	"errors"
	"testing"

	"stellavault/core/events"
	"stellavault/core/types"
)

type mockState struct {
	config *GlobalConfig
}

func (m *mockState) GlobalConfig() (*GlobalConfig, bool, error) {
	if m.config == nil {
		return nil, false, nil
	}
	return m.config.Clone(), true, nil
}

func (m *mockState) PutGlobalConfig(cfg *GlobalConfig) error {
	m.config = cfg.Clone()
	return nil
}

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func newEngine(state *mockState) *Engine {
	e := NewEngine()
	e.SetState(state)
	return e
}

func TestInitializeDefaults(t *testing.T) {
	e := newEngine(&mockState{})
	admin := newTestAddress(0x01)
	cfg, err := e.Initialize(admin)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if cfg.Admin != admin {
		t.Fatalf("unexpected admin: %x", cfg.Admin)
	}
	if cfg.PlatformFeeBps != DefaultPlatformFeeBps {
		t.Fatalf("unexpected platform fee: %d", cfg.PlatformFeeBps)
	}
	if cfg.PerformanceFeeBps != DefaultPerformanceFeeBps {
		t.Fatalf("unexpected performance fee: %d", cfg.PerformanceFeeBps)
	}
	if cfg.LegacyTradingEnabled {
		t.Fatal("legacy trading must start disabled")
	}
}

func TestInitializeOnce(t *testing.T) {
	e := newEngine(&mockState{})
	if _, err := e.Initialize(newTestAddress(0x01)); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if _, err := e.Initialize(newTestAddress(0x02)); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}
}

func TestToggleLegacyTradingAuthorization(t *testing.T) {
	e := newEngine(&mockState{})
	admin := newTestAddress(0x01)
	if _, err := e.Initialize(admin); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if _, err := e.ToggleLegacyTrading(newTestAddress(0x02)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	enabled, err := e.ToggleLegacyTrading(admin)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !enabled {
		t.Fatal("expected legacy trading enabled after first toggle")
	}
	enabled, err = e.ToggleLegacyTrading(admin)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if enabled {
		t.Fatal("expected legacy trading disabled after second toggle")
	}
}

func TestToggleEmitsEvent(t *testing.T) {
	recorder := &events.Recorder{}
	e := newEngine(&mockState{})
	e.SetEmitter(recorder)
	admin := newTestAddress(0x01)
	if _, err := e.Initialize(admin); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if _, err := e.ToggleLegacyTrading(admin); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	evts := recorder.Events()
	if len(evts) != 1 {
		t.Fatalf("expected one event, got %d", len(evts))
	}
	want := &types.Event{Type: EventTypeLegacyTradingToggled}
	if evts[0].Type != want.Type {
		t.Fatalf("unexpected event type %q", evts[0].Type)
	}
	if evts[0].Attributes["enabled"] != "true" {
		t.Fatalf("unexpected enabled attribute %q", evts[0].Attributes["enabled"])
	}
}

func TestConfigRequiresInitialization(t *testing.T) {
	e := newEngine(&mockState{})
	if _, err := e.Config(); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}
