package events

import (
	"math/big"
	"strconv"
	"sync"

	"stellavault/core/types"
)

// Event represents a structured state change emitted by a vault engine.
type Event interface {
	EventType() string
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (RPC, audit sinks).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events.
// Engines default to it so event wiring stays optional.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Recorder buffers emitted events in memory. The RPC server uses it to
// expose recent activity; tests use it to assert on emission order.
type Recorder struct {
	mu     sync.Mutex
	events []*types.Event
}

// Emit implements the Emitter interface.
func (r *Recorder) Emit(evt Event) {
	if evt == nil {
		return
	}
	payload := evt.Event()
	if payload == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, payload)
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []*types.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*types.Event, len(r.events))
	copy(out, r.events)
	return out
}

// FormatAmount renders a big.Int attribute value, tolerating nil.
func FormatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// FormatBool renders a boolean attribute value.
func FormatBool(v bool) string { return strconv.FormatBool(v) }
