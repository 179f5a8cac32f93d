package allocation

import (
	"encoding/hex"
	"math/big"

	"stellavault/core/events"
	"stellavault/core/types"
)

const (
	EventTypeCreated      = "allocation.created"
	EventTypePaused       = "allocation.paused"
	EventTypeResumed      = "allocation.resumed"
	EventTypeSyncStarted  = "allocation.sync_started"
	EventTypeSyncFinished = "allocation.sync_finished"
	EventTypeInitialized  = "allocation.initialized"
	EventTypeSettled      = "allocation.settled"
	EventTypeWithdrawn    = "allocation.withdrawn"
	EventTypeClosed       = "allocation.closed"
)

func baseAttributes(owner, strategy [20]byte) map[string]string {
	return map[string]string{
		"owner":    hex.EncodeToString(owner[:]),
		"strategy": hex.EncodeToString(strategy[:]),
	}
}

type CreatedEvent struct {
	Owner    [20]byte
	Strategy [20]byte
	Amount   *big.Int
}

func (CreatedEvent) EventType() string { return EventTypeCreated }

func (e CreatedEvent) Event() *types.Event {
	attrs := baseAttributes(e.Owner, e.Strategy)
	attrs["amount"] = events.FormatAmount(e.Amount)
	return &types.Event{Type: EventTypeCreated, Attributes: attrs}
}

type PausedEvent struct {
	Owner    [20]byte
	Strategy [20]byte
}

func (PausedEvent) EventType() string { return EventTypePaused }

func (e PausedEvent) Event() *types.Event {
	return &types.Event{Type: EventTypePaused, Attributes: baseAttributes(e.Owner, e.Strategy)}
}

type ResumedEvent struct {
	Owner    [20]byte
	Strategy [20]byte
}

func (ResumedEvent) EventType() string { return EventTypeResumed }

func (e ResumedEvent) Event() *types.Event {
	return &types.Event{Type: EventTypeResumed, Attributes: baseAttributes(e.Owner, e.Strategy)}
}

type SyncStartedEvent struct {
	Owner    [20]byte
	Strategy [20]byte
}

func (SyncStartedEvent) EventType() string { return EventTypeSyncStarted }

func (e SyncStartedEvent) Event() *types.Event {
	return &types.Event{Type: EventTypeSyncStarted, Attributes: baseAttributes(e.Owner, e.Strategy)}
}

type SyncFinishedEvent struct {
	Owner    [20]byte
	Strategy [20]byte
}

func (SyncFinishedEvent) EventType() string { return EventTypeSyncFinished }

func (e SyncFinishedEvent) Event() *types.Event {
	return &types.Event{Type: EventTypeSyncFinished, Attributes: baseAttributes(e.Owner, e.Strategy)}
}

type InitializedEvent struct {
	Owner    [20]byte
	Strategy [20]byte
	By       [20]byte
}

func (InitializedEvent) EventType() string { return EventTypeInitialized }

func (e InitializedEvent) Event() *types.Event {
	attrs := baseAttributes(e.Owner, e.Strategy)
	attrs["by"] = hex.EncodeToString(e.By[:])
	return &types.Event{Type: EventTypeInitialized, Attributes: attrs}
}

type SettledEvent struct {
	Owner    [20]byte
	Strategy [20]byte
	Equity   *big.Int
}

func (SettledEvent) EventType() string { return EventTypeSettled }

func (e SettledEvent) Event() *types.Event {
	attrs := baseAttributes(e.Owner, e.Strategy)
	attrs["equity"] = events.FormatAmount(e.Equity)
	return &types.Event{Type: EventTypeSettled, Attributes: attrs}
}

type WithdrawnEvent struct {
	Owner    [20]byte
	Strategy [20]byte
	Amount   *big.Int
}

func (WithdrawnEvent) EventType() string { return EventTypeWithdrawn }

func (e WithdrawnEvent) Event() *types.Event {
	attrs := baseAttributes(e.Owner, e.Strategy)
	attrs["amount"] = events.FormatAmount(e.Amount)
	return &types.Event{Type: EventTypeWithdrawn, Attributes: attrs}
}

type ClosedEvent struct {
	Owner    [20]byte
	Strategy [20]byte
	Refund   *big.Int
}

func (ClosedEvent) EventType() string { return EventTypeClosed }

func (e ClosedEvent) Event() *types.Event {
	attrs := baseAttributes(e.Owner, e.Strategy)
	attrs["refund"] = events.FormatAmount(e.Refund)
	return &types.Event{Type: EventTypeClosed, Attributes: attrs}
}
