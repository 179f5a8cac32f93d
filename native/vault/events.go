package vault

import (
	"encoding/hex"
	"math/big"

	"stellavault/core/events"
	"stellavault/core/types"
)

const (
	EventTypeVaultCreated      = "vault.created"
	EventTypeVaultPauseToggled = "vault.pause_toggled"
	EventTypeWhitelistUpdated  = "vault.whitelist_updated"
	EventTypeDeposit           = "vault.deposit"
	EventTypeWithdraw          = "vault.withdraw"
)

// Created is emitted when a vault is initialised.
type Created struct {
	Owner     [20]byte
	Authority [20]byte
	BaseAsset string
}

func (Created) EventType() string { return EventTypeVaultCreated }

func (e Created) Event() *types.Event {
	return &types.Event{
		Type: EventTypeVaultCreated,
		Attributes: map[string]string{
			"owner":     hex.EncodeToString(e.Owner[:]),
			"authority": hex.EncodeToString(e.Authority[:]),
			"baseAsset": e.BaseAsset,
		},
	}
}

// PauseToggled is emitted when the owner flips the vault pause switch.
type PauseToggled struct {
	Owner  [20]byte
	Paused bool
}

func (PauseToggled) EventType() string { return EventTypeVaultPauseToggled }

func (e PauseToggled) Event() *types.Event {
	return &types.Event{
		Type: EventTypeVaultPauseToggled,
		Attributes: map[string]string{
			"owner":  hex.EncodeToString(e.Owner[:]),
			"paused": events.FormatBool(e.Paused),
		},
	}
}

// WhitelistUpdated is emitted when an asset is added to or removed from the
// whitelist. No-op edits emit nothing.
type WhitelistUpdated struct {
	Owner [20]byte
	Asset string
	Added bool
}

func (WhitelistUpdated) EventType() string { return EventTypeWhitelistUpdated }

func (e WhitelistUpdated) Event() *types.Event {
	return &types.Event{
		Type: EventTypeWhitelistUpdated,
		Attributes: map[string]string{
			"owner": hex.EncodeToString(e.Owner[:]),
			"asset": e.Asset,
			"added": events.FormatBool(e.Added),
		},
	}
}

// Deposited is emitted on a successful owner deposit.
type Deposited struct {
	Owner  [20]byte
	Asset  string
	Amount *big.Int
}

func (Deposited) EventType() string { return EventTypeDeposit }

func (e Deposited) Event() *types.Event {
	return &types.Event{
		Type: EventTypeDeposit,
		Attributes: map[string]string{
			"owner":  hex.EncodeToString(e.Owner[:]),
			"asset":  e.Asset,
			"amount": events.FormatAmount(e.Amount),
		},
	}
}

// Withdrawn is emitted on a successful owner withdrawal.
type Withdrawn struct {
	Owner  [20]byte
	Asset  string
	Amount *big.Int
}

func (Withdrawn) EventType() string { return EventTypeWithdraw }

func (e Withdrawn) Event() *types.Event {
	return &types.Event{
		Type: EventTypeWithdraw,
		Attributes: map[string]string{
			"owner":  hex.EncodeToString(e.Owner[:]),
			"asset":  e.Asset,
			"amount": events.FormatAmount(e.Amount),
		},
	}
}
