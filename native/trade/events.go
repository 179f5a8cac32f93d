package trade

import (
	"encoding/hex"
	"math/big"

	"stellavault/core/events"
	"stellavault/core/types"
)

const (
	// EventTypeSwapExecuted marks a completed allocation swap.
	EventTypeSwapExecuted = "trade.swap_executed"
	// EventTypeLegacySwapExecuted marks a completed vault-level legacy swap.
	EventTypeLegacySwapExecuted = "trade.legacy_swap_executed"
)

// SwapExecuted is emitted after an allocation swap passes all post checks.
type SwapExecuted struct {
	Owner          [20]byte
	Strategy       [20]byte
	AssetIn        string
	AssetOut       string
	Fee            *big.Int
	AmountSpent    *big.Int
	AmountReceived *big.Int
}

func (SwapExecuted) EventType() string { return EventTypeSwapExecuted }

func (evt SwapExecuted) Event() *types.Event {
	return &types.Event{
		Type: EventTypeSwapExecuted,
		Attributes: map[string]string{
			"owner":          hex.EncodeToString(evt.Owner[:]),
			"strategy":       hex.EncodeToString(evt.Strategy[:]),
			"assetIn":        evt.AssetIn,
			"assetOut":       evt.AssetOut,
			"fee":            events.FormatAmount(evt.Fee),
			"amountSpent":    events.FormatAmount(evt.AmountSpent),
			"amountReceived": events.FormatAmount(evt.AmountReceived),
		},
	}
}

// LegacySwapExecuted is emitted by the deprecated vault-level swap path.
type LegacySwapExecuted struct {
	Owner          [20]byte
	AssetIn        string
	AssetOut       string
	Fee            *big.Int
	AmountSpent    *big.Int
	AmountReceived *big.Int
}

func (LegacySwapExecuted) EventType() string { return EventTypeLegacySwapExecuted }

func (evt LegacySwapExecuted) Event() *types.Event {
	return &types.Event{
		Type: EventTypeLegacySwapExecuted,
		Attributes: map[string]string{
			"owner":          hex.EncodeToString(evt.Owner[:]),
			"assetIn":        evt.AssetIn,
			"assetOut":       evt.AssetOut,
			"fee":            events.FormatAmount(evt.Fee),
			"amountSpent":    events.FormatAmount(evt.AmountSpent),
			"amountReceived": events.FormatAmount(evt.AmountReceived),
		},
	}
}
