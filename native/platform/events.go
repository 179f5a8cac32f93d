package platform

import (
	"encoding/hex"

	"stellavault/core/events"
	"stellavault/core/types"
)

const EventTypeLegacyTradingToggled = "platform.legacy_toggled"

// LegacyTradingToggled is emitted whenever the admin flips the legacy
// trading gate.
type LegacyTradingToggled struct {
	Enabled bool
	Admin   [20]byte
}

func (LegacyTradingToggled) EventType() string { return EventTypeLegacyTradingToggled }

func (e LegacyTradingToggled) Event() *types.Event {
	return &types.Event{
		Type: EventTypeLegacyTradingToggled,
		Attributes: map[string]string{
			"enabled": events.FormatBool(e.Enabled),
			"admin":   hex.EncodeToString(e.Admin[:]),
		},
	}
}
