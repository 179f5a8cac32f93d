package platform

// Default fee parameters applied when the global configuration is first
// initialised. Values are basis points (parts per 10,000).
const (
	DefaultPlatformFeeBps    uint16 = 10
	DefaultPerformanceFeeBps uint16 = 2000
	MaxFeeBps                uint16 = 10_000
)

// GlobalConfig is the ledger-wide policy singleton. It is created exactly
// once and only the recorded admin may mutate it afterwards.
type GlobalConfig struct {
	Admin             [20]byte
	PlatformFeeBps    uint16
	PerformanceFeeBps uint16
	// LegacyTradingEnabled gates the deprecated vault-level swap path.
	// Disabled by default on new deployments.
	LegacyTradingEnabled bool
}

// Clone returns a copy of the config so callers can mutate it safely.
func (c *GlobalConfig) Clone() *GlobalConfig {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}
