package platform

import (
	"errors"

	"stellavault/core/events"
)

var (
	ErrNilState           = errors.New("platform engine: state not configured")
	ErrAlreadyInitialized = errors.New("platform: global config already initialized")
	ErrNotInitialized     = errors.New("platform: global config not initialized")
	ErrUnauthorized       = errors.New("platform: caller is not the admin")
)

type engineState interface {
	GlobalConfig() (*GlobalConfig, bool, error)
	PutGlobalConfig(*GlobalConfig) error
}

// Engine owns the global policy singleton: one-time initialisation and the
// admin-gated feature flag flips the swap engine consumes.
type Engine struct {
	state   engineState
	emitter events.Emitter
}

// NewEngine creates a platform engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// Initialize creates the singleton with the platform defaults. It fails if
// a configuration already exists; there is no re-initialisation path.
func (e *Engine) Initialize(admin [20]byte) (*GlobalConfig, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if _, ok, err := e.state.GlobalConfig(); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrAlreadyInitialized
	}
	cfg := &GlobalConfig{
		Admin:                admin,
		PlatformFeeBps:       DefaultPlatformFeeBps,
		PerformanceFeeBps:    DefaultPerformanceFeeBps,
		LegacyTradingEnabled: false,
	}
	if err := e.state.PutGlobalConfig(cfg); err != nil {
		return nil, err
	}
	return cfg.Clone(), nil
}

// Config returns the current configuration.
func (e *Engine) Config() (*GlobalConfig, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	cfg, ok, err := e.state.GlobalConfig()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotInitialized
	}
	return cfg.Clone(), nil
}

// ToggleLegacyTrading flips the legacy swap gate. Admin only. Returns the
// new flag value.
func (e *Engine) ToggleLegacyTrading(caller [20]byte) (bool, error) {
	if e == nil || e.state == nil {
		return false, ErrNilState
	}
	cfg, ok, err := e.state.GlobalConfig()
	if err != nil {
		return false, err
	}
	if !ok {
		return false, ErrNotInitialized
	}
	if cfg.Admin != caller {
		return false, ErrUnauthorized
	}
	cfg.LegacyTradingEnabled = !cfg.LegacyTradingEnabled
	if err := e.state.PutGlobalConfig(cfg); err != nil {
		return false, err
	}
	e.emitter.Emit(LegacyTradingToggled{Enabled: cfg.LegacyTradingEnabled, Admin: caller})
	return cfg.LegacyTradingEnabled, nil
}
