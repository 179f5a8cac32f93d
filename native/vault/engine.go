package vault

import (
	"errors"
	"fmt"
	"math/big"

	"stellavault/core/events"
	"stellavault/crypto"
)

var (
	ErrNilState        = errors.New("vault engine: state not configured")
	ErrNotFound        = errors.New("vault: not found")
	ErrAlreadyExists   = errors.New("vault: already exists for owner")
	ErrUnauthorized    = errors.New("vault: caller is not the owner")
	ErrPaused          = errors.New("vault: paused")
	ErrTokenNotAllowed = errors.New("vault: asset not base and not whitelisted")
	ErrNonZeroBalance  = errors.New("vault: cannot close account with non-zero balance")
)

type engineState interface {
	Vault(owner [20]byte) (*Vault, bool, error)
	PutVault(*Vault) error
	OpenTokenAccount(holder [20]byte, asset string) error
	CloseTokenAccount(holder [20]byte, asset string) error
	TokenBalance(holder [20]byte, asset string) (*big.Int, bool, error)
	Transfer(from, to [20]byte, asset string, amount *big.Int) error
	TransferWithCapability(cap crypto.Capability, from, to [20]byte, asset string, amount *big.Int) error
}

// Engine implements the custody-root operations: vault creation, the pause
// switch, whitelist edits and plain owner deposits/withdrawals. None of the
// invariant logic lives here; swaps are the trade engine's concern.
type Engine struct {
	state   engineState
	emitter events.Emitter
}

// NewEngine creates a vault engine with a no-op emitter.
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

func (e *Engine) loadOwned(owner [20]byte) (*Vault, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	v, ok, err := e.state.Vault(owner)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

// Initialize creates the vault for an owner. One vault per owner; the
// delegated authority and base asset are fixed at creation. The custody
// identity's base and native accounts are opened immediately.
func (e *Engine) Initialize(owner, authority [20]byte, baseAsset string) (*Vault, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	base, err := NormalizeAsset(baseAsset)
	if err != nil {
		return nil, err
	}
	if _, ok, err := e.state.Vault(owner); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrAlreadyExists
	}
	v := &Vault{
		Owner:         owner,
		Authority:     authority,
		Paused:        false,
		BaseAsset:     base,
		AllowedAssets: nil,
	}
	custody := Identity(owner)
	if err := e.state.OpenTokenAccount(custody, base); err != nil {
		return nil, err
	}
	if base != NativeAsset {
		if err := e.state.OpenTokenAccount(custody, NativeAsset); err != nil {
			return nil, err
		}
	}
	if err := e.state.PutVault(v); err != nil {
		return nil, err
	}
	e.emitter.Emit(Created{Owner: owner, Authority: authority, BaseAsset: base})
	return v.Clone(), nil
}

// TogglePause flips the vault-wide pause switch. Owner only.
func (e *Engine) TogglePause(owner [20]byte) (bool, error) {
	v, err := e.loadOwned(owner)
	if err != nil {
		return false, err
	}
	v.Paused = !v.Paused
	if err := e.state.PutVault(v); err != nil {
		return false, err
	}
	e.emitter.Emit(PauseToggled{Owner: owner, Paused: v.Paused})
	return v.Paused, nil
}

// AddAllowedAsset whitelists an asset type. Adding an already-present asset
// is a no-op, not an error.
func (e *Engine) AddAllowedAsset(owner [20]byte, asset string) error {
	v, err := e.loadOwned(owner)
	if err != nil {
		return err
	}
	normalized, err := NormalizeAsset(asset)
	if err != nil {
		return err
	}
	if normalized == v.BaseAsset {
		return nil
	}
	for _, existing := range v.AllowedAssets {
		if existing == normalized {
			return nil
		}
	}
	v.AllowedAssets = append(v.AllowedAssets, normalized)
	if err := e.state.PutVault(v); err != nil {
		return err
	}
	e.emitter.Emit(WhitelistUpdated{Owner: owner, Asset: normalized, Added: true})
	return nil
}

// RemoveAllowedAsset drops an asset from the whitelist. Removing an absent
// asset is a no-op, not an error.
func (e *Engine) RemoveAllowedAsset(owner [20]byte, asset string) error {
	v, err := e.loadOwned(owner)
	if err != nil {
		return err
	}
	normalized, err := NormalizeAsset(asset)
	if err != nil {
		return err
	}
	for i, existing := range v.AllowedAssets {
		if existing == normalized {
			v.AllowedAssets = append(v.AllowedAssets[:i], v.AllowedAssets[i+1:]...)
			if err := e.state.PutVault(v); err != nil {
				return err
			}
			e.emitter.Emit(WhitelistUpdated{Owner: owner, Asset: normalized, Added: false})
			return nil
		}
	}
	return nil
}

// OpenAccount opens a custody holding account for an allowed asset so the
// vault can receive it.
func (e *Engine) OpenAccount(owner [20]byte, asset string) error {
	v, err := e.loadOwned(owner)
	if err != nil {
		return err
	}
	normalized, err := NormalizeAsset(asset)
	if err != nil {
		return err
	}
	if !v.IsAllowed(normalized) {
		return ErrTokenNotAllowed
	}
	return e.state.OpenTokenAccount(Identity(owner), normalized)
}

// CloseAccount closes a custody holding account. The balance must be
// exactly zero; a residual balance means funds would be lost.
func (e *Engine) CloseAccount(owner [20]byte, asset string) error {
	if _, err := e.loadOwned(owner); err != nil {
		return err
	}
	normalized, err := NormalizeAsset(asset)
	if err != nil {
		return err
	}
	custody := Identity(owner)
	balance, ok, err := e.state.TokenBalance(custody, normalized)
	if err != nil {
		return err
	}
	if ok && balance.Sign() != 0 {
		return ErrNonZeroBalance
	}
	return e.state.CloseTokenAccount(custody, normalized)
}

// Deposit moves funds from the owner's own account into vault custody.
// Plain pass-through: ownership verification only, no fee, no invariants.
func (e *Engine) Deposit(owner [20]byte, asset string, amount *big.Int) error {
	v, err := e.loadOwned(owner)
	if err != nil {
		return err
	}
	normalized, err := NormalizeAsset(asset)
	if err != nil {
		return err
	}
	if !v.IsAllowed(normalized) {
		return ErrTokenNotAllowed
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("vault: deposit amount must be positive")
	}
	custody := Identity(owner)
	if err := e.state.OpenTokenAccount(custody, normalized); err != nil {
		return err
	}
	if err := e.state.Transfer(owner, custody, normalized, amount); err != nil {
		return err
	}
	e.emitter.Emit(Deposited{Owner: owner, Asset: normalized, Amount: amount})
	return nil
}

// Withdraw moves funds from vault custody back to the owner. This is the
// only unconditional custody debit in the system; it requires the owner's
// direct approval, which the caller identity check models.
func (e *Engine) Withdraw(owner [20]byte, asset string, amount *big.Int) error {
	v, err := e.loadOwned(owner)
	if err != nil {
		return err
	}
	normalized, err := NormalizeAsset(asset)
	if err != nil {
		return err
	}
	if !v.IsAllowed(normalized) {
		return ErrTokenNotAllowed
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("vault: withdraw amount must be positive")
	}
	custody := Identity(owner)
	if err := e.state.OpenTokenAccount(owner, normalized); err != nil {
		return err
	}
	if err := e.state.TransferWithCapability(Signer(owner), custody, owner, normalized, amount); err != nil {
		return err
	}
	e.emitter.Emit(Withdrawn{Owner: owner, Asset: normalized, Amount: amount})
	return nil
}
