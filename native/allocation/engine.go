package allocation

import (
	"errors"
	"fmt"
	"math/big"

	"stellavault/core/events"
	"stellavault/crypto"
	"stellavault/native/vault"
)

var (
	ErrNilState           = errors.New("allocation engine: state not configured")
	ErrNotFound           = errors.New("allocation: not found")
	ErrAlreadyExists      = errors.New("allocation: already exists for strategy")
	ErrVaultNotFound      = errors.New("allocation: vault not found for owner")
	ErrUnauthorized       = errors.New("allocation: caller not authorized")
	ErrPaused             = errors.New("allocation: paused")
	ErrNotPaused          = errors.New("allocation: must be paused")
	ErrAlreadyInitialized = errors.New("allocation: already initialized")
	ErrNotSyncing         = errors.New("allocation: not in sync phase")
	ErrNotSettled         = errors.New("allocation: funds not settled in base asset")
	ErrInsufficientFunds  = errors.New("allocation: holdings below tracked value")
	ErrMintMismatch       = errors.New("allocation: non-base holdings present")
	ErrNonZeroBalance     = errors.New("allocation: cannot close account with non-zero balance")
)

// Holding is one token account owned by an allocation's derived identity.
type Holding struct {
	Asset   string
	Balance *big.Int
}

type engineState interface {
	Vault(owner [20]byte) (*vault.Vault, bool, error)
	Allocation(owner, strategy [20]byte) (*Allocation, bool, error)
	PutAllocation(*Allocation) error
	DeleteAllocation(owner, strategy [20]byte) error
	OpenTokenAccount(holder [20]byte, asset string) error
	CloseTokenAccount(holder [20]byte, asset string) error
	TokenBalance(holder [20]byte, asset string) (*big.Int, bool, error)
	TokenHoldings(holder [20]byte) ([]Holding, error)
	TransferWithCapability(cap crypto.Capability, from, to [20]byte, asset string, amount *big.Int) error
}

// Engine drives the allocation lifecycle state machine. It owns every
// transition between creation and destruction; the trade engine only ever
// mutates CurrentValue.
type Engine struct {
	state   engineState
	emitter events.Emitter
}

// NewEngine creates an allocation engine with a no-op emitter.
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

func (e *Engine) load(owner, strategy [20]byte) (*Allocation, *vault.Vault, error) {
	if e == nil || e.state == nil {
		return nil, nil, ErrNilState
	}
	alloc, ok, err := e.state.Allocation(owner, strategy)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, ErrNotFound
	}
	v, ok, err := e.state.Vault(owner)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, ErrVaultNotFound
	}
	if alloc.Vault != vault.Identity(v.Owner) || v.Owner != alloc.Owner {
		return nil, nil, ErrUnauthorized
	}
	return alloc, v, nil
}

// Create funds a new allocation from the vault and opens its base-asset
// holding account. Exactly one allocation may exist per (owner, strategy).
func (e *Engine) Create(owner, strategy [20]byte, amount *big.Int) (*Allocation, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	v, ok, err := e.state.Vault(owner)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrVaultNotFound
	}
	if _, ok, err := e.state.Allocation(owner, strategy); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrAlreadyExists
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("allocation: funding amount must be positive")
	}
	allocID := Identity(owner, strategy)
	if err := e.state.OpenTokenAccount(allocID, v.BaseAsset); err != nil {
		return nil, err
	}
	vaultID := vault.Identity(owner)
	if err := e.state.TransferWithCapability(vault.Signer(owner), vaultID, allocID, v.BaseAsset, amount); err != nil {
		return nil, err
	}
	alloc := &Allocation{
		Owner:            owner,
		Strategy:         strategy,
		Vault:            vaultID,
		CurrentValue:     new(big.Int).Set(amount),
		HighWaterMark:    new(big.Int).Set(amount),
		CumulativeProfit: big.NewInt(0),
	}
	if err := e.state.PutAllocation(alloc); err != nil {
		return nil, err
	}
	e.emitter.Emit(CreatedEvent{Owner: owner, Strategy: strategy, Amount: amount})
	return alloc.Clone(), nil
}

// Pause halts trading on the allocation. Owner only; idempotent.
func (e *Engine) Pause(owner, strategy [20]byte) error {
	alloc, _, err := e.load(owner, strategy)
	if err != nil {
		return err
	}
	if alloc.Paused {
		return nil
	}
	alloc.Paused = true
	if err := e.state.PutAllocation(alloc); err != nil {
		return err
	}
	e.emitter.Emit(PausedEvent{Owner: owner, Strategy: strategy})
	return nil
}

// Resume re-enables trading. The allocation returns to whichever phase it
// was in before the pause. Owner only; idempotent.
func (e *Engine) Resume(owner, strategy [20]byte) error {
	alloc, _, err := e.load(owner, strategy)
	if err != nil {
		return err
	}
	if !alloc.Paused {
		return nil
	}
	alloc.Paused = false
	alloc.Settled = false
	if err := e.state.PutAllocation(alloc); err != nil {
		return err
	}
	e.emitter.Emit(ResumedEvent{Owner: owner, Strategy: strategy})
	return nil
}

// StartSync opens the portfolio sync phase. Backend authority only. The
// sync phase is a one-way gate: once the allocation is initialized it can
// never reopen.
func (e *Engine) StartSync(caller, owner, strategy [20]byte) error {
	alloc, v, err := e.load(owner, strategy)
	if err != nil {
		return err
	}
	if caller != v.Authority {
		return ErrUnauthorized
	}
	if alloc.Initialized {
		return ErrAlreadyInitialized
	}
	if alloc.Paused {
		return ErrPaused
	}
	if alloc.Syncing {
		return nil
	}
	alloc.Syncing = true
	if err := e.state.PutAllocation(alloc); err != nil {
		return err
	}
	e.emitter.Emit(SyncStartedEvent{Owner: owner, Strategy: strategy})
	return nil
}

// FinishSync closes the sync phase and marks the allocation initialized.
// Backend authority only; one-time.
func (e *Engine) FinishSync(caller, owner, strategy [20]byte) error {
	alloc, v, err := e.load(owner, strategy)
	if err != nil {
		return err
	}
	if caller != v.Authority {
		return ErrUnauthorized
	}
	if alloc.Initialized {
		return ErrAlreadyInitialized
	}
	if !alloc.Syncing {
		return ErrNotSyncing
	}
	alloc.Syncing = false
	alloc.Initialized = true
	if err := e.state.PutAllocation(alloc); err != nil {
		return err
	}
	e.emitter.Emit(SyncFinishedEvent{Owner: owner, Strategy: strategy})
	return nil
}

// MarkInitialized is the legacy-compatible initialization path: it skips
// the sync phase entirely. Owner or backend authority; one-time.
func (e *Engine) MarkInitialized(caller, owner, strategy [20]byte) error {
	alloc, v, err := e.load(owner, strategy)
	if err != nil {
		return err
	}
	if caller != v.Owner && caller != v.Authority {
		return ErrUnauthorized
	}
	if alloc.Initialized {
		return ErrAlreadyInitialized
	}
	alloc.Initialized = true
	alloc.Syncing = false
	if err := e.state.PutAllocation(alloc); err != nil {
		return err
	}
	e.emitter.Emit(InitializedEvent{Owner: owner, Strategy: strategy, By: caller})
	return nil
}

// OpenHoldingAccount opens an additional holding account so the allocation
// can hold a non-base asset mid-strategy. Owner only; no funds move.
func (e *Engine) OpenHoldingAccount(owner, strategy [20]byte, asset string) error {
	alloc, _, err := e.load(owner, strategy)
	if err != nil {
		return err
	}
	normalized, err := vault.NormalizeAsset(asset)
	if err != nil {
		return err
	}
	return e.state.OpenTokenAccount(Identity(alloc.Owner, alloc.Strategy), normalized)
}

// CloseHoldingAccount closes a holding account. The allocation must be
// paused (so nothing is mid-trade) and the balance must be exactly zero.
func (e *Engine) CloseHoldingAccount(owner, strategy [20]byte, asset string) error {
	alloc, _, err := e.load(owner, strategy)
	if err != nil {
		return err
	}
	if !alloc.Paused {
		return ErrNotPaused
	}
	normalized, err := vault.NormalizeAsset(asset)
	if err != nil {
		return err
	}
	allocID := Identity(owner, strategy)
	balance, ok, err := e.state.TokenBalance(allocID, normalized)
	if err != nil {
		return err
	}
	if ok && balance.Sign() != 0 {
		return ErrNonZeroBalance
	}
	return e.state.CloseTokenAccount(allocID, normalized)
}

// Settle proves the allocation's holdings are entirely in the base asset
// and at least equal to its tracked value, unlocking withdrawal. Owner or
// backend authority; requires the allocation to be paused.
func (e *Engine) Settle(caller, owner, strategy [20]byte) error {
	alloc, v, err := e.load(owner, strategy)
	if err != nil {
		return err
	}
	if caller != v.Owner && caller != v.Authority {
		return ErrUnauthorized
	}
	if !alloc.Paused {
		return ErrNotPaused
	}
	allocID := Identity(owner, strategy)
	holdings, err := e.state.TokenHoldings(allocID)
	if err != nil {
		return err
	}
	baseBalance := big.NewInt(0)
	for _, holding := range holdings {
		if holding.Asset == v.BaseAsset {
			baseBalance = holding.Balance
			continue
		}
		if holding.Balance != nil && holding.Balance.Sign() != 0 {
			return ErrMintMismatch
		}
	}
	if baseBalance.Cmp(alloc.CurrentValue) < 0 {
		return ErrInsufficientFunds
	}
	alloc.Settled = true
	if err := e.state.PutAllocation(alloc); err != nil {
		return err
	}
	e.emitter.Emit(SettledEvent{Owner: owner, Strategy: strategy, Equity: alloc.CurrentValue})
	return nil
}

// Withdraw is the exit flow: allocation -> vault -> owner. Requires the
// allocation to be paused and settled. Destroys the allocation and its
// holding accounts.
func (e *Engine) Withdraw(owner, strategy [20]byte) (*big.Int, error) {
	alloc, v, err := e.load(owner, strategy)
	if err != nil {
		return nil, err
	}
	if !alloc.Paused {
		return nil, ErrNotPaused
	}
	if !alloc.Settled {
		return nil, ErrNotSettled
	}
	allocID := Identity(owner, strategy)
	vaultID := vault.Identity(owner)
	amount, ok, err := e.state.TokenBalance(allocID, v.BaseAsset)
	if err != nil {
		return nil, err
	}
	if !ok {
		amount = big.NewInt(0)
	}
	if amount.Sign() > 0 {
		if err := e.state.TransferWithCapability(Signer(owner, strategy), allocID, vaultID, v.BaseAsset, amount); err != nil {
			return nil, err
		}
		if err := e.state.OpenTokenAccount(owner, v.BaseAsset); err != nil {
			return nil, err
		}
		if err := e.state.TransferWithCapability(vault.Signer(owner), vaultID, owner, v.BaseAsset, amount); err != nil {
			return nil, err
		}
	}
	if err := e.destroy(allocID, owner, strategy); err != nil {
		return nil, err
	}
	e.emitter.Emit(WithdrawnEvent{Owner: owner, Strategy: strategy, Amount: amount})
	return amount, nil
}

// Close destroys a paused allocation, refunding any base-asset remainder to
// the vault. Non-base holdings must already be empty.
func (e *Engine) Close(owner, strategy [20]byte) error {
	alloc, v, err := e.load(owner, strategy)
	if err != nil {
		return err
	}
	if !alloc.Paused {
		return ErrNotPaused
	}
	allocID := Identity(owner, strategy)
	holdings, err := e.state.TokenHoldings(allocID)
	if err != nil {
		return err
	}
	refund := big.NewInt(0)
	for _, holding := range holdings {
		if holding.Asset == v.BaseAsset {
			refund = holding.Balance
			continue
		}
		if holding.Balance != nil && holding.Balance.Sign() != 0 {
			return ErrNonZeroBalance
		}
	}
	if refund.Sign() > 0 {
		if err := e.state.TransferWithCapability(Signer(owner, strategy), allocID, vault.Identity(owner), v.BaseAsset, refund); err != nil {
			return err
		}
	}
	if err := e.destroy(allocID, owner, strategy); err != nil {
		return err
	}
	e.emitter.Emit(ClosedEvent{Owner: owner, Strategy: strategy, Refund: refund})
	return nil
}

func (e *Engine) destroy(allocID [20]byte, owner, strategy [20]byte) error {
	holdings, err := e.state.TokenHoldings(allocID)
	if err != nil {
		return err
	}
	for _, holding := range holdings {
		if err := e.state.CloseTokenAccount(allocID, holding.Asset); err != nil {
			return err
		}
	}
	return e.state.DeleteAllocation(owner, strategy)
}

// Get returns the allocation record, if present.
func (e *Engine) Get(owner, strategy [20]byte) (*Allocation, error) {
	alloc, _, err := e.load(owner, strategy)
	if err != nil {
		return nil, err
	}
	return alloc.Clone(), nil
}
