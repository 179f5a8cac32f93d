package trade

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"stellavault/core/events"
	"stellavault/crypto"
	"stellavault/native/allocation"
	"stellavault/native/platform"
	"stellavault/native/vault"
)

var (
	ErrNilState              = errors.New("trade engine: state not configured")
	ErrNilExecutor           = errors.New("trade engine: executor client not configured")
	ErrUnauthorized          = errors.New("trade: caller is not the delegated authority")
	ErrAllocationPaused      = errors.New("trade: allocation is paused")
	ErrNotInitialized        = errors.New("trade: allocation not initialized and not syncing")
	ErrInvalidAccountOwner   = errors.New("trade: account not owned by allocation")
	ErrInvalidSwapTopology   = errors.New("trade: neither side of the swap is the base asset")
	ErrInvalidFeeDestination = errors.New("trade: platform fee account mismatch")
	ErrSlippageExceeded      = errors.New("trade: amount received below minimum")
	ErrFeeEvasion            = errors.New("trade: amount spent exceeds authorized budget")
	ErrTokenNotAllowed       = errors.New("trade: asset not base and not whitelisted")
	ErrLegacyTradingDisabled = errors.New("trade: legacy trading is disabled")
	ErrInvalidPayload        = errors.New("trade: malformed swap payload")
	ErrAccountNotFound       = errors.New("trade: holding account not found")
)

type engineState interface {
	GlobalConfig() (*platform.GlobalConfig, bool, error)
	Vault(owner [20]byte) (*vault.Vault, bool, error)
	Allocation(owner, strategy [20]byte) (*allocation.Allocation, bool, error)
	PutAllocation(*allocation.Allocation) error
	TokenBalance(holder [20]byte, asset string) (*big.Int, bool, error)
	Transfer(from, to [20]byte, asset string, amount *big.Int) error
	TransferWithCapability(cap crypto.Capability, from, to [20]byte, asset string, amount *big.Int) error
}

// Engine validates and executes delegated swaps. It never prices or routes
// an exchange; the executor is opaque and the engine only checks that the
// balance deltas it left behind match what the caller declared and paid
// fees for.
type Engine struct {
	state    engineState
	executor ExecutorClient
	emitter  events.Emitter
	// legacyFeeCollector receives the fixed legacy-path fee. Unset means
	// the legacy path is unusable even when the feature flag is on.
	legacyFeeCollector [20]byte
}

// NewEngine creates a trade engine with a no-op emitter and no executor.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetExecutor configures the external exchange executor.
func (e *Engine) SetExecutor(client ExecutorClient) { e.executor = client }

// SetLegacyFeeCollector configures the fixed fee destination for the
// deprecated vault-level swap path.
func (e *Engine) SetLegacyFeeCollector(addr [20]byte) { e.legacyFeeCollector = addr }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) requireBalance(ref AccountRef) (*big.Int, error) {
	balance, ok, err := e.state.TokenBalance(ref.Holder, ref.Asset)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, ref.Asset)
	}
	return balance, nil
}

// ExecuteSwap runs the invariant-checked allocation swap. Every validation
// failure aborts the whole operation; the caller is expected to run it
// inside one atomic state batch so no partial effect is ever observable.
func (e *Engine) ExecuteSwap(ctx context.Context, caller [20]byte, params SwapParams) (*Receipt, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if e.executor == nil {
		return nil, ErrNilExecutor
	}
	cfg, ok, err := e.state.GlobalConfig()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, platform.ErrNotInitialized
	}
	alloc, ok, err := e.state.Allocation(params.Owner, params.Strategy)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, allocation.ErrNotFound
	}
	v, ok, err := e.state.Vault(params.Owner)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, allocation.ErrVaultNotFound
	}

	// 1. Authorization and lifecycle gating.
	if alloc.Paused {
		return nil, ErrAllocationPaused
	}
	if caller != v.Authority {
		return nil, ErrUnauthorized
	}
	if !alloc.Initialized && !alloc.Syncing {
		return nil, ErrNotInitialized
	}

	if params.AmountIn == nil || params.AmountIn.Sign() <= 0 {
		return nil, fmt.Errorf("trade: amount in must be positive")
	}
	if params.MinAmountOut == nil || params.MinAmountOut.Sign() < 0 {
		return nil, fmt.Errorf("trade: min amount out must be non-negative")
	}

	// 2. Ownership: both holding accounts must belong to the allocation's
	// derived identity. This blocks rerouting output into an attacker
	// account of the same asset type.
	allocID := allocation.Identity(params.Owner, params.Strategy)
	ownedIn := params.Input.Holder == allocID
	ownedOut := params.Output.Holder == allocID
	if !ownedIn || !ownedOut {
		return nil, ErrInvalidAccountOwner
	}

	// 3. Topology: touch the base asset on at least one side, unless both
	// sides are allocation-owned (token-to-token rebalancing; ownership
	// already bounds the blast radius).
	assetIn := params.Input.Asset
	assetOut := params.Output.Asset
	if assetIn != v.BaseAsset && assetOut != v.BaseAsset && !(ownedIn && ownedOut) {
		return nil, ErrInvalidSwapTopology
	}

	// 4. Fee destination: admin-owned, denominated in the input asset.
	if params.FeeAccount.Holder != cfg.Admin {
		return nil, ErrInvalidFeeDestination
	}
	if params.FeeAccount.Asset != assetIn {
		return nil, ErrInvalidFeeDestination
	}

	if _, err := e.requireBalance(params.Input); err != nil {
		return nil, err
	}
	if _, err := e.requireBalance(params.Output); err != nil {
		return nil, err
	}
	if _, err := e.requireBalance(params.FeeAccount); err != nil {
		return nil, fmt.Errorf("%w: fee account missing", ErrInvalidFeeDestination)
	}

	// 5. Fee computation. swapAmount is the post-fee execution budget; the
	// post-swap check verifies spend against it, not against AmountIn.
	fee := computeFee(params.AmountIn, cfg.PlatformFeeBps)
	swapAmount := new(big.Int).Sub(params.AmountIn, fee)
	if swapAmount.Sign() < 0 {
		return nil, ErrFeeEvasion
	}

	signer := allocation.Signer(params.Owner, params.Strategy)

	// 6. Collect the fee before the exchange so the snapshot below already
	// reflects the debit.
	if fee.Sign() > 0 {
		if err := e.state.TransferWithCapability(signer, params.Input.Holder, params.FeeAccount.Holder, assetIn, fee); err != nil {
			return nil, err
		}
	}

	// 7. Balance snapshot, re-read after the fee transfer.
	balanceInBefore, err := e.requireBalance(params.Input)
	if err != nil {
		return nil, err
	}
	balanceOutBefore, err := e.requireBalance(params.Output)
	if err != nil {
		return nil, err
	}

	// 8. Delegated execution. The mock marker skips the external call and
	// moves nothing: the ownership check has already pinned both refs to
	// the allocation's custody identity, so a same-asset pair names a
	// single account and there is no distinct destination to deliver
	// into. Mock swaps exercise control flow only.
	if params.Executor != MockExecutor {
		if err := e.executor.Execute(ctx, params.Executor, params.Payload, signer, e.state); err != nil {
			return nil, fmt.Errorf("trade: executor failed: %w", err)
		}
	}

	// 9. Post-execution validation against the declared inputs.
	balanceInAfter, err := e.requireBalance(params.Input)
	if err != nil {
		return nil, err
	}
	balanceOutAfter, err := e.requireBalance(params.Output)
	if err != nil {
		return nil, err
	}
	amountSpent := new(big.Int).Sub(balanceInBefore, balanceInAfter)
	if amountSpent.Sign() < 0 {
		amountSpent = big.NewInt(0)
	}
	amountReceived := new(big.Int).Sub(balanceOutAfter, balanceOutBefore)
	if amountReceived.Sign() < 0 {
		amountReceived = big.NewInt(0)
	}
	if amountSpent.Cmp(swapAmount) > 0 {
		return nil, ErrFeeEvasion
	}
	if amountReceived.Cmp(params.MinAmountOut) < 0 {
		return nil, ErrSlippageExceeded
	}

	// 10. Accounting: collapsing back into the base asset replaces the
	// tracked equity outright. Performance fees and the high-water mark
	// are deferred.
	receipt := &Receipt{
		Fee:            fee,
		SwapAmount:     swapAmount,
		AmountSpent:    amountSpent,
		AmountReceived: amountReceived,
	}
	if assetOut == v.BaseAsset {
		alloc.CurrentValue = new(big.Int).Set(amountReceived)
		if err := e.state.PutAllocation(alloc); err != nil {
			return nil, err
		}
		receipt.ValueUpdated = true
	}

	e.emitter.Emit(SwapExecuted{
		Owner:          params.Owner,
		Strategy:       params.Strategy,
		AssetIn:        assetIn,
		AssetOut:       assetOut,
		Fee:            fee,
		AmountSpent:    amountSpent,
		AmountReceived: amountReceived,
	})
	return receipt, nil
}
