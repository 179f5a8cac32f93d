package trade

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"stellavault/native/vault"
)

// =========================================================================
// LEGACY PATH — DEPRECATED
// Disabled by GlobalConfig.LegacyTradingEnabled.
// DO NOT EXTEND. All new execution must use allocation swaps (ExecuteSwap).
// =========================================================================

// legacyHeaderLen is the fixed header preceding the executor payload in an
// encoded legacy swap operation: 8-byte tag + 8-byte amountIn + 8-byte
// minAmountOut, little-endian.
const legacyHeaderLen = 8 + 8 + 8

// legacySwapTag identifies a legacy swap operation inside a batch.
var legacySwapTag = func() [8]byte {
	var tag [8]byte
	copy(tag[:], ethcrypto.Keccak256([]byte("stellavault/legacy_swap"))[:8])
	return tag
}()

// legacyFeeBps is the fixed legacy fee. The allocation path reads the
// configurable platform fee instead; the divergence is preserved for
// backward compatibility, not unified.
const legacyFeeBps uint16 = 10

// BatchContext exposes the raw encoded operations of the current atomic
// batch. The legacy path recovers the executor payload from its own
// operation's bytes instead of an explicit parameter.
type BatchContext interface {
	// CurrentOperation returns the raw encoding of the operation being
	// executed.
	CurrentOperation() ([]byte, error)
	// Operations returns the ordered raw encodings of every operation in
	// the batch.
	Operations() [][]byte
}

// EncodeLegacySwapOp renders the wire form of a legacy swap operation:
// tag, amountIn, minAmountOut, then the opaque executor payload.
func EncodeLegacySwapOp(amountIn, minAmountOut uint64, payload []byte) []byte {
	buf := make([]byte, legacyHeaderLen+len(payload))
	copy(buf[:8], legacySwapTag[:])
	binary.LittleEndian.PutUint64(buf[8:16], amountIn)
	binary.LittleEndian.PutUint64(buf[16:24], minAmountOut)
	copy(buf[legacyHeaderLen:], payload)
	return buf
}

// DecodeLegacySwapOp parses an encoded legacy swap operation. The payload
// must be non-empty: an operation with nothing after the header carries no
// executor instruction.
func DecodeLegacySwapOp(raw []byte) (amountIn, minAmountOut uint64, payload []byte, err error) {
	if len(raw) <= legacyHeaderLen {
		return 0, 0, nil, fmt.Errorf("%w: operation shorter than %d bytes", ErrInvalidPayload, legacyHeaderLen)
	}
	var tag [8]byte
	copy(tag[:], raw[:8])
	if tag != legacySwapTag {
		return 0, 0, nil, fmt.Errorf("%w: unknown operation tag", ErrInvalidPayload)
	}
	amountIn = binary.LittleEndian.Uint64(raw[8:16])
	minAmountOut = binary.LittleEndian.Uint64(raw[16:24])
	payload = raw[legacyHeaderLen:]
	return amountIn, minAmountOut, payload, nil
}

// ExecuteLegacySwap is the deprecated vault-level swap. It operates on
// vault custody accounts against the vault whitelist, applies a fixed
// 10 bps fee regardless of GlobalConfig, and reads its executor payload
// out of the current batch operation. It exists only for callers predating
// the allocation model.
func (e *Engine) ExecuteLegacySwap(ctx context.Context, caller, owner [20]byte, batch BatchContext, executor [20]byte, input, output, feeAccount AccountRef) (*Receipt, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if e.executor == nil {
		return nil, ErrNilExecutor
	}
	if batch == nil {
		return nil, fmt.Errorf("%w: no batch context", ErrInvalidPayload)
	}
	cfg, ok, err := e.state.GlobalConfig()
	if err != nil {
		return nil, err
	}
	if !ok || !cfg.LegacyTradingEnabled {
		return nil, ErrLegacyTradingDisabled
	}
	v, ok, err := e.state.Vault(owner)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, vault.ErrNotFound
	}
	if v.Paused {
		return nil, vault.ErrPaused
	}
	if caller != v.Authority {
		return nil, ErrUnauthorized
	}

	// Whitelist: both sides must be assets the vault may hold.
	if !v.IsAllowed(input.Asset) || !v.IsAllowed(output.Asset) {
		return nil, ErrTokenNotAllowed
	}
	// Topology: the legacy path has no ownership exemption; one side must
	// be the base asset.
	if input.Asset != v.BaseAsset && output.Asset != v.BaseAsset {
		return nil, ErrInvalidSwapTopology
	}
	// The spend side must be vault custody. The output account is not
	// ownership-checked here; that is the weaker legacy trust model and
	// one of the reasons this path is frozen.
	vaultID := vault.Identity(owner)
	if input.Holder != vaultID {
		return nil, ErrInvalidAccountOwner
	}
	if feeAccount.Holder != e.legacyFeeCollector || e.legacyFeeCollector == ([20]byte{}) {
		return nil, ErrInvalidFeeDestination
	}

	raw, err := batch.CurrentOperation()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	amountIn64, minAmountOut64, payload, err := DecodeLegacySwapOp(raw)
	if err != nil {
		return nil, err
	}
	amountIn := new(big.Int).SetUint64(amountIn64)
	minAmountOut := new(big.Int).SetUint64(minAmountOut64)

	if _, err := e.requireBalance(input); err != nil {
		return nil, err
	}
	if _, err := e.requireBalance(output); err != nil {
		return nil, err
	}
	if _, err := e.requireBalance(feeAccount); err != nil {
		return nil, fmt.Errorf("%w: fee account missing", ErrInvalidFeeDestination)
	}

	// Legacy ordering: snapshot first, then fee, so the evasion bound is
	// the full declared amountIn (fee inclusive).
	balanceInBefore, err := e.requireBalance(input)
	if err != nil {
		return nil, err
	}
	balanceOutBefore, err := e.requireBalance(output)
	if err != nil {
		return nil, err
	}

	fee := computeFee(amountIn, legacyFeeBps)
	signer := vault.Signer(owner)
	if fee.Sign() > 0 {
		if err := e.state.TransferWithCapability(signer, input.Holder, feeAccount.Holder, input.Asset, fee); err != nil {
			return nil, err
		}
	}

	swapAmount := new(big.Int).Sub(amountIn, fee)
	// Unlike the allocation path, the legacy route has no mock marker:
	// every target, the well-known mock identity included, goes through
	// the executor client.
	if err := e.executor.Execute(ctx, executor, payload, signer, e.state); err != nil {
		return nil, fmt.Errorf("trade: executor failed: %w", err)
	}

	balanceInAfter, err := e.requireBalance(input)
	if err != nil {
		return nil, err
	}
	balanceOutAfter, err := e.requireBalance(output)
	if err != nil {
		return nil, err
	}
	amountReceived := new(big.Int).Sub(balanceOutAfter, balanceOutBefore)
	if amountReceived.Sign() < 0 {
		amountReceived = big.NewInt(0)
	}
	if amountReceived.Cmp(minAmountOut) < 0 {
		return nil, ErrSlippageExceeded
	}
	amountSpent := new(big.Int).Sub(balanceInBefore, balanceInAfter)
	if amountSpent.Sign() < 0 {
		amountSpent = big.NewInt(0)
	}
	if amountSpent.Cmp(amountIn) > 0 {
		return nil, ErrFeeEvasion
	}

	e.emitter.Emit(LegacySwapExecuted{
		Owner:          owner,
		AssetIn:        input.Asset,
		AssetOut:       output.Asset,
		Fee:            fee,
		AmountSpent:    amountSpent,
		AmountReceived: amountReceived,
	})
	return &Receipt{
		Fee:            fee,
		SwapAmount:     swapAmount,
		AmountSpent:    amountSpent,
		AmountReceived: amountReceived,
	}, nil
}
