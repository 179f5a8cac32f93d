package trade

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"

	"stellavault/native/vault"
)

type staticBatch struct {
	op []byte
}

func (b staticBatch) CurrentOperation() ([]byte, error) { return b.op, nil }

func (b staticBatch) Operations() [][]byte { return [][]byte{b.op} }

var testCollector = newTestAddress(0x07)

func newLegacyEngine(t *testing.T) (*Engine, *mockState) {
	t.Helper()
	e, state := newTestEngine(t)
	state.config.LegacyTradingEnabled = true
	e.SetLegacyFeeCollector(testCollector)

	vaultID := vault.Identity(testOwner)
	state.setBalance(vaultID, "USDC", 10_000)
	state.setBalance(vaultID, "ETH", 0)
	state.setBalance(testCollector, "USDC", 0)
	state.setBalance(testCollector, "ETH", 0)
	return e, state
}

func legacyRefs() (input, output, feeAccount AccountRef) {
	vaultID := vault.Identity(testOwner)
	input = AccountRef{Holder: vaultID, Asset: "USDC"}
	output = AccountRef{Holder: vaultID, Asset: "ETH"}
	feeAccount = AccountRef{Holder: testCollector, Asset: "USDC"}
	return input, output, feeAccount
}

func TestLegacyOpRoundTrip(t *testing.T) {
	payload := []byte("route-v2:USDC/ETH")
	raw := EncodeLegacySwapOp(10_000, 9_500, payload)

	amountIn, minAmountOut, got, err := DecodeLegacySwapOp(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if amountIn != 10_000 || minAmountOut != 9_500 {
		t.Fatalf("decoded amounts %d/%d", amountIn, minAmountOut)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch: %q", got)
	}
}

func TestLegacyOpRejectsMalformedEncodings(t *testing.T) {
	// Header with no payload.
	raw := EncodeLegacySwapOp(1, 1, nil)
	if _, _, _, err := DecodeLegacySwapOp(raw); !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload for empty payload, got %v", err)
	}
	if _, _, _, err := DecodeLegacySwapOp(raw[:10]); !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload for truncated op, got %v", err)
	}
	// Wrong tag.
	forged := EncodeLegacySwapOp(1, 1, []byte("x"))
	forged[0] ^= 0xff
	if _, _, _, err := DecodeLegacySwapOp(forged); !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload for unknown tag, got %v", err)
	}
}

func TestLegacySwapDisabledByDefault(t *testing.T) {
	e, state := newLegacyEngine(t)
	e.SetExecutor(refusingExecutor{})
	state.config.LegacyTradingEnabled = false

	input, output, feeAccount := legacyRefs()
	batch := staticBatch{op: EncodeLegacySwapOp(1000, 0, []byte("x"))}
	_, err := e.ExecuteLegacySwap(context.Background(), testAuthority, testOwner, batch, testExecutor, input, output, feeAccount)
	if !errors.Is(err, ErrLegacyTradingDisabled) {
		t.Fatalf("expected ErrLegacyTradingDisabled, got %v", err)
	}
}

func TestLegacySwapAppliesFixedFee(t *testing.T) {
	e, state := newLegacyEngine(t)
	vaultID := vault.Identity(testOwner)
	exec := &fakeExchange{
		market:  testMarket,
		input:   AccountRef{Holder: vaultID, Asset: "USDC"},
		output:  AccountRef{Holder: vaultID, Asset: "ETH"},
		spend:   big.NewInt(9_990),
		deliver: big.NewInt(4_000),
	}
	e.SetExecutor(exec)

	input, output, feeAccount := legacyRefs()
	batch := staticBatch{op: EncodeLegacySwapOp(10_000, 3_500, []byte("route"))}
	receipt, err := e.ExecuteLegacySwap(context.Background(), testAuthority, testOwner, batch, testExecutor, input, output, feeAccount)
	if err != nil {
		t.Fatalf("legacy swap: %v", err)
	}
	// Fixed 10 bps of 10000 regardless of configured platform fee.
	if receipt.Fee.Int64() != 10 {
		t.Fatalf("fee = %s, want 10", receipt.Fee)
	}
	// Snapshot precedes the fee, so the debit counts against amountIn.
	if receipt.AmountSpent.Int64() != 10_000 {
		t.Fatalf("spent = %s, want 10000", receipt.AmountSpent)
	}
	if receipt.AmountReceived.Int64() != 4_000 {
		t.Fatalf("received = %s, want 4000", receipt.AmountReceived)
	}
	if got := state.balance(testCollector, "USDC"); got != 10 {
		t.Fatalf("collector balance = %d, want 10", got)
	}
}

func TestLegacySwapEvasionBoundIsFullAmount(t *testing.T) {
	e, state := newLegacyEngine(t)
	vaultID := vault.Identity(testOwner)
	state.setBalance(vaultID, "USDC", 20_000)
	// One unit past the fee-inclusive budget.
	exec := &fakeExchange{
		market:  testMarket,
		input:   AccountRef{Holder: vaultID, Asset: "USDC"},
		output:  AccountRef{Holder: vaultID, Asset: "ETH"},
		spend:   big.NewInt(9_991),
		deliver: big.NewInt(4_000),
	}
	e.SetExecutor(exec)

	input, output, feeAccount := legacyRefs()
	batch := staticBatch{op: EncodeLegacySwapOp(10_000, 0, []byte("route"))}
	_, err := e.ExecuteLegacySwap(context.Background(), testAuthority, testOwner, batch, testExecutor, input, output, feeAccount)
	if !errors.Is(err, ErrFeeEvasion) {
		t.Fatalf("expected ErrFeeEvasion, got %v", err)
	}
}

func TestLegacySwapRoutesMockMarkerToExecutor(t *testing.T) {
	e, _ := newLegacyEngine(t)
	vaultID := vault.Identity(testOwner)
	exec := &fakeExchange{
		market:  testMarket,
		input:   AccountRef{Holder: vaultID, Asset: "USDC"},
		output:  AccountRef{Holder: vaultID, Asset: "ETH"},
		spend:   big.NewInt(900),
		deliver: big.NewInt(400),
	}
	e.SetExecutor(exec)

	input, output, feeAccount := legacyRefs()
	batch := staticBatch{op: EncodeLegacySwapOp(1000, 0, []byte("route"))}
	receipt, err := e.ExecuteLegacySwap(context.Background(), testAuthority, testOwner, batch, MockExecutor, input, output, feeAccount)
	if err != nil {
		t.Fatalf("legacy swap: %v", err)
	}
	// The well-known mock identity is just another target here: the
	// executor client must be invoked, no short-circuit.
	if !exec.called {
		t.Fatal("executor client was not invoked for the mock identity")
	}
	if receipt.AmountReceived.Int64() != 400 {
		t.Fatalf("received = %s, want 400", receipt.AmountReceived)
	}
}

func TestLegacySwapAuthorizationAndPause(t *testing.T) {
	e, state := newLegacyEngine(t)
	e.SetExecutor(refusingExecutor{})
	input, output, feeAccount := legacyRefs()
	batch := staticBatch{op: EncodeLegacySwapOp(1000, 0, []byte("x"))}

	if _, err := e.ExecuteLegacySwap(context.Background(), testOwner, testOwner, batch, testExecutor, input, output, feeAccount); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	state.vaults[testOwner].Paused = true
	if _, err := e.ExecuteLegacySwap(context.Background(), testAuthority, testOwner, batch, testExecutor, input, output, feeAccount); !errors.Is(err, vault.ErrPaused) {
		t.Fatalf("expected vault.ErrPaused, got %v", err)
	}
}

func TestLegacySwapWhitelistAndTopology(t *testing.T) {
	e, state := newLegacyEngine(t)
	e.SetExecutor(refusingExecutor{})
	vaultID := vault.Identity(testOwner)
	batch := staticBatch{op: EncodeLegacySwapOp(1000, 0, []byte("x"))}

	input, _, feeAccount := legacyRefs()
	output := AccountRef{Holder: vaultID, Asset: "DOGE"}
	if _, err := e.ExecuteLegacySwap(context.Background(), testAuthority, testOwner, batch, testExecutor, input, output, feeAccount); !errors.Is(err, ErrTokenNotAllowed) {
		t.Fatalf("expected ErrTokenNotAllowed, got %v", err)
	}

	// Both sides whitelisted but neither is the base asset.
	state.vaults[testOwner].AllowedAssets = []string{"ETH", "BTC"}
	input = AccountRef{Holder: vaultID, Asset: "ETH"}
	output = AccountRef{Holder: vaultID, Asset: "BTC"}
	feeAccount = AccountRef{Holder: testCollector, Asset: "ETH"}
	if _, err := e.ExecuteLegacySwap(context.Background(), testAuthority, testOwner, batch, testExecutor, input, output, feeAccount); !errors.Is(err, ErrInvalidSwapTopology) {
		t.Fatalf("expected ErrInvalidSwapTopology, got %v", err)
	}
}

func TestLegacySwapInputMustBeVaultCustody(t *testing.T) {
	e, state := newLegacyEngine(t)
	e.SetExecutor(refusingExecutor{})
	attacker := newTestAddress(0x09)
	state.setBalance(attacker, "USDC", 5_000)

	_, output, feeAccount := legacyRefs()
	input := AccountRef{Holder: attacker, Asset: "USDC"}
	batch := staticBatch{op: EncodeLegacySwapOp(1000, 0, []byte("x"))}
	_, err := e.ExecuteLegacySwap(context.Background(), testAuthority, testOwner, batch, testExecutor, input, output, feeAccount)
	if !errors.Is(err, ErrInvalidAccountOwner) {
		t.Fatalf("expected ErrInvalidAccountOwner, got %v", err)
	}
}

func TestLegacySwapFeeCollectorEnforced(t *testing.T) {
	e, state := newLegacyEngine(t)
	e.SetExecutor(refusingExecutor{})
	stranger := newTestAddress(0x0a)
	state.setBalance(stranger, "USDC", 0)

	input, output, _ := legacyRefs()
	batch := staticBatch{op: EncodeLegacySwapOp(1000, 0, []byte("x"))}
	feeAccount := AccountRef{Holder: stranger, Asset: "USDC"}
	if _, err := e.ExecuteLegacySwap(context.Background(), testAuthority, testOwner, batch, testExecutor, input, output, feeAccount); !errors.Is(err, ErrInvalidFeeDestination) {
		t.Fatalf("expected ErrInvalidFeeDestination, got %v", err)
	}

	// An engine with no collector configured never accepts a fee account.
	e.SetLegacyFeeCollector([20]byte{})
	_, _, feeAccount = legacyRefs()
	if _, err := e.ExecuteLegacySwap(context.Background(), testAuthority, testOwner, batch, testExecutor, input, output, feeAccount); !errors.Is(err, ErrInvalidFeeDestination) {
		t.Fatalf("expected ErrInvalidFeeDestination when unset, got %v", err)
	}
}
