package core

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"stellavault/crypto"
	"stellavault/native/allocation"
	"stellavault/native/trade"
	"stellavault/native/vault"
	"stellavault/state"
	"stellavault/storage"
)

func testAddress(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

var (
	adminAddr     = testAddress(0x01)
	ownerAddr     = testAddress(0x02)
	authorityAddr = testAddress(0x03)
	strategyAddr  = testAddress(0x04)
	marketAddr    = testAddress(0x05)
)

func newTestNode(t *testing.T) *Node {
	t.Helper()
	node := NewNode(state.NewManager(storage.NewMemDB()), nil)
	if err := node.Bootstrap(adminAddr); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	return node
}

func fundVault(t *testing.T, node *Node, amount int64) {
	t.Helper()
	if _, err := node.VaultCreate(ownerAddr, authorityAddr, "USDC"); err != nil {
		t.Fatalf("vault create: %v", err)
	}
	if err := node.Mint(adminAddr, ownerAddr, "USDC", big.NewInt(amount)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := node.VaultDeposit(ownerAddr, "USDC", big.NewInt(amount)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
}

func TestBootstrapAdoptsStoredAdmin(t *testing.T) {
	db := storage.NewMemDB()
	node := NewNode(state.NewManager(db), nil)
	if err := node.Bootstrap(adminAddr); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	// Restart against the same database with a different configured admin.
	other := NewNode(state.NewManager(db), nil)
	if err := other.Bootstrap(testAddress(0x0f)); err != nil {
		t.Fatalf("re-bootstrap: %v", err)
	}
	cfg, err := other.PlatformConfig()
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if cfg.Admin != adminAddr {
		t.Fatal("stored admin must win over the configured one")
	}
}

func TestMintRequiresAdmin(t *testing.T) {
	node := newTestNode(t)
	err := node.Mint(ownerAddr, ownerAddr, "USDC", big.NewInt(10))
	if !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("expected ErrNotAdmin, got %v", err)
	}
}

func TestAllocationLifecycleEndToEnd(t *testing.T) {
	node := newTestNode(t)
	fundVault(t, node, 5_000)

	alloc, err := node.AllocationCreate(ownerAddr, strategyAddr, big.NewInt(2_000))
	if err != nil {
		t.Fatalf("allocation create: %v", err)
	}
	if alloc.CurrentValue.Int64() != 2_000 {
		t.Fatalf("tracked value = %s", alloc.CurrentValue)
	}
	if err := node.AllocationMarkInitialized(ownerAddr, ownerAddr, strategyAddr); err != nil {
		t.Fatalf("mark initialized: %v", err)
	}

	if err := node.AllocationPause(ownerAddr, strategyAddr); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := node.AllocationSettle(ownerAddr, ownerAddr, strategyAddr); err != nil {
		t.Fatalf("settle: %v", err)
	}
	amount, err := node.AllocationWithdraw(ownerAddr, strategyAddr)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if amount.Int64() != 2_000 {
		t.Fatalf("withdrawn = %s, want 2000", amount)
	}

	if _, _, err := node.AllocationGet(ownerAddr, strategyAddr); !errors.Is(err, allocation.ErrNotFound) {
		t.Fatalf("allocation should be destroyed, got %v", err)
	}

	// Funds are back in owner hands: a fresh deposit of the full balance
	// must succeed.
	if err := node.VaultDeposit(ownerAddr, "USDC", big.NewInt(2_000)); err != nil {
		t.Fatalf("re-deposit returned funds: %v", err)
	}
}

// slippingExecutor moves real value and then under-delivers, so the swap
// fails only at the post-execution check.
type slippingExecutor struct {
	input  trade.AccountRef
	market [20]byte
}

func (e *slippingExecutor) Execute(_ context.Context, _ [20]byte, _ []byte, signer crypto.Capability, ledger trade.TokenMover) error {
	return ledger.TransferWithCapability(signer, e.input.Holder, e.market, e.input.Asset, big.NewInt(999))
}

func TestFailedSwapRollsBackExecutorTransfers(t *testing.T) {
	node := newTestNode(t)
	fundVault(t, node, 5_000)

	if _, err := node.AllocationCreate(ownerAddr, strategyAddr, big.NewInt(2_000)); err != nil {
		t.Fatalf("allocation create: %v", err)
	}
	if err := node.AllocationMarkInitialized(ownerAddr, ownerAddr, strategyAddr); err != nil {
		t.Fatalf("mark initialized: %v", err)
	}
	if err := node.VaultAddAsset(ownerAddr, "ETH"); err != nil {
		t.Fatalf("whitelist: %v", err)
	}
	allocID := allocation.Identity(ownerAddr, strategyAddr)
	if err := node.AllocationOpenAccount(ownerAddr, strategyAddr, "ETH"); err != nil {
		t.Fatalf("open holding: %v", err)
	}
	if err := node.Mint(adminAddr, adminAddr, "USDC", big.NewInt(1)); err != nil {
		t.Fatalf("seed fee account: %v", err)
	}
	if err := node.Mint(adminAddr, marketAddr, "USDC", big.NewInt(1)); err != nil {
		t.Fatalf("seed market: %v", err)
	}

	input := trade.AccountRef{Holder: allocID, Asset: "USDC"}
	node.SetExecutor(&slippingExecutor{input: input, market: marketAddr})

	_, err := node.Swap(context.Background(), authorityAddr, trade.SwapParams{
		Owner:        ownerAddr,
		Strategy:     strategyAddr,
		AmountIn:     big.NewInt(1_000),
		MinAmountOut: big.NewInt(500),
		Executor:     testAddress(0x30),
		Input:        input,
		Output:       trade.AccountRef{Holder: allocID, Asset: "ETH"},
		FeeAccount:   trade.AccountRef{Holder: adminAddr, Asset: "USDC"},
	})
	if !errors.Is(err, trade.ErrSlippageExceeded) {
		t.Fatalf("expected ErrSlippageExceeded, got %v", err)
	}

	// Neither the fee nor the executor debit may survive the abort.
	alloc, holdings, err := node.AllocationGet(ownerAddr, strategyAddr)
	if err != nil {
		t.Fatalf("allocation get: %v", err)
	}
	if alloc.CurrentValue.Int64() != 2_000 {
		t.Fatalf("tracked value mutated: %s", alloc.CurrentValue)
	}
	for _, h := range holdings {
		if h.Asset == "USDC" && h.Balance.Int64() != 2_000 {
			t.Fatalf("allocation balance mutated: %s", h.Balance)
		}
	}
}

// idleExecutor acknowledges execution without touching the ledger.
type idleExecutor struct{}

func (idleExecutor) Execute(context.Context, [20]byte, []byte, crypto.Capability, trade.TokenMover) error {
	return nil
}

func TestLegacySwapGatedByFeatureFlag(t *testing.T) {
	node := newTestNode(t)
	fundVault(t, node, 5_000)
	node.SetLegacyFeeCollector(testAddress(0x06))
	node.SetExecutor(idleExecutor{})

	vaultID := vault.Identity(ownerAddr)
	rawOp := trade.EncodeLegacySwapOp(1_000, 0, []byte("route"))
	executorAddr := testAddress(0x30)
	input := trade.AccountRef{Holder: vaultID, Asset: "USDC"}
	output := trade.AccountRef{Holder: vaultID, Asset: "USDC"}
	feeAccount := trade.AccountRef{Holder: testAddress(0x06), Asset: "USDC"}

	_, err := node.LegacySwap(context.Background(), authorityAddr, ownerAddr, rawOp, executorAddr, input, output, feeAccount)
	if !errors.Is(err, trade.ErrLegacyTradingDisabled) {
		t.Fatalf("expected disabled error, got %v", err)
	}

	if _, err := node.ToggleLegacyTrading(adminAddr); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if err := node.Mint(adminAddr, testAddress(0x06), "USDC", big.NewInt(1)); err != nil {
		t.Fatalf("seed collector: %v", err)
	}
	receipt, err := node.LegacySwap(context.Background(), authorityAddr, ownerAddr, rawOp, executorAddr, input, output, feeAccount)
	if err != nil {
		t.Fatalf("legacy swap: %v", err)
	}
	if receipt.Fee.Int64() != 1 {
		t.Fatalf("legacy fee = %s, want 1", receipt.Fee)
	}
}
