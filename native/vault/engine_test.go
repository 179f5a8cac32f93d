package vault

import (
	"errors"
	"fmt"
	"math/big"
	"testing"

	"stellavault/crypto"
)

type mockState struct {
	vaults   map[[20]byte]*Vault
	balances map[string]*big.Int
}

func newMockState() *mockState {
	return &mockState{
		vaults:   make(map[[20]byte]*Vault),
		balances: make(map[string]*big.Int),
	}
}

func accountKey(holder [20]byte, asset string) string {
	return fmt.Sprintf("%x/%s", holder, asset)
}

func (m *mockState) Vault(owner [20]byte) (*Vault, bool, error) {
	v, ok := m.vaults[owner]
	if !ok {
		return nil, false, nil
	}
	return v.Clone(), true, nil
}

func (m *mockState) PutVault(v *Vault) error {
	m.vaults[v.Owner] = v.Clone()
	return nil
}

func (m *mockState) OpenTokenAccount(holder [20]byte, asset string) error {
	key := accountKey(holder, asset)
	if _, ok := m.balances[key]; !ok {
		m.balances[key] = big.NewInt(0)
	}
	return nil
}

func (m *mockState) CloseTokenAccount(holder [20]byte, asset string) error {
	key := accountKey(holder, asset)
	if balance, ok := m.balances[key]; ok && balance.Sign() != 0 {
		return fmt.Errorf("mock: closing non-zero account")
	}
	delete(m.balances, key)
	return nil
}

func (m *mockState) TokenBalance(holder [20]byte, asset string) (*big.Int, bool, error) {
	balance, ok := m.balances[accountKey(holder, asset)]
	if !ok {
		return nil, false, nil
	}
	return new(big.Int).Set(balance), true, nil
}

func (m *mockState) Transfer(from, to [20]byte, asset string, amount *big.Int) error {
	fromKey := accountKey(from, asset)
	toKey := accountKey(to, asset)
	fromBal, ok := m.balances[fromKey]
	if !ok {
		return fmt.Errorf("mock: source account missing")
	}
	if _, ok := m.balances[toKey]; !ok {
		return fmt.Errorf("mock: destination account missing")
	}
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("mock: insufficient funds")
	}
	m.balances[fromKey] = new(big.Int).Sub(fromBal, amount)
	m.balances[toKey] = new(big.Int).Add(m.balances[toKey], amount)
	return nil
}

func (m *mockState) TransferWithCapability(cap crypto.Capability, from, to [20]byte, asset string, amount *big.Int) error {
	if !cap.Controls(from) {
		return fmt.Errorf("mock: capability does not control source")
	}
	return m.Transfer(from, to, asset, amount)
}

func (m *mockState) credit(holder [20]byte, asset string, amount int64) {
	key := accountKey(holder, asset)
	if _, ok := m.balances[key]; !ok {
		m.balances[key] = big.NewInt(0)
	}
	m.balances[key] = new(big.Int).Add(m.balances[key], big.NewInt(amount))
}

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func newTestEngine(state *mockState) *Engine {
	e := NewEngine()
	e.SetState(state)
	return e
}

func TestInitializeOncePerOwner(t *testing.T) {
	state := newMockState()
	e := newTestEngine(state)
	owner := newTestAddress(0x01)
	authority := newTestAddress(0x02)

	v, err := e.Initialize(owner, authority, "usdc")
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if v.BaseAsset != "USDC" {
		t.Fatalf("base asset not normalized: %q", v.BaseAsset)
	}
	if _, ok, _ := state.TokenBalance(Identity(owner), "USDC"); !ok {
		t.Fatal("custody base account not opened")
	}
	if _, err := e.Initialize(owner, authority, "USDC"); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestWhitelistIdempotence(t *testing.T) {
	state := newMockState()
	e := newTestEngine(state)
	owner := newTestAddress(0x01)
	if _, err := e.Initialize(owner, newTestAddress(0x02), "USDC"); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	if err := e.AddAllowedAsset(owner, "SOL"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := e.AddAllowedAsset(owner, "sol"); err != nil {
		t.Fatalf("add twice: %v", err)
	}
	v, _, _ := state.Vault(owner)
	if len(v.AllowedAssets) != 1 || v.AllowedAssets[0] != "SOL" {
		t.Fatalf("expected whitelist [SOL], got %v", v.AllowedAssets)
	}

	if err := e.RemoveAllowedAsset(owner, "ABSENT"); err != nil {
		t.Fatalf("remove absent should be a no-op, got %v", err)
	}
	if err := e.RemoveAllowedAsset(owner, "SOL"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	v, _, _ = state.Vault(owner)
	if len(v.AllowedAssets) != 0 {
		t.Fatalf("expected empty whitelist, got %v", v.AllowedAssets)
	}
}

func TestAddBaseAssetIsNoOp(t *testing.T) {
	state := newMockState()
	e := newTestEngine(state)
	owner := newTestAddress(0x01)
	if _, err := e.Initialize(owner, newTestAddress(0x02), "USDC"); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := e.AddAllowedAsset(owner, "USDC"); err != nil {
		t.Fatalf("add base: %v", err)
	}
	v, _, _ := state.Vault(owner)
	if len(v.AllowedAssets) != 0 {
		t.Fatalf("base asset must not be whitelisted, got %v", v.AllowedAssets)
	}
}

func TestDepositWithdrawRoundTrip(t *testing.T) {
	state := newMockState()
	e := newTestEngine(state)
	owner := newTestAddress(0x01)
	if _, err := e.Initialize(owner, newTestAddress(0x02), "USDC"); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	state.credit(owner, "USDC", 1000)

	if err := e.Deposit(owner, "USDC", big.NewInt(600)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	custodyBal, _, _ := state.TokenBalance(Identity(owner), "USDC")
	if custodyBal.Int64() != 600 {
		t.Fatalf("expected custody 600, got %s", custodyBal)
	}

	if err := e.Withdraw(owner, "USDC", big.NewInt(250)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	ownerBal, _, _ := state.TokenBalance(owner, "USDC")
	if ownerBal.Int64() != 650 {
		t.Fatalf("expected owner 650, got %s", ownerBal)
	}
}

func TestDepositRejectsUnlistedAsset(t *testing.T) {
	state := newMockState()
	e := newTestEngine(state)
	owner := newTestAddress(0x01)
	if _, err := e.Initialize(owner, newTestAddress(0x02), "USDC"); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	state.credit(owner, "SOL", 100)
	if err := e.Deposit(owner, "SOL", big.NewInt(10)); !errors.Is(err, ErrTokenNotAllowed) {
		t.Fatalf("expected ErrTokenNotAllowed, got %v", err)
	}
}

func TestNativeAssetAlwaysAllowed(t *testing.T) {
	state := newMockState()
	e := newTestEngine(state)
	owner := newTestAddress(0x01)
	if _, err := e.Initialize(owner, newTestAddress(0x02), "USDC"); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	state.credit(owner, NativeAsset, 100)
	if err := e.Deposit(owner, NativeAsset, big.NewInt(40)); err != nil {
		t.Fatalf("native deposit: %v", err)
	}
	if err := e.Withdraw(owner, NativeAsset, big.NewInt(40)); err != nil {
		t.Fatalf("native withdraw: %v", err)
	}
}

func TestCloseAccountRequiresZeroBalance(t *testing.T) {
	state := newMockState()
	e := newTestEngine(state)
	owner := newTestAddress(0x01)
	if _, err := e.Initialize(owner, newTestAddress(0x02), "USDC"); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	state.credit(owner, "USDC", 100)
	if err := e.Deposit(owner, "USDC", big.NewInt(100)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := e.CloseAccount(owner, "USDC"); !errors.Is(err, ErrNonZeroBalance) {
		t.Fatalf("expected ErrNonZeroBalance, got %v", err)
	}
	if err := e.Withdraw(owner, "USDC", big.NewInt(100)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if err := e.CloseAccount(owner, "USDC"); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestTogglePause(t *testing.T) {
	state := newMockState()
	e := newTestEngine(state)
	owner := newTestAddress(0x01)
	if _, err := e.Initialize(owner, newTestAddress(0x02), "USDC"); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	paused, err := e.TogglePause(owner)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !paused {
		t.Fatal("expected paused after first toggle")
	}
	paused, err = e.TogglePause(owner)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if paused {
		t.Fatal("expected unpaused after second toggle")
	}
}

func TestUnknownOwner(t *testing.T) {
	e := newTestEngine(newMockState())
	if _, err := e.TogglePause(newTestAddress(0x09)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
