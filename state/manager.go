package state

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"stellavault/crypto"
	"stellavault/native/allocation"
	"stellavault/native/platform"
	"stellavault/native/vault"
	"stellavault/storage"
)

var (
	ErrAccountNotFound    = errors.New("state: token account not found")
	ErrInsufficientFunds  = errors.New("state: insufficient funds")
	ErrInvalidAmount      = errors.New("state: amount must be positive")
	ErrUnauthorizedSigner = errors.New("state: capability does not control source account")
	ErrNonZeroBalance     = errors.New("state: account balance is not zero")
)

// Manager is the persistence layer shared by every engine. It satisfies
// each engine's state interface over a storage.Database, serialising
// records with RLP.
type Manager struct {
	db storage.Database
	// mu serialises atomic batches on the root manager. Overlay views
	// created by Atomic are single-goroutine and skip it.
	mu     sync.Mutex
	isView bool
}

// NewManager wraps a storage backend.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// Atomic runs fn against a copy-on-write view of the database and commits
// the staged writes only when fn succeeds. Any error discards every write
// made inside the batch, which is how engine operations get all-or-nothing
// semantics without per-method rollback code.
func (m *Manager) Atomic(fn func(*Manager) error) error {
	if m.isView {
		return fn(m)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	overlay := storage.NewOverlay(m.db)
	view := &Manager{db: overlay, isView: true}
	if err := fn(view); err != nil {
		return err
	}
	return overlay.Commit()
}

// GlobalConfig loads the platform policy singleton.
func (m *Manager) GlobalConfig() (*platform.GlobalConfig, bool, error) {
	raw, err := m.db.Get(globalConfigKey)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	cfg, err := decodeGlobalConfig(raw)
	if err != nil {
		return nil, false, err
	}
	return cfg, true, nil
}

// PutGlobalConfig persists the platform policy singleton.
func (m *Manager) PutGlobalConfig(cfg *platform.GlobalConfig) error {
	if cfg == nil {
		return fmt.Errorf("state: nil global config")
	}
	raw, err := encodeGlobalConfig(cfg)
	if err != nil {
		return err
	}
	return m.db.Put(globalConfigKey, raw)
}

// Vault loads a vault record by owner.
func (m *Manager) Vault(owner [20]byte) (*vault.Vault, bool, error) {
	raw, err := m.db.Get(vaultKey(owner))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	v, err := decodeVault(raw)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// PutVault persists a vault record.
func (m *Manager) PutVault(v *vault.Vault) error {
	if v == nil {
		return fmt.Errorf("state: nil vault")
	}
	raw, err := encodeVault(v)
	if err != nil {
		return err
	}
	return m.db.Put(vaultKey(v.Owner), raw)
}

// Allocation loads an allocation record by owner and strategy.
func (m *Manager) Allocation(owner, strategy [20]byte) (*allocation.Allocation, bool, error) {
	raw, err := m.db.Get(allocationKey(owner, strategy))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	alloc, err := decodeAllocation(raw)
	if err != nil {
		return nil, false, err
	}
	return alloc, true, nil
}

// PutAllocation persists an allocation record.
func (m *Manager) PutAllocation(alloc *allocation.Allocation) error {
	if alloc == nil {
		return fmt.Errorf("state: nil allocation")
	}
	raw, err := encodeAllocation(alloc)
	if err != nil {
		return err
	}
	return m.db.Put(allocationKey(alloc.Owner, alloc.Strategy), raw)
}

// DeleteAllocation removes an allocation record. Deleting a record that
// does not exist is a no-op.
func (m *Manager) DeleteAllocation(owner, strategy [20]byte) error {
	return m.db.Delete(allocationKey(owner, strategy))
}

// AllocationsByOwner lists every allocation under one vault owner in key
// order.
func (m *Manager) AllocationsByOwner(owner [20]byte) ([]*allocation.Allocation, error) {
	var (
		out     []*allocation.Allocation
		iterErr error
	)
	err := m.db.Iterate(allocationOwnerPrefix(owner), func(_, value []byte) bool {
		alloc, err := decodeAllocation(value)
		if err != nil {
			iterErr = err
			return false
		}
		out = append(out, alloc)
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, iterErr
}

// OpenTokenAccount creates a zero-balance holding account. Opening an
// account that already exists leaves its balance untouched.
func (m *Manager) OpenTokenAccount(holder [20]byte, asset string) error {
	key := tokenAccountKey(holder, asset)
	ok, err := m.db.Has(key)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	raw, err := encodeTokenAccount(big.NewInt(0))
	if err != nil {
		return err
	}
	return m.db.Put(key, raw)
}

// CloseTokenAccount removes a holding account. The balance must be zero.
func (m *Manager) CloseTokenAccount(holder [20]byte, asset string) error {
	key := tokenAccountKey(holder, asset)
	raw, err := m.db.Get(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return ErrAccountNotFound
	}
	if err != nil {
		return err
	}
	balance, err := decodeTokenAccount(raw)
	if err != nil {
		return err
	}
	if balance.Sign() != 0 {
		return ErrNonZeroBalance
	}
	return m.db.Delete(key)
}

// TokenBalance reads one holding balance. The boolean reports whether the
// account exists, which matters to engines that treat a missing account
// differently from a zero balance.
func (m *Manager) TokenBalance(holder [20]byte, asset string) (*big.Int, bool, error) {
	raw, err := m.db.Get(tokenAccountKey(holder, asset))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	balance, err := decodeTokenAccount(raw)
	if err != nil {
		return nil, false, err
	}
	return balance, true, nil
}

// TokenHoldings lists every holding account of one identity in asset
// order.
func (m *Manager) TokenHoldings(holder [20]byte) ([]allocation.Holding, error) {
	prefix := tokenHolderPrefix(holder)
	var (
		out     []allocation.Holding
		iterErr error
	)
	err := m.db.Iterate(prefix, func(key, value []byte) bool {
		balance, err := decodeTokenAccount(value)
		if err != nil {
			iterErr = err
			return false
		}
		out = append(out, allocation.Holding{
			Asset:   string(bytes.TrimPrefix(key, prefix)),
			Balance: balance,
		})
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, iterErr
}

func (m *Manager) setBalance(holder [20]byte, asset string, balance *big.Int) error {
	raw, err := encodeTokenAccount(balance)
	if err != nil {
		return err
	}
	return m.db.Put(tokenAccountKey(holder, asset), raw)
}

func (m *Manager) move(from, to [20]byte, asset string, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	fromBal, ok, err := m.TokenBalance(from, asset)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: source %x/%s", ErrAccountNotFound, from, asset)
	}
	toBal, ok, err := m.TokenBalance(to, asset)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: destination %x/%s", ErrAccountNotFound, to, asset)
	}
	if fromBal.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	if err := m.setBalance(from, asset, new(big.Int).Sub(fromBal, amount)); err != nil {
		return err
	}
	return m.setBalance(to, asset, new(big.Int).Add(toBal, amount))
}

// Transfer moves value between two existing accounts without a custody
// capability. Engines use it when the source is an externally owned
// account whose holder already authorized the operation upstream.
func (m *Manager) Transfer(from, to [20]byte, asset string, amount *big.Int) error {
	return m.move(from, to, asset, amount)
}

// TransferWithCapability moves value out of a derived custody identity.
// The capability must control the source account.
func (m *Manager) TransferWithCapability(cap crypto.Capability, from, to [20]byte, asset string, amount *big.Int) error {
	if !cap.Controls(from) {
		return ErrUnauthorizedSigner
	}
	return m.move(from, to, asset, amount)
}

// Credit mints value into an account, opening it when necessary. It backs
// genesis funding and native-unit deposits; normal operations only ever
// transfer.
func (m *Manager) Credit(to [20]byte, asset string, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if err := m.OpenTokenAccount(to, asset); err != nil {
		return err
	}
	balance, _, err := m.TokenBalance(to, asset)
	if err != nil {
		return err
	}
	if balance == nil {
		balance = big.NewInt(0)
	}
	return m.setBalance(to, asset, new(big.Int).Add(balance, amount))
}
