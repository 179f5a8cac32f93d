package allocation

import (
	"math/big"

	"stellavault/crypto"
)

// IdentityNamespace seeds the derived identity holding an allocation's
// funds. Distinct from the vault namespace so vault and allocation custody
// can never alias.
const IdentityNamespace = "allocation/v1"

// Allocation is a per-strategy slice of vault value with its own lifecycle.
//
// Lifecycle:
//  1. Created by the owner with initial funding from the vault.
//  2. Backend starts the sync phase (Syncing).
//  3. Backend performs portfolio sync swaps.
//  4. Backend finishes sync (Initialized); automated trading enabled.
//  5. Owner pauses when ready to exit.
//  6. Backend settles holdings back into the base asset.
//  7. Owner withdraws; the allocation is destroyed.
//
// Authority model: the owner creates, pauses, resumes, closes and
// withdraws; the vault's delegated authority runs sync transitions, swaps
// and settlement.
type Allocation struct {
	Owner    [20]byte
	Strategy [20]byte
	// Vault is the custody identity of the owning vault. It must always
	// resolve back to a vault whose owner equals Owner.
	Vault [20]byte
	// CurrentValue is the tracked equity in base-asset units.
	CurrentValue *big.Int
	// HighWaterMark is reserved for performance-fee accounting. Persisted
	// but not yet consumed by the engine.
	HighWaterMark *big.Int
	// CumulativeProfit is the net realized PnL, used for reporting. Can be
	// negative.
	CumulativeProfit *big.Int
	Paused           bool
	Settled          bool
	Initialized      bool
	Syncing          bool
}

// Clone returns a deep copy of the allocation record.
func (a *Allocation) Clone() *Allocation {
	if a == nil {
		return nil
	}
	clone := *a
	clone.CurrentValue = cloneBigInt(a.CurrentValue)
	clone.HighWaterMark = cloneBigInt(a.HighWaterMark)
	clone.CumulativeProfit = cloneBigInt(a.CumulativeProfit)
	return &clone
}

// SwapEligible reports whether the allocation is in a state that permits
// trading: not paused, and either initialized or still syncing. The swap
// path re-derives these checks individually to surface distinct errors;
// this helper is the single-answer form for callers that only need the
// verdict.
func (a *Allocation) SwapEligible() bool {
	if a == nil {
		return false
	}
	return !a.Paused && (a.Initialized || a.Syncing)
}

// Identity returns the derived identity holding the allocation's funds.
func Identity(owner, strategy [20]byte) [20]byte {
	return crypto.DeriveIdentity(IdentityNamespace, owner[:], strategy[:])
}

// Signer returns the capability authorising transfers out of the
// allocation's derived identity.
func Signer(owner, strategy [20]byte) crypto.Capability {
	return crypto.NewCapability(IdentityNamespace, owner[:], strategy[:])
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
