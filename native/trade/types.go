package trade

import (
	"context"
	"fmt"
	"math/big"

	"stellavault/crypto"
)

// MockExecutor is the well-known no-op executor identity for allocation
// swaps. Targeting it skips external execution without moving balances:
// ownership pins both account refs to the allocation's custody identity,
// so there is no second same-asset account to simulate delivery into.
// Callers pair it with a zero minAmountOut to exercise control flow only;
// real deliveries need an ExecutorClient. The legacy path ignores the
// marker and always invokes the executor.
var MockExecutor = crypto.DeriveIdentity("executor/mock-v1")

// AccountRef names one token holding account by holder identity and asset
// type. The engine validates ownership and asset topology against these
// references before any value moves.
type AccountRef struct {
	Holder [20]byte
	Asset  string
}

// TokenMover is the slice of ledger the executor is allowed to touch while
// performing the exchange. It operates on the same atomic overlay as the
// engine, so a failed swap discards everything the executor did.
type TokenMover interface {
	TokenBalance(holder [20]byte, asset string) (*big.Int, bool, error)
	Transfer(from, to [20]byte, asset string, amount *big.Int) error
	TransferWithCapability(cap crypto.Capability, from, to [20]byte, asset string, amount *big.Int) error
}

// ExecutorClient performs the actual exchange. The engine never inspects
// the payload; it only validates the balance deltas the execution left
// behind. Implementations sign ledger movements with the provided
// capability when spending from the custody identity.
type ExecutorClient interface {
	Execute(ctx context.Context, target [20]byte, payload []byte, signer crypto.Capability, ledger TokenMover) error
}

// NoExternalExecution refuses every executor target. Nodes run with it
// until an exchange adapter is wired, which still permits mock-marker
// swaps since those never reach the client.
type NoExternalExecution struct{}

// Execute implements the ExecutorClient interface.
func (NoExternalExecution) Execute(_ context.Context, target [20]byte, _ []byte, _ crypto.Capability, _ TokenMover) error {
	return fmt.Errorf("trade: no executor adapter configured for %x", target)
}

// SwapParams are the declared inputs for an allocation swap. AmountIn is
// the total spend budget, fee inclusive; MinAmountOut is the slippage
// floor for the output account.
type SwapParams struct {
	Owner        [20]byte
	Strategy     [20]byte
	AmountIn     *big.Int
	MinAmountOut *big.Int
	Payload      []byte
	Executor     [20]byte
	Input        AccountRef
	Output       AccountRef
	FeeAccount   AccountRef
}

// Receipt summarises a completed swap for the caller and the event stream.
type Receipt struct {
	Fee            *big.Int
	SwapAmount     *big.Int
	AmountSpent    *big.Int
	AmountReceived *big.Int
	// ValueUpdated reports whether the allocation's tracked equity was
	// replaced because the swap collapsed back into the base asset.
	ValueUpdated bool
}
