package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"stellavault/core/events"
	coretypes "stellavault/core/types"
	"stellavault/native/allocation"
	"stellavault/native/platform"
	"stellavault/native/trade"
	"stellavault/native/vault"
	"stellavault/observability"
	"stellavault/state"
)

// ErrNotAdmin is returned when an admin-only node operation is attempted
// by another caller.
var ErrNotAdmin = errors.New("core: caller is not the platform admin")

// Node assembles the persistence layer and the engines into the single
// facade the RPC server talks to. Every operation runs inside one atomic
// state batch; engines are cheap and constructed per batch so no state
// handle outlives the overlay it was bound to.
type Node struct {
	manager  *state.Manager
	recorder *events.Recorder
	emitter  events.Emitter
	executor trade.ExecutorClient

	admin           [20]byte
	legacyCollector [20]byte

	logger *slog.Logger
}

// NewNode wires a node over the given state manager. Events are recorded
// in memory for the RPC activity feed and counted in metrics.
func NewNode(manager *state.Manager, logger *slog.Logger) *Node {
	if logger == nil {
		logger = slog.Default()
	}
	recorder := &events.Recorder{}
	return &Node{
		manager:  manager,
		recorder: recorder,
		emitter:  observability.NewMeteredEmitter(recorder),
		executor: trade.NoExternalExecution{},
		logger:   logger,
	}
}

// SetExecutor replaces the external exchange executor. The default refuses
// every non-mock target.
func (n *Node) SetExecutor(client trade.ExecutorClient) {
	if client == nil {
		client = trade.NoExternalExecution{}
	}
	n.executor = client
}

// SetLegacyFeeCollector configures the fee destination for the deprecated
// vault-level swap path.
func (n *Node) SetLegacyFeeCollector(addr [20]byte) { n.legacyCollector = addr }

// Bootstrap initialises the on-ledger platform config on first boot. A
// node joining an existing data directory adopts the stored admin and only
// verifies it can still be loaded.
func (n *Node) Bootstrap(admin [20]byte) error {
	return n.manager.Atomic(func(s *state.Manager) error {
		cfg, ok, err := s.GlobalConfig()
		if err != nil {
			return err
		}
		if ok {
			n.admin = cfg.Admin
			return nil
		}
		eng := platform.NewEngine()
		eng.SetState(s)
		eng.SetEmitter(n.emitter)
		created, err := eng.Initialize(admin)
		if err != nil {
			return err
		}
		n.admin = created.Admin
		n.logger.Info("initialised platform config",
			"platformFeeBps", created.PlatformFeeBps,
			"performanceFeeBps", created.PerformanceFeeBps)
		return nil
	})
}

// Events returns the recorded activity feed, newest last.
func (n *Node) Events() []*coretypes.Event {
	return n.recorder.Events()
}

func (n *Node) platformEngine(s *state.Manager) *platform.Engine {
	eng := platform.NewEngine()
	eng.SetState(s)
	eng.SetEmitter(n.emitter)
	return eng
}

func (n *Node) vaultEngine(s *state.Manager) *vault.Engine {
	eng := vault.NewEngine()
	eng.SetState(s)
	eng.SetEmitter(n.emitter)
	return eng
}

func (n *Node) allocationEngine(s *state.Manager) *allocation.Engine {
	eng := allocation.NewEngine()
	eng.SetState(s)
	eng.SetEmitter(n.emitter)
	return eng
}

func (n *Node) tradeEngine(s *state.Manager) *trade.Engine {
	eng := trade.NewEngine()
	eng.SetState(s)
	eng.SetExecutor(n.executor)
	eng.SetLegacyFeeCollector(n.legacyCollector)
	eng.SetEmitter(n.emitter)
	return eng
}

// PlatformConfig reads the current on-ledger policy.
func (n *Node) PlatformConfig() (*platform.GlobalConfig, error) {
	var out *platform.GlobalConfig
	err := n.manager.Atomic(func(s *state.Manager) error {
		cfg, err := n.platformEngine(s).Config()
		if err != nil {
			return err
		}
		out = cfg
		return nil
	})
	return out, err
}

// ToggleLegacyTrading flips the legacy swap feature flag. Admin only.
func (n *Node) ToggleLegacyTrading(caller [20]byte) (bool, error) {
	var enabled bool
	err := n.manager.Atomic(func(s *state.Manager) error {
		flag, err := n.platformEngine(s).ToggleLegacyTrading(caller)
		if err != nil {
			return err
		}
		enabled = flag
		return nil
	})
	return enabled, err
}

// Mint credits freshly issued units to an account. Admin only; normal
// value movement happens through transfers.
func (n *Node) Mint(caller, to [20]byte, asset string, amount *big.Int) error {
	return n.manager.Atomic(func(s *state.Manager) error {
		cfg, ok, err := s.GlobalConfig()
		if err != nil {
			return err
		}
		if !ok {
			return platform.ErrNotInitialized
		}
		if caller != cfg.Admin {
			return ErrNotAdmin
		}
		normalized, err := vault.NormalizeAsset(asset)
		if err != nil {
			return err
		}
		return s.Credit(to, normalized, amount)
	})
}

// VaultCreate provisions a vault with its derived custody identity.
func (n *Node) VaultCreate(owner, authority [20]byte, baseAsset string) (*vault.Vault, error) {
	var out *vault.Vault
	err := n.manager.Atomic(func(s *state.Manager) error {
		v, err := n.vaultEngine(s).Initialize(owner, authority, baseAsset)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err == nil {
		n.logger.Info("vault created", "owner", fmt.Sprintf("%x", out.Owner), "baseAsset", out.BaseAsset)
	}
	return out, err
}

// VaultGet loads a vault record.
func (n *Node) VaultGet(owner [20]byte) (*vault.Vault, bool, error) {
	var (
		out   *vault.Vault
		found bool
	)
	err := n.manager.Atomic(func(s *state.Manager) error {
		v, ok, err := s.Vault(owner)
		if err != nil {
			return err
		}
		out, found = v, ok
		return nil
	})
	return out, found, err
}

// VaultHoldings lists the custody balances of a vault.
func (n *Node) VaultHoldings(owner [20]byte) ([]allocation.Holding, error) {
	var out []allocation.Holding
	err := n.manager.Atomic(func(s *state.Manager) error {
		holdings, err := s.TokenHoldings(vault.Identity(owner))
		if err != nil {
			return err
		}
		out = holdings
		return nil
	})
	return out, err
}

// VaultTogglePause flips the vault-wide pause switch.
func (n *Node) VaultTogglePause(owner [20]byte) (bool, error) {
	var paused bool
	err := n.manager.Atomic(func(s *state.Manager) error {
		flag, err := n.vaultEngine(s).TogglePause(owner)
		if err != nil {
			return err
		}
		paused = flag
		return nil
	})
	return paused, err
}

// VaultAddAsset whitelists an asset for custody and trading.
func (n *Node) VaultAddAsset(owner [20]byte, asset string) error {
	return n.manager.Atomic(func(s *state.Manager) error {
		return n.vaultEngine(s).AddAllowedAsset(owner, asset)
	})
}

// VaultRemoveAsset removes an asset from the whitelist.
func (n *Node) VaultRemoveAsset(owner [20]byte, asset string) error {
	return n.manager.Atomic(func(s *state.Manager) error {
		return n.vaultEngine(s).RemoveAllowedAsset(owner, asset)
	})
}

// VaultOpenAccount opens a custody holding account for a whitelisted
// asset.
func (n *Node) VaultOpenAccount(owner [20]byte, asset string) error {
	return n.manager.Atomic(func(s *state.Manager) error {
		return n.vaultEngine(s).OpenAccount(owner, asset)
	})
}

// VaultCloseAccount closes an empty custody holding account.
func (n *Node) VaultCloseAccount(owner [20]byte, asset string) error {
	return n.manager.Atomic(func(s *state.Manager) error {
		return n.vaultEngine(s).CloseAccount(owner, asset)
	})
}

// VaultDeposit moves owner funds into vault custody.
func (n *Node) VaultDeposit(owner [20]byte, asset string, amount *big.Int) error {
	return n.manager.Atomic(func(s *state.Manager) error {
		return n.vaultEngine(s).Deposit(owner, asset, amount)
	})
}

// VaultWithdraw moves custody funds back to the owner.
func (n *Node) VaultWithdraw(owner [20]byte, asset string, amount *big.Int) error {
	return n.manager.Atomic(func(s *state.Manager) error {
		return n.vaultEngine(s).Withdraw(owner, asset, amount)
	})
}

// AllocationCreate carves a funded sub-allocation out of vault custody.
func (n *Node) AllocationCreate(owner, strategy [20]byte, amount *big.Int) (*allocation.Allocation, error) {
	var out *allocation.Allocation
	err := n.manager.Atomic(func(s *state.Manager) error {
		alloc, err := n.allocationEngine(s).Create(owner, strategy, amount)
		if err != nil {
			return err
		}
		out = alloc
		return nil
	})
	return out, err
}

// AllocationGet loads an allocation with its holdings.
func (n *Node) AllocationGet(owner, strategy [20]byte) (*allocation.Allocation, []allocation.Holding, error) {
	var (
		out      *allocation.Allocation
		holdings []allocation.Holding
	)
	err := n.manager.Atomic(func(s *state.Manager) error {
		alloc, err := n.allocationEngine(s).Get(owner, strategy)
		if err != nil {
			return err
		}
		h, err := s.TokenHoldings(allocation.Identity(owner, strategy))
		if err != nil {
			return err
		}
		out, holdings = alloc, h
		return nil
	})
	return out, holdings, err
}

// AllocationList lists every allocation under a vault.
func (n *Node) AllocationList(owner [20]byte) ([]*allocation.Allocation, error) {
	var out []*allocation.Allocation
	err := n.manager.Atomic(func(s *state.Manager) error {
		allocs, err := s.AllocationsByOwner(owner)
		if err != nil {
			return err
		}
		out = allocs
		return nil
	})
	return out, err
}

// AllocationPause halts trading on one allocation.
func (n *Node) AllocationPause(owner, strategy [20]byte) error {
	return n.manager.Atomic(func(s *state.Manager) error {
		return n.allocationEngine(s).Pause(owner, strategy)
	})
}

// AllocationResume lifts an allocation pause.
func (n *Node) AllocationResume(owner, strategy [20]byte) error {
	return n.manager.Atomic(func(s *state.Manager) error {
		return n.allocationEngine(s).Resume(owner, strategy)
	})
}

// AllocationStartSync begins authority-driven position onboarding.
func (n *Node) AllocationStartSync(caller, owner, strategy [20]byte) error {
	return n.manager.Atomic(func(s *state.Manager) error {
		return n.allocationEngine(s).StartSync(caller, owner, strategy)
	})
}

// AllocationFinishSync completes position onboarding.
func (n *Node) AllocationFinishSync(caller, owner, strategy [20]byte) error {
	return n.manager.Atomic(func(s *state.Manager) error {
		return n.allocationEngine(s).FinishSync(caller, owner, strategy)
	})
}

// AllocationMarkInitialized flips the one-way initialization gate.
func (n *Node) AllocationMarkInitialized(caller, owner, strategy [20]byte) error {
	return n.manager.Atomic(func(s *state.Manager) error {
		return n.allocationEngine(s).MarkInitialized(caller, owner, strategy)
	})
}

// AllocationOpenAccount opens a holding account under the allocation's
// custody identity.
func (n *Node) AllocationOpenAccount(owner, strategy [20]byte, asset string) error {
	return n.manager.Atomic(func(s *state.Manager) error {
		return n.allocationEngine(s).OpenHoldingAccount(owner, strategy, asset)
	})
}

// AllocationCloseAccount closes an empty allocation holding account.
func (n *Node) AllocationCloseAccount(owner, strategy [20]byte, asset string) error {
	return n.manager.Atomic(func(s *state.Manager) error {
		return n.allocationEngine(s).CloseHoldingAccount(owner, strategy, asset)
	})
}

// AllocationSettle verifies a paused allocation has collapsed back into
// the base asset and marks it withdrawable.
func (n *Node) AllocationSettle(caller, owner, strategy [20]byte) error {
	return n.manager.Atomic(func(s *state.Manager) error {
		return n.allocationEngine(s).Settle(caller, owner, strategy)
	})
}

// AllocationWithdraw returns a settled allocation's funds to the owner and
// destroys the allocation.
func (n *Node) AllocationWithdraw(owner, strategy [20]byte) (*big.Int, error) {
	var out *big.Int
	err := n.manager.Atomic(func(s *state.Manager) error {
		amount, err := n.allocationEngine(s).Withdraw(owner, strategy)
		if err != nil {
			return err
		}
		out = amount
		return nil
	})
	return out, err
}

// AllocationClose tears down a paused allocation, refunding base holdings
// to vault custody.
func (n *Node) AllocationClose(owner, strategy [20]byte) error {
	return n.manager.Atomic(func(s *state.Manager) error {
		return n.allocationEngine(s).Close(owner, strategy)
	})
}

// Swap executes a delegated allocation swap inside one atomic batch.
func (n *Node) Swap(ctx context.Context, caller [20]byte, params trade.SwapParams) (*trade.Receipt, error) {
	var out *trade.Receipt
	err := n.manager.Atomic(func(s *state.Manager) error {
		receipt, err := n.tradeEngine(s).ExecuteSwap(ctx, caller, params)
		if err != nil {
			return err
		}
		out = receipt
		return nil
	})
	observeSwap(params.Input.Asset, params.Output.Asset, out, err)
	return out, err
}

// LegacySwap executes the deprecated vault-level swap. The raw operation
// bytes carry the declared amounts and the executor payload.
func (n *Node) LegacySwap(ctx context.Context, caller, owner [20]byte, rawOp []byte, executor [20]byte, input, output, feeAccount trade.AccountRef) (*trade.Receipt, error) {
	var out *trade.Receipt
	err := n.manager.Atomic(func(s *state.Manager) error {
		receipt, err := n.tradeEngine(s).ExecuteLegacySwap(ctx, caller, owner, singleOpBatch{op: rawOp}, executor, input, output, feeAccount)
		if err != nil {
			return err
		}
		out = receipt
		return nil
	})
	observeSwap(input.Asset, output.Asset, out, err)
	return out, err
}

// singleOpBatch adapts one raw operation to the batch interface the legacy
// path introspects.
type singleOpBatch struct {
	op []byte
}

func (b singleOpBatch) CurrentOperation() ([]byte, error) { return b.op, nil }

func (b singleOpBatch) Operations() [][]byte { return [][]byte{b.op} }

func observeSwap(assetIn, assetOut string, receipt *trade.Receipt, err error) {
	if err == nil {
		var fee float64
		if receipt != nil && receipt.Fee != nil {
			fee, _ = new(big.Float).SetInt(receipt.Fee).Float64()
		}
		observability.Swaps().ObserveExecuted(assetIn, assetOut, fee)
		return
	}
	switch {
	case errors.Is(err, trade.ErrFeeEvasion):
		observability.Swaps().ObserveRejection("fee_evasion")
	case errors.Is(err, trade.ErrSlippageExceeded):
		observability.Swaps().ObserveRejection("slippage")
	case errors.Is(err, trade.ErrInvalidAccountOwner):
		observability.Swaps().ObserveRejection("ownership")
	case errors.Is(err, trade.ErrInvalidSwapTopology):
		observability.Swaps().ObserveRejection("topology")
	case errors.Is(err, trade.ErrInvalidFeeDestination):
		observability.Swaps().ObserveRejection("fee_destination")
	case errors.Is(err, trade.ErrUnauthorized):
		observability.Swaps().ObserveRejection("unauthorized")
	default:
		observability.Swaps().ObserveRejection("other")
	}
}
