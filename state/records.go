package state

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"stellavault/native/allocation"
	"stellavault/native/platform"
	"stellavault/native/vault"
)

// Stored records carry a version byte so future schema changes can migrate
// in place. Amounts are serialised as decimal strings: RLP has no signed
// integer encoding, and CumulativeProfit can go negative.

const recordVersion = 1

type storedGlobalConfig struct {
	Version              uint8
	Admin                [20]byte
	PlatformFeeBps       uint16
	PerformanceFeeBps    uint16
	LegacyTradingEnabled bool
}

type storedVault struct {
	Version       uint8
	Owner         [20]byte
	Authority     [20]byte
	Paused        bool
	BaseAsset     string
	AllowedAssets []string
}

type storedAllocation struct {
	Version          uint8
	Owner            [20]byte
	Strategy         [20]byte
	Vault            [20]byte
	CurrentValue     string
	HighWaterMark    string
	CumulativeProfit string
	Paused           bool
	Settled          bool
	Initialized      bool
	Syncing          bool
}

type storedTokenAccount struct {
	Version uint8
	Balance string
}

func encodeAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func decodeAmount(field, s string) (*big.Int, error) {
	if s == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("state: corrupted %s amount %q", field, s)
	}
	return v, nil
}

func encodeGlobalConfig(cfg *platform.GlobalConfig) ([]byte, error) {
	return rlp.EncodeToBytes(&storedGlobalConfig{
		Version:              recordVersion,
		Admin:                cfg.Admin,
		PlatformFeeBps:       cfg.PlatformFeeBps,
		PerformanceFeeBps:    cfg.PerformanceFeeBps,
		LegacyTradingEnabled: cfg.LegacyTradingEnabled,
	})
}

func decodeGlobalConfig(raw []byte) (*platform.GlobalConfig, error) {
	var rec storedGlobalConfig
	if err := rlp.DecodeBytes(raw, &rec); err != nil {
		return nil, fmt.Errorf("state: decode global config: %w", err)
	}
	return &platform.GlobalConfig{
		Admin:                rec.Admin,
		PlatformFeeBps:       rec.PlatformFeeBps,
		PerformanceFeeBps:    rec.PerformanceFeeBps,
		LegacyTradingEnabled: rec.LegacyTradingEnabled,
	}, nil
}

func encodeVault(v *vault.Vault) ([]byte, error) {
	return rlp.EncodeToBytes(&storedVault{
		Version:       recordVersion,
		Owner:         v.Owner,
		Authority:     v.Authority,
		Paused:        v.Paused,
		BaseAsset:     v.BaseAsset,
		AllowedAssets: append([]string(nil), v.AllowedAssets...),
	})
}

func decodeVault(raw []byte) (*vault.Vault, error) {
	var rec storedVault
	if err := rlp.DecodeBytes(raw, &rec); err != nil {
		return nil, fmt.Errorf("state: decode vault: %w", err)
	}
	return &vault.Vault{
		Owner:         rec.Owner,
		Authority:     rec.Authority,
		Paused:        rec.Paused,
		BaseAsset:     rec.BaseAsset,
		AllowedAssets: rec.AllowedAssets,
	}, nil
}

func encodeAllocation(alloc *allocation.Allocation) ([]byte, error) {
	return rlp.EncodeToBytes(&storedAllocation{
		Version:          recordVersion,
		Owner:            alloc.Owner,
		Strategy:         alloc.Strategy,
		Vault:            alloc.Vault,
		CurrentValue:     encodeAmount(alloc.CurrentValue),
		HighWaterMark:    encodeAmount(alloc.HighWaterMark),
		CumulativeProfit: encodeAmount(alloc.CumulativeProfit),
		Paused:           alloc.Paused,
		Settled:          alloc.Settled,
		Initialized:      alloc.Initialized,
		Syncing:          alloc.Syncing,
	})
}

func decodeAllocation(raw []byte) (*allocation.Allocation, error) {
	var rec storedAllocation
	if err := rlp.DecodeBytes(raw, &rec); err != nil {
		return nil, fmt.Errorf("state: decode allocation: %w", err)
	}
	currentValue, err := decodeAmount("allocation value", rec.CurrentValue)
	if err != nil {
		return nil, err
	}
	highWaterMark, err := decodeAmount("allocation high-water mark", rec.HighWaterMark)
	if err != nil {
		return nil, err
	}
	cumulativeProfit, err := decodeAmount("allocation profit", rec.CumulativeProfit)
	if err != nil {
		return nil, err
	}
	return &allocation.Allocation{
		Owner:            rec.Owner,
		Strategy:         rec.Strategy,
		Vault:            rec.Vault,
		CurrentValue:     currentValue,
		HighWaterMark:    highWaterMark,
		CumulativeProfit: cumulativeProfit,
		Paused:           rec.Paused,
		Settled:          rec.Settled,
		Initialized:      rec.Initialized,
		Syncing:          rec.Syncing,
	}, nil
}

func encodeTokenAccount(balance *big.Int) ([]byte, error) {
	return rlp.EncodeToBytes(&storedTokenAccount{
		Version: recordVersion,
		Balance: encodeAmount(balance),
	})
}

func decodeTokenAccount(raw []byte) (*big.Int, error) {
	var rec storedTokenAccount
	if err := rlp.DecodeBytes(raw, &rec); err != nil {
		return nil, fmt.Errorf("state: decode token account: %w", err)
	}
	return decodeAmount("token balance", rec.Balance)
}
