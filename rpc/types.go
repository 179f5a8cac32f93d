package rpc

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"stellavault/crypto"
	"stellavault/native/allocation"
	"stellavault/native/vault"
)

type vaultJSON struct {
	Owner         string   `json:"owner"`
	Authority     string   `json:"authority"`
	Custody       string   `json:"custody"`
	Paused        bool     `json:"paused"`
	BaseAsset     string   `json:"baseAsset"`
	AllowedAssets []string `json:"allowedAssets"`
}

type allocationJSON struct {
	Owner            string        `json:"owner"`
	Strategy         string        `json:"strategy"`
	Custody          string        `json:"custody"`
	CurrentValue     string        `json:"currentValue"`
	HighWaterMark    string        `json:"highWaterMark"`
	CumulativeProfit string        `json:"cumulativeProfit"`
	Paused           bool          `json:"paused"`
	Settled          bool          `json:"settled"`
	Initialized      bool          `json:"initialized"`
	Syncing          bool          `json:"syncing"`
	Holdings         []holdingJSON `json:"holdings,omitempty"`
}

type holdingJSON struct {
	Asset   string `json:"asset"`
	Balance string `json:"balance"`
}

type receiptJSON struct {
	Fee            string `json:"fee"`
	SwapAmount     string `json:"swapAmount"`
	AmountSpent    string `json:"amountSpent"`
	AmountReceived string `json:"amountReceived"`
	ValueUpdated   bool   `json:"valueUpdated"`
}

func formatAddress(addr [20]byte) string {
	return crypto.NewAddress(crypto.VaultPrefix, addr[:]).String()
}

func formatVault(v *vault.Vault) vaultJSON {
	return vaultJSON{
		Owner:         formatAddress(v.Owner),
		Authority:     formatAddress(v.Authority),
		Custody:       formatAddress(vault.Identity(v.Owner)),
		Paused:        v.Paused,
		BaseAsset:     v.BaseAsset,
		AllowedAssets: append([]string{}, v.AllowedAssets...),
	}
}

func formatAllocation(alloc *allocation.Allocation, holdings []allocation.Holding) allocationJSON {
	out := allocationJSON{
		Owner:            formatAddress(alloc.Owner),
		Strategy:         formatAddress(alloc.Strategy),
		Custody:          formatAddress(allocation.Identity(alloc.Owner, alloc.Strategy)),
		CurrentValue:     alloc.CurrentValue.String(),
		HighWaterMark:    alloc.HighWaterMark.String(),
		CumulativeProfit: alloc.CumulativeProfit.String(),
		Paused:           alloc.Paused,
		Settled:          alloc.Settled,
		Initialized:      alloc.Initialized,
		Syncing:          alloc.Syncing,
	}
	for _, h := range holdings {
		out.Holdings = append(out.Holdings, holdingJSON{Asset: h.Asset, Balance: h.Balance.String()})
	}
	return out
}

func parseVaultAddress(value string) ([20]byte, error) {
	var out [20]byte
	decoded, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return out, err
	}
	if decoded.Prefix() != crypto.VaultPrefix {
		return out, fmt.Errorf("address must use the %s prefix", crypto.VaultPrefix)
	}
	copy(out[:], decoded.Bytes())
	return out, nil
}

func parsePositiveBigInt(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount is required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("amount must be a base-10 integer")
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	return amount, nil
}

func parseNonNegativeBigInt(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("amount must be a base-10 integer")
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	return amount, nil
}

// decodeParams unmarshals the single parameter object every method
// accepts.
func decodeParams(w http.ResponseWriter, req *RPCRequest, out interface{}) bool {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", "exactly one parameter object expected")
		return false
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return false
	}
	return true
}

func invalidParams(w http.ResponseWriter, req *RPCRequest, err error) bool {
	writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
	return false
}
