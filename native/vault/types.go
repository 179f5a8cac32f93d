package vault

import (
	"fmt"
	"strings"

	"stellavault/crypto"
)

// NativeAsset is the platform's fee-bearing unit. It is implicitly
// transferable through every vault without appearing on the whitelist.
const NativeAsset = "SVT"

// IdentityNamespace seeds the derived custody identity holding a vault's
// funds. Bumping it is a state migration.
const IdentityNamespace = "vault/v1"

// Vault is the per-owner custody root. The owner retains full withdrawal
// rights; the delegated authority can initiate swaps but never withdraw.
type Vault struct {
	Owner     [20]byte
	Authority [20]byte
	Paused    bool
	BaseAsset string
	// AllowedAssets is the ordered whitelist of additional asset types the
	// vault may hold. The base asset is always allowed and never listed.
	AllowedAssets []string
}

// Clone returns a deep copy of the vault record.
func (v *Vault) Clone() *Vault {
	if v == nil {
		return nil
	}
	clone := *v
	clone.AllowedAssets = append([]string(nil), v.AllowedAssets...)
	return &clone
}

// IsAllowed reports whether the asset may be held by this vault: the base
// asset, the native unit, or anything whitelisted.
func (v *Vault) IsAllowed(asset string) bool {
	if v == nil {
		return false
	}
	if asset == v.BaseAsset || asset == NativeAsset {
		return true
	}
	for _, allowed := range v.AllowedAssets {
		if allowed == asset {
			return true
		}
	}
	return false
}

// Identity returns the derived custody identity holding the vault's funds.
func Identity(owner [20]byte) [20]byte {
	return crypto.DeriveIdentity(IdentityNamespace, owner[:])
}

// Signer returns the capability authorising transfers out of the vault's
// custody identity.
func Signer(owner [20]byte) crypto.Capability {
	return crypto.NewCapability(IdentityNamespace, owner[:])
}

// NormalizeAsset canonicalises an asset symbol: trimmed, uppercase,
// 1 to 16 characters from [A-Z0-9].
func NormalizeAsset(asset string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(asset))
	if len(trimmed) == 0 || len(trimmed) > 16 {
		return "", fmt.Errorf("vault: invalid asset symbol %q", asset)
	}
	for _, r := range trimmed {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return "", fmt.Errorf("vault: invalid asset symbol %q", asset)
		}
	}
	return trimmed, nil
}
