package crypto

import (
	"bytes"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Derived identities give custody records control over holding accounts
// without a conventional private key. The identity is a pure function of a
// namespace tag plus the owning keys, so any party can recompute it, but
// only an engine holding the matching Capability can sign value movements
// from it.

// DeriveIdentity computes the deterministic 20-byte identity for the given
// namespace and seeds. The layout hashes the namespace and every seed with
// a length prefix so distinct seed splits can never collide.
func DeriveIdentity(namespace string, seeds ...[]byte) [20]byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(len(namespace)))
	buf.WriteString(namespace)
	for _, seed := range seeds {
		buf.WriteByte(byte(len(seed)))
		buf.Write(seed)
	}
	sum := ethcrypto.Keccak256(buf.Bytes())
	var id [20]byte
	copy(id[:], sum[12:])
	return id
}

// Capability is the signing token for a derived identity. Engines construct
// one from the seeds they control and pass it to the ledger when moving
// value out of a derived account; it never leaves the process.
type Capability struct {
	identity  [20]byte
	namespace string
	seeds     [][]byte
}

// NewCapability binds the namespace and seeds into a capability for the
// identity they derive.
func NewCapability(namespace string, seeds ...[]byte) Capability {
	copied := make([][]byte, len(seeds))
	for i, seed := range seeds {
		buf := make([]byte, len(seed))
		copy(buf, seed)
		copied[i] = buf
	}
	return Capability{
		identity:  DeriveIdentity(namespace, seeds...),
		namespace: namespace,
		seeds:     copied,
	}
}

// Identity returns the derived identity this capability signs for.
func (c Capability) Identity() [20]byte { return c.identity }

// Controls reports whether the capability's seeds genuinely derive the
// given identity. The ledger checks this before honouring a delegated
// debit.
func (c Capability) Controls(identity [20]byte) bool {
	if c.identity != identity {
		return false
	}
	return DeriveIdentity(c.namespace, c.seeds...) == identity
}
