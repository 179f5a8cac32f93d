package state

import (
	"encoding/hex"
	"strings"
)

// Every persisted record lives under a typed prefix so a backend can be
// inspected or iterated per entity kind. Addresses are hex-encoded in keys
// to keep them printable.
var (
	globalConfigKey  = []byte("platform/config")
	vaultPrefix      = []byte("vault/")
	allocationPrefix = []byte("allocation/")
	tokenPrefix      = []byte("token/")
)

func vaultKey(owner [20]byte) []byte {
	return append(append([]byte{}, vaultPrefix...), hex.EncodeToString(owner[:])...)
}

func allocationKey(owner, strategy [20]byte) []byte {
	buf := append([]byte{}, allocationPrefix...)
	buf = append(buf, hex.EncodeToString(owner[:])...)
	buf = append(buf, '/')
	buf = append(buf, hex.EncodeToString(strategy[:])...)
	return buf
}

func allocationOwnerPrefix(owner [20]byte) []byte {
	buf := append([]byte{}, allocationPrefix...)
	buf = append(buf, hex.EncodeToString(owner[:])...)
	buf = append(buf, '/')
	return buf
}

func tokenAccountKey(holder [20]byte, asset string) []byte {
	buf := append([]byte{}, tokenPrefix...)
	buf = append(buf, hex.EncodeToString(holder[:])...)
	buf = append(buf, '/')
	buf = append(buf, strings.ToUpper(strings.TrimSpace(asset))...)
	return buf
}

func tokenHolderPrefix(holder [20]byte) []byte {
	buf := append([]byte{}, tokenPrefix...)
	buf = append(buf, hex.EncodeToString(holder[:])...)
	buf = append(buf, '/')
	return buf
}
