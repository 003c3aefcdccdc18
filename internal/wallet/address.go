// Package wallet validates externally-asserted Solana wallet addresses.
// Validation is a transport-level sanity bound, not proof of ownership:
// the system trusts the address as connected by the client.
package wallet

import (
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Solana addresses are base58-encoded 32-byte public keys, 32-44
// characters in the common encoding.
const (
	MinAddressLen = 32
	MaxAddressLen = 44
	pubkeyLen     = 32
)

// ErrInvalidAddress is returned for anything that cannot be a Solana
// public key.
var ErrInvalidAddress = errors.New("invalid wallet address")

// Validate checks the length bound and that the address decodes to a
// 32-byte public key. It does not require the key to be on the ed25519
// curve: program-derived addresses are off-curve but can own assets.
func Validate(addr string) error {
	if len(addr) < MinAddressLen || len(addr) > MaxAddressLen {
		return fmt.Errorf("%w: length %d outside [%d, %d]", ErrInvalidAddress, len(addr), MinAddressLen, MaxAddressLen)
	}

	raw, err := base58.Decode(addr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(raw) != pubkeyLen {
		return fmt.Errorf("%w: decodes to %d bytes, want %d", ErrInvalidAddress, len(raw), pubkeyLen)
	}

	return nil
}

// IsOnCurve reports whether the address is a valid ed25519 curve point.
// Keypair wallets are on-curve; an off-curve address is a PDA or junk.
// Callers use this as a signal (logging, metrics), not a hard reject.
func IsOnCurve(addr string) bool {
	raw, err := base58.Decode(addr)
	if err != nil || len(raw) != pubkeyLen {
		return false
	}
	_, err = new(edwards25519.Point).SetBytes(raw)
	return err == nil
}
