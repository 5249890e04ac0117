package solana

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Address limits.
const (
	PublicKeyLength = 32
	MaxSeedLength   = 32
	MaxSeeds        = 16
)

const pdaMarker = "ProgramDerivedAddress"

var (
	// ErrInvalidAddress is returned for malformed public keys and seeds.
	ErrInvalidAddress = errors.New("invalid address")
	// ErrNoViableBump is returned when no bump seed yields an off-curve address.
	ErrNoViableBump = errors.New("no viable bump seed")
	// ErrOnCurve is returned by CreateProgramAddress when the hash is a valid
	// ed25519 point and therefore cannot be a program address.
	ErrOnCurve = errors.New("derived address is on curve")
)

// DecodeAddress decodes a base58 public key.
// Errors wrap ErrInvalidAddress.
func DecodeAddress(addr string) ([]byte, error) {
	if addr == "" {
		return nil, fmt.Errorf("%w: empty address", ErrInvalidAddress)
	}
	raw, err := base58.Decode(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: address %q: %v", ErrInvalidAddress, addr, err)
	}
	if len(raw) != PublicKeyLength {
		return nil, fmt.Errorf("%w: address %q decodes to %d bytes", ErrInvalidAddress, addr, len(raw))
	}
	return raw, nil
}

// ValidateAddress reports whether addr is a well-formed base58 public key.
func ValidateAddress(addr string) error {
	_, err := DecodeAddress(addr)
	return err
}

// CreateProgramAddress hashes seeds with programID into a program-derived
// address. The caller supplies the bump as the last seed.
func CreateProgramAddress(seeds [][]byte, programID string) (string, error) {
	program, err := DecodeAddress(programID)
	if err != nil {
		return "", err
	}
	if len(seeds) > MaxSeeds {
		return "", fmt.Errorf("%w: %d seeds exceeds %d", ErrInvalidAddress, len(seeds), MaxSeeds)
	}

	h := sha256.New()
	for _, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return "", fmt.Errorf("%w: seed length %d exceeds %d", ErrInvalidAddress, len(seed), MaxSeedLength)
		}
		h.Write(seed)
	}
	h.Write(program)
	h.Write([]byte(pdaMarker))
	sum := h.Sum(nil)

	if isOnCurve(sum) {
		return "", ErrOnCurve
	}
	return base58.Encode(sum), nil
}

// FindProgramAddress searches bump seeds from 255 down and returns the first
// off-curve program-derived address with its bump.
func FindProgramAddress(seeds [][]byte, programID string) (string, uint8, error) {
	if _, err := DecodeAddress(programID); err != nil {
		return "", 0, err
	}

	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)

	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		addr, err := CreateProgramAddress(withBump, programID)
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, ErrOnCurve) {
			return "", 0, err
		}
	}
	return "", 0, ErrNoViableBump
}

// isOnCurve reports whether b is a valid compressed ed25519 point.
func isOnCurve(b []byte) bool {
	if len(b) != PublicKeyLength {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}
