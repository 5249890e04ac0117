package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"solana-signal-engine/internal/domain"
)

// ComputeRegistrationID computes a deterministic registration ID using SHA256.
// Formula: SHA256(mint|pool|source|discovered_at)
// Returns hex-encoded hash (64 characters).
func ComputeRegistrationID(
	mint string,
	pool string,
	source domain.Source,
	discoveredAt int64,
) string {
	data := fmt.Sprintf("%s|%s|%s|%d",
		mint,
		pool,
		string(source),
		discoveredAt,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
