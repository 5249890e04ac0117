package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"solana-signal-engine/internal/domain"
)

// ComputeSignalID computes a deterministic signal ID using SHA256.
// Formula: SHA256(subject_id|sleeve|signal|evaluated_at)
// subject_id is the candidate registration ID for entries and the position ID for exits.
// Returns hex-encoded hash (64 characters).
func ComputeSignalID(
	subjectID string,
	sleeve domain.Sleeve,
	signal domain.Signal,
	evaluatedAt int64,
) string {
	data := fmt.Sprintf("%s|%s|%s|%d",
		subjectID,
		string(sleeve),
		string(signal),
		evaluatedAt,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
