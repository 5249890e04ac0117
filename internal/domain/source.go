package domain

import "time"

// Source represents the discovery source of a candidate.
type Source string

const (
	SourceNewPool  Source = "NEW_POOL"
	SourceFlow     Source = "FLOW"
	SourceTrending Source = "TRENDING"
)

// Candidate time-to-live per source.
const (
	TTLNewPool  = 30 * time.Minute
	TTLFlow     = 15 * time.Minute
	TTLTrending = 60 * time.Minute
)

// String returns the string representation of Source.
func (s Source) String() string {
	return string(s)
}

// IsValid checks if the source is a valid value.
func (s Source) IsValid() bool {
	return s == SourceNewPool || s == SourceFlow || s == SourceTrending
}

// TTL returns how long an unselected candidate from this source stays live.
// Unknown sources get zero, which makes them expire immediately.
func (s Source) TTL() time.Duration {
	switch s {
	case SourceNewPool:
		return TTLNewPool
	case SourceFlow:
		return TTLFlow
	case SourceTrending:
		return TTLTrending
	default:
		return 0
	}
}

// PoolType identifies the venue a candidate pool lives on.
type PoolType string

const (
	PoolTypePumpFun PoolType = "PUMPFUN"
	PoolTypeRaydium PoolType = "RAYDIUM"
	PoolTypeOrca    PoolType = "ORCA"
	PoolTypeJupiter PoolType = "JUPITER"
	PoolTypeOther   PoolType = "OTHER"
)

// String returns the string representation of PoolType.
func (t PoolType) String() string {
	return string(t)
}

// ParsePoolType maps a venue label to a PoolType, defaulting to PoolTypeOther.
func ParsePoolType(s string) PoolType {
	switch PoolType(s) {
	case PoolTypePumpFun, PoolTypeRaydium, PoolTypeOrca, PoolTypeJupiter:
		return PoolType(s)
	default:
		return PoolTypeOther
	}
}
