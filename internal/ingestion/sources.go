// Package ingestion runs the discovery sources and feeds scored candidates
// into the registry through a bounded drop-oldest queue.
package ingestion

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"solana-signal-engine/internal/domain"
	"solana-signal-engine/internal/observability"
)

// Emit hands an event to the runner. It never blocks.
type Emit func(domain.DiscoveryEvent)

// Source produces discovery events until ctx is cancelled.
type Source interface {
	// Name identifies the source in logs and metrics.
	Name() domain.Source
	// Run emits events until ctx is done. A returned error other than
	// ctx.Err() makes the runner restart the source after a delay.
	Run(ctx context.Context, emit Emit) error
}

// pollLoop runs fn immediately and then every interval until ctx is done.
// Errors are logged and counted; polling continues.
func pollLoop(ctx context.Context, name domain.Source, interval time.Duration, logger zerolog.Logger, fn func(context.Context) error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := fn(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			observability.RecordSourceError(name.String())
			logger.Warn().Err(err).Msg("poll failed")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// poolTypeFromVenue maps a provider venue label onto a PoolType.
func poolTypeFromVenue(venue string) domain.PoolType {
	switch strings.ToLower(venue) {
	case "pump_fun", "pumpfun", "pump.fun", "pump":
		return domain.PoolTypePumpFun
	case "raydium", "raydium_amm", "raydium_cp", "raydium_clmm":
		return domain.PoolTypeRaydium
	case "orca", "whirlpool":
		return domain.PoolTypeOrca
	case "jupiter":
		return domain.PoolTypeJupiter
	default:
		return domain.PoolTypeOther
	}
}
