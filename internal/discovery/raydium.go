package discovery

import (
	"solana-signal-engine/internal/domain"
	"solana-signal-engine/internal/solana"
)

// Raydium AMM v4 initialize2 account layout.
// 0: token program, 1: associated token program, 2: system program,
// 3: rent sysvar, 4: amm (pool), 5: amm authority, 6: open orders,
// 7: lp mint, 8: coin mint, 9: pc mint, 10..: vaults and market accounts.
const (
	raydiumInitialize2Tag = 1
	raydiumPoolIndex      = 4
	raydiumCoinMintIndex  = 8
	raydiumPCMintIndex    = 9
)

// RaydiumParser recognizes Raydium AMM v4 initialize2.
type RaydiumParser struct{}

// NewRaydiumParser creates a new Raydium parser.
func NewRaydiumParser() *RaydiumParser {
	return &RaydiumParser{}
}

func (p *RaydiumParser) ProgramID() string         { return RaydiumAMMV4 }
func (p *RaydiumParser) PoolType() domain.PoolType { return domain.PoolTypeRaydium }

// MatchLogs looks for the initialize2 program log.
func (p *RaydiumParser) MatchLogs(logs []string) bool {
	return containsLog(logs, "initialize2")
}

// ParseInstruction returns the pool and the non-WSOL side of the pair.
// When neither side is WSOL the coin mint is used.
func (p *RaydiumParser) ParseInstruction(keys []string, ix solana.Instruction, data []byte) (PoolInit, bool) {
	if len(data) == 0 || data[0] != raydiumInitialize2Tag {
		return PoolInit{}, false
	}

	pool := ix.Account(keys, raydiumPoolIndex)
	coin := ix.Account(keys, raydiumCoinMintIndex)
	pc := ix.Account(keys, raydiumPCMintIndex)
	if pool == "" || coin == "" || pc == "" {
		return PoolInit{}, false
	}

	mint := coin
	if coin == WSOL {
		mint = pc
	}
	if mint == WSOL {
		return PoolInit{}, false
	}
	return PoolInit{Mint: mint, Pool: pool}, true
}
