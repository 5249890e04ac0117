// Package discovery recognizes pool-initialization instructions in Solana
// transactions and turns them into NewPoolEvents.
package discovery

import (
	"slices"
	"strings"

	"github.com/mr-tron/base58"

	"solana-signal-engine/internal/domain"
	"solana-signal-engine/internal/solana"
)

// Known DEX program IDs.
const (
	// RaydiumAMMV4 is the Raydium AMM v4 program ID.
	RaydiumAMMV4 = "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"
	// PumpFun is the pump.fun bonding-curve program ID.
	PumpFun = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"
)

// WSOL is the Wrapped SOL mint address.
const WSOL = "So11111111111111111111111111111111111111112"

// PoolInit is a pool creation recognized in one instruction.
type PoolInit struct {
	Mint string
	Pool string
}

// Parser recognizes pool initialization for a single program.
type Parser interface {
	// ProgramID is the program whose instructions this parser understands.
	ProgramID() string
	// PoolType is the venue reported on emitted events.
	PoolType() domain.PoolType
	// MatchLogs is a cheap pre-filter on subscription logs. It decides
	// whether the transaction is worth fetching.
	MatchLogs(logs []string) bool
	// ParseInstruction decodes a top-level instruction owned by ProgramID.
	// ok is false when the instruction is not a pool initialization.
	ParseInstruction(keys []string, ix solana.Instruction, data []byte) (PoolInit, bool)
}

// DEXParser dispatches to per-program parsers.
type DEXParser struct {
	parsers map[string]Parser // programID -> parser
}

// NewDEXParser creates a parser with the Raydium AMM v4 and pump.fun parsers registered.
func NewDEXParser() *DEXParser {
	p := &DEXParser{parsers: make(map[string]Parser)}
	p.RegisterParser(NewRaydiumParser())
	p.RegisterParser(NewPumpFunParser())
	return p
}

// RegisterParser registers parser under its program ID, replacing any previous one.
func (p *DEXParser) RegisterParser(parser Parser) {
	p.parsers[parser.ProgramID()] = parser
}

// Programs returns the registered program IDs in sorted order.
func (p *DEXParser) Programs() []string {
	ids := make([]string, 0, len(p.parsers))
	for id := range p.parsers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// MatchLogs reports whether any registered parser is interested in logs.
func (p *DEXParser) MatchLogs(logs []string) bool {
	for _, parser := range p.parsers {
		if parser.MatchLogs(logs) {
			return true
		}
	}
	return false
}

// ParseTransaction returns one event per recognized pool initialization,
// in instruction order. Failed transactions yield nothing.
// Timestamp comes from the block time; callers stamp events that have none.
func (p *DEXParser) ParseTransaction(tx *solana.Transaction) []*domain.NewPoolEvent {
	if tx == nil || tx.Failed() || tx.Message == nil {
		return nil
	}

	keys := tx.Message.AccountKeys
	seen := make(map[string]bool)
	var events []*domain.NewPoolEvent

	for _, ix := range tx.Message.Instructions {
		parser, ok := p.parsers[ix.ProgramID(keys)]
		if !ok {
			continue
		}
		data, err := base58.Decode(ix.Data)
		if err != nil {
			continue
		}
		init, ok := parser.ParseInstruction(keys, ix, data)
		if !ok || init.Mint == "" || seen[init.Mint] {
			continue
		}
		seen[init.Mint] = true

		events = append(events, &domain.NewPoolEvent{
			Mint:        init.Mint,
			Pool:        init.Pool,
			Type:        parser.PoolType(),
			TxSignature: tx.Signature,
			Slot:        tx.Slot,
			Timestamp:   tx.BlockTime * 1000,
		})
	}

	return events
}

func containsLog(logs []string, needle string) bool {
	for _, line := range logs {
		if strings.Contains(line, needle) {
			return true
		}
	}
	return false
}
