package discovery

import (
	"bytes"
	"crypto/sha256"

	"solana-signal-engine/internal/domain"
	"solana-signal-engine/internal/solana"
)

// pump.fun create account layout: 0 mint, 1 mint authority,
// 2 bonding curve, 3 associated bonding curve, ...
const (
	pumpMintIndex         = 0
	pumpBondingCurveIndex = 2
)

const bondingCurveSeed = "bonding-curve"

// PumpFunParser recognizes the pump.fun create instruction. The pool is the
// token's bonding-curve account.
type PumpFunParser struct {
	createDiscriminator []byte
}

// NewPumpFunParser creates a new pump.fun parser.
func NewPumpFunParser() *PumpFunParser {
	return &PumpFunParser{createDiscriminator: anchorDiscriminator("create")}
}

func (p *PumpFunParser) ProgramID() string         { return PumpFun }
func (p *PumpFunParser) PoolType() domain.PoolType { return domain.PoolTypePumpFun }

// MatchLogs looks for the Anchor "Instruction: Create" log.
func (p *PumpFunParser) MatchLogs(logs []string) bool {
	return containsLog(logs, "Program log: Instruction: Create")
}

// ParseInstruction derives the bonding-curve address from the mint and
// rejects instructions whose curve account does not match it.
func (p *PumpFunParser) ParseInstruction(keys []string, ix solana.Instruction, data []byte) (PoolInit, bool) {
	if !bytes.HasPrefix(data, p.createDiscriminator) {
		return PoolInit{}, false
	}

	mint := ix.Account(keys, pumpMintIndex)
	if mint == "" {
		return PoolInit{}, false
	}

	curve, err := BondingCurveAddress(mint)
	if err != nil {
		return PoolInit{}, false
	}
	if got := ix.Account(keys, pumpBondingCurveIndex); got != "" && got != curve {
		return PoolInit{}, false
	}
	return PoolInit{Mint: mint, Pool: curve}, true
}

// BondingCurveAddress derives the pump.fun bonding-curve PDA for mint.
func BondingCurveAddress(mint string) (string, error) {
	raw, err := solana.DecodeAddress(mint)
	if err != nil {
		return "", err
	}
	addr, _, err := solana.FindProgramAddress([][]byte{[]byte(bondingCurveSeed), raw}, PumpFun)
	return addr, err
}

// anchorDiscriminator is the first 8 bytes of sha256("global:<name>").
func anchorDiscriminator(name string) []byte {
	sum := sha256.Sum256([]byte("global:" + name))
	return sum[:8]
}
