package solana

import "context"

// RPCClient is the subset of the Solana JSON-RPC HTTP API used by discovery.
type RPCClient interface {
	// GetTransaction retrieves a confirmed transaction by signature.
	// Returns nil, nil when the node does not know the signature yet.
	GetTransaction(ctx context.Context, signature string) (*Transaction, error)
}

// Transaction represents a Solana transaction.
type Transaction struct {
	Slot      int64
	Signature string
	BlockTime int64 // Unix timestamp (seconds)
	Meta      *TransactionMeta
	Message   *TransactionMessage
}

// Failed reports whether the transaction executed with an error.
func (t *Transaction) Failed() bool {
	return t.Meta != nil && t.Meta.Err != nil
}

// TransactionMeta contains transaction metadata.
type TransactionMeta struct {
	Err         interface{}
	LogMessages []string
}

// TransactionMessage contains the parsed transaction message.
type TransactionMessage struct {
	AccountKeys  []string
	Instructions []Instruction
}

// Instruction is a compiled top-level instruction. Accounts are indices
// into TransactionMessage.AccountKeys.
type Instruction struct {
	ProgramIDIndex int
	Accounts       []int
	Data           string // base58
}

// ProgramID resolves the instruction's program address against keys.
func (ix Instruction) ProgramID(keys []string) string {
	if ix.ProgramIDIndex < 0 || ix.ProgramIDIndex >= len(keys) {
		return ""
	}
	return keys[ix.ProgramIDIndex]
}

// Account resolves the i-th instruction account against keys.
// Returns "" if either index is out of range.
func (ix Instruction) Account(keys []string, i int) string {
	if i < 0 || i >= len(ix.Accounts) {
		return ""
	}
	k := ix.Accounts[i]
	if k < 0 || k >= len(keys) {
		return ""
	}
	return keys[k]
}
