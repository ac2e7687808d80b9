// Package ledger is the agent's handle on the chain: a signing wallet over a
// JSON-RPC backend, the ShellNFT contract bindings and wei formatting.
package ledger

import (
	"context"
	"errors"
	"math/big"
)

// ErrReverted is returned when a transaction was mined with a failed status.
var ErrReverted = errors.New("transaction reverted")

// EventLog is an emitted contract event. Topics are 0x-prefixed 32 byte hex.
type EventLog struct {
	Address string
	Topics  []string
	Data    []byte
}

// Receipt is the outcome of a mined transaction.
type Receipt struct {
	// EffectID is the transaction hash.
	EffectID    string
	BlockNumber uint64
	Logs        []EventLog
}

// ContractCall describes a method invocation. ABI is the contract's JSON ABI;
// Args must use the Go types the ABI encoder expects.
type ContractCall struct {
	Contract string
	ABI      string
	Method   string
	Args     []any
}

// Handle is what the agent does with a wallet.
type Handle interface {
	Address() string
	SubmitValueTransfer(ctx context.Context, to string, amount *big.Int) (Receipt, error)
	SubmitContractCall(ctx context.Context, call ContractCall) (Receipt, error)
	// CallContract performs a read-only call and returns the decoded outputs.
	CallContract(ctx context.Context, call ContractCall) ([]any, error)
	Balance(ctx context.Context, address string) (*big.Int, error)
}
