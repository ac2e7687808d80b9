package ledger

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ShellNFTABI covers the parts of the ShellNFT contract the agent touches.
const ShellNFTABI = `[
  {"type":"function","name":"mintShell","stateMutability":"nonpayable",
   "inputs":[
     {"name":"walletAddress","type":"address"},
     {"name":"bornAt","type":"uint256"},
     {"name":"txCount","type":"uint256"},
     {"name":"totalValueMoved","type":"uint256"},
     {"name":"lifeSummary","type":"string"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"totalShells","stateMutability":"view",
   "inputs":[],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"shellOf","stateMutability":"view",
   "inputs":[{"name":"tokenId","type":"uint256"}],
   "outputs":[
     {"name":"walletAddress","type":"address"},
     {"name":"bornAt","type":"uint256"},
     {"name":"diedAt","type":"uint256"},
     {"name":"txCount","type":"uint256"},
     {"name":"totalValueMoved","type":"uint256"},
     {"name":"lifeSummary","type":"string"}]}
]`

// TransferTopic is topic[0] of the ERC-721 Transfer(address,address,uint256) event.
var TransferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)")).Hex()

// ShellRecord is the commemorative data minted for a finished shell.
type ShellRecord struct {
	Owner       string
	BornAt      time.Time
	ActionCount int
	ValueMoved  *big.Int
	LifeSummary string
}

// ShellNFT binds the contract at a fixed address.
type ShellNFT struct {
	address string
}

// NewShellNFT returns a binding for the contract at address.
func NewShellNFT(address string) (*ShellNFT, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid ShellNFT address %q", address)
	}
	return &ShellNFT{address: common.HexToAddress(address).Hex()}, nil
}

// Address returns the checksummed contract address.
func (s *ShellNFT) Address() string { return s.address }

// MintCall builds the mintShell invocation for rec.
func (s *ShellNFT) MintCall(rec ShellRecord) ContractCall {
	value := rec.ValueMoved
	if value == nil {
		value = new(big.Int)
	}
	return ContractCall{
		Contract: s.address,
		ABI:      ShellNFTABI,
		Method:   "mintShell",
		Args: []any{
			common.HexToAddress(rec.Owner),
			big.NewInt(rec.BornAt.Unix()),
			big.NewInt(int64(rec.ActionCount)),
			new(big.Int).Set(value),
			rec.LifeSummary,
		},
	}
}

// TotalShells reads how many shells have been minted so far.
func (s *ShellNFT) TotalShells(ctx context.Context, h Handle) (*big.Int, error) {
	out, err := h.CallContract(ctx, ContractCall{
		Contract: s.address,
		ABI:      ShellNFTABI,
		Method:   "totalShells",
	})
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("totalShells returned %d values", len(out))
	}
	total, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("totalShells returned %T", out[0])
	}
	return total, nil
}
