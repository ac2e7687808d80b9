package ledger

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"hermitbase/internal/logging"
)

// Backend is the subset of *ethclient.Client the wallet needs.
type Backend interface {
	bind.DeployBackend
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Dial connects to a JSON-RPC endpoint.
func Dial(ctx context.Context, rpcURL string) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", rpcURL, err)
	}
	return client, nil
}

// Wallet signs and submits EIP-1559 transactions from a single key.
type Wallet struct {
	backend Backend
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
	signer  types.Signer

	// mu keeps nonce assignment and submission in order.
	mu sync.Mutex
	// WaitTimeout bounds how long a submission waits to be mined.
	WaitTimeout time.Duration
}

// NewWallet loads a hex private key (with or without 0x).
func NewWallet(backend Backend, privateKeyHex string, chainID *big.Int) (*Wallet, error) {
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, fmt.Errorf("invalid chain id %v", chainID)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return &Wallet{
		backend:     backend,
		key:         key,
		address:     crypto.PubkeyToAddress(key.PublicKey),
		chainID:     new(big.Int).Set(chainID),
		signer:      types.LatestSignerForChainID(chainID),
		WaitTimeout: 3 * time.Minute,
	}, nil
}

// Address returns the checksummed wallet address.
func (w *Wallet) Address() string { return w.address.Hex() }

// Balance returns the latest balance of address in wei.
func (w *Wallet) Balance(ctx context.Context, address string) (*big.Int, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid address %q", address)
	}
	bal, err := w.backend.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return bal, nil
}

// SubmitValueTransfer sends amount wei to to and waits for it to be mined.
func (w *Wallet) SubmitValueTransfer(ctx context.Context, to string, amount *big.Int) (Receipt, error) {
	if !common.IsHexAddress(to) {
		return Receipt{}, fmt.Errorf("invalid recipient %q", to)
	}
	if amount == nil || amount.Sign() < 0 {
		return Receipt{}, fmt.Errorf("invalid amount %v", amount)
	}
	dest := common.HexToAddress(to)
	return w.transact(ctx, &dest, amount, nil)
}

// SubmitContractCall sends a state-changing contract call and waits for it to be mined.
func (w *Wallet) SubmitContractCall(ctx context.Context, call ContractCall) (Receipt, error) {
	dest, data, err := packCall(call)
	if err != nil {
		return Receipt{}, err
	}
	return w.transact(ctx, &dest, new(big.Int), data)
}

// CallContract performs an eth_call against the latest block.
func (w *Wallet) CallContract(ctx context.Context, call ContractCall) ([]any, error) {
	dest, data, err := packCall(call)
	if err != nil {
		return nil, err
	}
	out, err := w.backend.CallContract(ctx, ethereum.CallMsg{From: w.address, To: &dest, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%s call failed: %w", call.Method, err)
	}
	parsed, err := abi.JSON(strings.NewReader(call.ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ABI: %w", err)
	}
	values, err := parsed.Unpack(call.Method, out)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s result: %w", call.Method, err)
	}
	return values, nil
}

func packCall(call ContractCall) (common.Address, []byte, error) {
	if !common.IsHexAddress(call.Contract) {
		return common.Address{}, nil, fmt.Errorf("invalid contract address %q", call.Contract)
	}
	parsed, err := abi.JSON(strings.NewReader(call.ABI))
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("failed to parse ABI: %w", err)
	}
	data, err := parsed.Pack(call.Method, call.Args...)
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("failed to encode %s: %w", call.Method, err)
	}
	return common.HexToAddress(call.Contract), data, nil
}

func (w *Wallet) transact(ctx context.Context, to *common.Address, value *big.Int, data []byte) (Receipt, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	nonce, err := w.backend.PendingNonceAt(ctx, w.address)
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to get nonce: %w", err)
	}
	tip, err := w.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to suggest gas tip: %w", err)
	}
	head, err := w.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to get latest header: %w", err)
	}
	feeCap := new(big.Int).Set(tip)
	if head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}
	gas, err := w.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:  w.address,
		To:    to,
		Value: value,
		Data:  data,
	})
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to estimate gas: %w", err)
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   w.chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        to,
		Value:     value,
		Data:      data,
	})
	signed, err := types.SignTx(tx, w.signer, w.key)
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to sign transaction: %w", err)
	}
	if err := w.backend.SendTransaction(ctx, signed); err != nil {
		return Receipt{}, fmt.Errorf("failed to send transaction: %w", err)
	}
	hash := signed.Hash().Hex()
	logging.LedgerDebug("Submitted tx %s nonce=%d gas=%d", hash, nonce, gas)

	waitCtx := ctx
	if w.WaitTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, w.WaitTimeout)
		defer cancel()
	}
	mined, err := bind.WaitMined(waitCtx, w.backend, signed)
	if err != nil {
		return Receipt{}, fmt.Errorf("failed waiting for %s: %w", hash, err)
	}
	if mined.Status != types.ReceiptStatusSuccessful {
		return Receipt{}, fmt.Errorf("%w: %s", ErrReverted, hash)
	}

	rcpt := Receipt{EffectID: hash, Logs: make([]EventLog, 0, len(mined.Logs))}
	if mined.BlockNumber != nil {
		rcpt.BlockNumber = mined.BlockNumber.Uint64()
	}
	for _, l := range mined.Logs {
		if l == nil {
			continue
		}
		topics := make([]string, len(l.Topics))
		for i, t := range l.Topics {
			topics[i] = t.Hex()
		}
		rcpt.Logs = append(rcpt.Logs, EventLog{Address: l.Address.Hex(), Topics: topics, Data: l.Data})
	}
	logging.Ledger("Mined tx %s in block %d", hash, rcpt.BlockNumber)
	return rcpt, nil
}

// RandomAddress returns the address of a freshly generated, discarded key.
func RandomAddress() (string, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return crypto.PubkeyToAddress(key.PublicKey).Hex(), nil
}
