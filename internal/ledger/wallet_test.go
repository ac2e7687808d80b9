package ledger

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend records submitted transactions and mines them instantly.
type fakeBackend struct {
	balance   *big.Int
	nonce     uint64
	sent      []*types.Transaction
	status    uint64
	logs      []*types.Log
	callOut   []byte
	callMsg   ethereum.CallMsg
	SendFunc  func(tx *types.Transaction) error
	NonceFunc func() (uint64, error)
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{balance: big.NewInt(0), status: types.ReceiptStatusSuccessful}
}

func (f *fakeBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	for _, tx := range f.sent {
		if tx.Hash() == hash {
			return &types.Receipt{Status: f.status, TxHash: hash, BlockNumber: big.NewInt(42), Logs: f.logs}, nil
		}
	}
	return nil, ethereum.NotFound
}

func (f *fakeBackend) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return nil, nil
}

func (f *fakeBackend) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	return f.balance, nil
}

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	if f.NonceFunc != nil {
		return f.NonceFunc()
	}
	return f.nonce, nil
}

func (f *fakeBackend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000), nil
}

func (f *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{BaseFee: big.NewInt(10_000_000)}, nil
}

func (f *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 21000, nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	if f.SendFunc != nil {
		if err := f.SendFunc(tx); err != nil {
			return err
		}
	}
	f.sent = append(f.sent, tx)
	f.nonce++
	return nil
}

func (f *fakeBackend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.callMsg = msg
	return f.callOut, nil
}

var testChainID = big.NewInt(84532)

func newTestWallet(t *testing.T, backend *fakeBackend) *Wallet {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	w, err := NewWallet(backend, "0x"+common.Bytes2Hex(crypto.FromECDSA(key)), testChainID)
	require.NoError(t, err)
	w.WaitTimeout = 5 * time.Second
	return w
}

func TestNewWallet_RejectsBadKey(t *testing.T) {
	_, err := NewWallet(newFakeBackend(), "not-a-key", testChainID)
	require.Error(t, err)

	_, err = NewWallet(newFakeBackend(), "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318", nil)
	require.Error(t, err)
}

func TestSubmitValueTransfer(t *testing.T) {
	backend := newFakeBackend()
	w := newTestWallet(t, backend)

	rcpt, err := w.SubmitValueTransfer(context.Background(), w.Address(), MicroEth)
	require.NoError(t, err)

	require.Len(t, backend.sent, 1)
	tx := backend.sent[0]
	assert.Equal(t, rcpt.EffectID, tx.Hash().Hex())
	assert.Equal(t, uint64(42), rcpt.BlockNumber)
	assert.Equal(t, MicroEth, tx.Value())
	assert.Equal(t, common.HexToAddress(w.Address()), *tx.To())
	assert.Equal(t, testChainID, tx.ChainId())
	assert.Equal(t, uint8(types.DynamicFeeTxType), tx.Type())

	from, err := types.Sender(types.LatestSignerForChainID(testChainID), tx)
	require.NoError(t, err)
	assert.Equal(t, w.Address(), from.Hex())
}

func TestSubmitValueTransfer_Reverted(t *testing.T) {
	backend := newFakeBackend()
	backend.status = types.ReceiptStatusFailed
	w := newTestWallet(t, backend)

	_, err := w.SubmitValueTransfer(context.Background(), w.Address(), MicroEth)
	require.ErrorIs(t, err, ErrReverted)
}

func TestSubmitValueTransfer_FailsBeforeSending(t *testing.T) {
	backend := newFakeBackend()
	backend.NonceFunc = func() (uint64, error) { return 0, errors.New("rpc down") }
	w := newTestWallet(t, backend)

	_, err := w.SubmitValueTransfer(context.Background(), w.Address(), MicroEth)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rpc down")
	assert.Empty(t, backend.sent)

	_, err = w.SubmitValueTransfer(context.Background(), "0xnothex", MicroEth)
	require.Error(t, err)
}

func TestSubmitContractCall_MintShell(t *testing.T) {
	backend := newFakeBackend()
	backend.logs = []*types.Log{{
		Address: common.HexToAddress("0xcf38e8aF885529c457f766a01c22473dBcCe3396"),
		Topics: []common.Hash{
			common.HexToHash(TransferTopic),
			{},
			common.BytesToHash(common.HexToAddress("0x01").Bytes()),
			common.BigToHash(big.NewInt(17)),
		},
	}}
	w := newTestWallet(t, backend)
	nft, err := NewShellNFT("0xcf38e8aF885529c457f766a01c22473dBcCe3396")
	require.NoError(t, err)

	born := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rcpt, err := w.SubmitContractCall(context.Background(), nft.MintCall(ShellRecord{
		Owner:       w.Address(),
		BornAt:      born,
		ActionCount: 12,
		ValueMoved:  big.NewInt(1200),
		LifeSummary: "Shell #0 lived 2.5h",
	}))
	require.NoError(t, err)

	require.Len(t, rcpt.Logs, 1)
	assert.Equal(t, TransferTopic, rcpt.Logs[0].Topics[0])
	assert.Len(t, rcpt.Logs[0].Topics, 4)

	parsed, err := abi.JSON(strings.NewReader(ShellNFTABI))
	require.NoError(t, err)
	data := backend.sent[0].Data()
	method, err := parsed.MethodById(data[:4])
	require.NoError(t, err)
	assert.Equal(t, "mintShell", method.Name)
	args, err := method.Inputs.Unpack(data[4:])
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(w.Address()), args[0])
	assert.Equal(t, big.NewInt(born.Unix()), args[1])
	assert.Equal(t, big.NewInt(12), args[2])
	assert.Equal(t, big.NewInt(1200), args[3])
	assert.Equal(t, "Shell #0 lived 2.5h", args[4])
}

func TestTotalShells(t *testing.T) {
	backend := newFakeBackend()
	backend.callOut = common.LeftPadBytes(big.NewInt(7).Bytes(), 32)
	w := newTestWallet(t, backend)
	nft, err := NewShellNFT("0xcf38e8aF885529c457f766a01c22473dBcCe3396")
	require.NoError(t, err)

	total, err := nft.TotalShells(context.Background(), w)
	require.NoError(t, err)
	assert.Equal(t, int64(7), total.Int64())
	require.NotNil(t, backend.callMsg.To)
	assert.Equal(t, nft.Address(), backend.callMsg.To.Hex())
	assert.Empty(t, backend.sent, "read-only calls must not submit a transaction")
}

func TestBalance(t *testing.T) {
	backend := newFakeBackend()
	backend.balance = big.NewInt(5_000)
	w := newTestWallet(t, backend)

	bal, err := w.Balance(context.Background(), w.Address())
	require.NoError(t, err)
	assert.Equal(t, int64(5_000), bal.Int64())

	_, err = w.Balance(context.Background(), "nope")
	require.Error(t, err)
}

func TestNewShellNFT_RejectsBadAddress(t *testing.T) {
	_, err := NewShellNFT("0x123")
	require.Error(t, err)
}

func TestStaticKeyring(t *testing.T) {
	w := newTestWallet(t, newFakeBackend())
	k := NewStaticKeyring(w)
	assert.Same(t, w, k.Current(3))
	assert.Same(t, w, k.Next(3))
}

func TestRandomAddress(t *testing.T) {
	a, err := RandomAddress()
	require.NoError(t, err)
	b, err := RandomAddress()
	require.NoError(t, err)
	assert.True(t, common.IsHexAddress(a))
	assert.NotEqual(t, a, b)
}
