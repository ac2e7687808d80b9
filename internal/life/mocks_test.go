package life

import (
	"context"
	"fmt"
	"math/big"

	"hermitbase/internal/ledger"
)

// --- MockHandle ---

type transfer struct {
	To     string
	Amount *big.Int
}

type MockHandle struct {
	Addr          string
	Transfers     []transfer
	TransferFunc  func(to string, amount *big.Int) (ledger.Receipt, error)
	CallFunc      func(call ledger.ContractCall) ([]any, error)
	SubmitCallErr error
}

func (m *MockHandle) Address() string { return m.Addr }

func (m *MockHandle) SubmitValueTransfer(_ context.Context, to string, amount *big.Int) (ledger.Receipt, error) {
	if m.TransferFunc != nil {
		if rcpt, err := m.TransferFunc(to, amount); err != nil {
			return rcpt, err
		}
	}
	m.Transfers = append(m.Transfers, transfer{To: to, Amount: amount})
	return ledger.Receipt{EffectID: fmt.Sprintf("0xtx%d", len(m.Transfers))}, nil
}

func (m *MockHandle) SubmitContractCall(context.Context, ledger.ContractCall) (ledger.Receipt, error) {
	return ledger.Receipt{}, m.SubmitCallErr
}

func (m *MockHandle) CallContract(_ context.Context, call ledger.ContractCall) ([]any, error) {
	if m.CallFunc != nil {
		return m.CallFunc(call)
	}
	return nil, fmt.Errorf("no contract")
}

func (m *MockHandle) Balance(context.Context, string) (*big.Int, error) {
	return big.NewInt(0), nil
}

// --- fixedRand ---

// fixedRand replays draws in order and records the bounds it was asked for.
type fixedRand struct {
	draws  []int
	bounds []int
}

func (f *fixedRand) Intn(n int) int {
	f.bounds = append(f.bounds, n)
	if len(f.draws) == 0 {
		return 0
	}
	v := f.draws[0]
	f.draws = f.draws[1:]
	return v % n
}
