package molt

import (
	"context"
	"math/big"
	"time"

	"hermitbase/internal/ledger"
)

// --- MockHandle ---

type MockHandle struct {
	Addr           string
	BalanceFunc    func() (*big.Int, error)
	SubmitCallFunc func(call ledger.ContractCall) (ledger.Receipt, error)
	Calls          []ledger.ContractCall
}

func (m *MockHandle) Address() string { return m.Addr }

func (m *MockHandle) SubmitValueTransfer(context.Context, string, *big.Int) (ledger.Receipt, error) {
	return ledger.Receipt{EffectID: "0xtransfer"}, nil
}

func (m *MockHandle) SubmitContractCall(_ context.Context, call ledger.ContractCall) (ledger.Receipt, error) {
	m.Calls = append(m.Calls, call)
	if m.SubmitCallFunc != nil {
		return m.SubmitCallFunc(call)
	}
	return ledger.Receipt{EffectID: "0xmint"}, nil
}

func (m *MockHandle) CallContract(context.Context, ledger.ContractCall) ([]any, error) {
	return nil, nil
}

func (m *MockHandle) Balance(context.Context, string) (*big.Int, error) {
	if m.BalanceFunc != nil {
		return m.BalanceFunc()
	}
	return big.NewInt(0), nil
}

// --- MockMintLedger ---

type MockMintLedger struct {
	LookupMintFunc func(generation int, bornAt time.Time) (MintRecord, bool, error)
}

func (m *MockMintLedger) LookupMint(_ context.Context, generation int, bornAt time.Time) (MintRecord, bool, error) {
	if m.LookupMintFunc != nil {
		return m.LookupMintFunc(generation, bornAt)
	}
	return MintRecord{}, false, nil
}

// --- scriptedRand ---

// scriptedRand returns queued draws (zero when exhausted) and records bounds.
type scriptedRand struct {
	ints      []int
	int63s    []int64
	intBounds []int
	i63Bounds []int64
}

func (s *scriptedRand) Intn(n int) int {
	s.intBounds = append(s.intBounds, n)
	if len(s.ints) == 0 {
		return 0
	}
	v := s.ints[0]
	s.ints = s.ints[1:]
	return v
}

func (s *scriptedRand) Int63n(n int64) int64 {
	s.i63Bounds = append(s.i63Bounds, n)
	if len(s.int63s) == 0 {
		return 0
	}
	v := s.int63s[0]
	s.int63s = s.int63s[1:]
	return v
}
