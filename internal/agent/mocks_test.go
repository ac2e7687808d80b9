package agent

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"hermitbase/internal/config"
	"hermitbase/internal/ledger"
	"hermitbase/internal/life"
	"hermitbase/internal/molt"
	"hermitbase/internal/social"
	"hermitbase/internal/state"
)

// --- MockStore ---

type MockStore struct {
	Initial  *state.LifecycleState
	Saved    []*state.LifecycleState
	Attempts int
	SaveFunc func(attempt int) error
}

func (m *MockStore) Load() *state.LifecycleState {
	if m.Initial == nil {
		return state.Default(bornAt)
	}
	return m.Initial.Clone()
}

func (m *MockStore) Save(st *state.LifecycleState) error {
	m.Attempts++
	if m.SaveFunc != nil {
		if err := m.SaveFunc(m.Attempts); err != nil {
			return err
		}
	}
	m.Saved = append(m.Saved, st.Clone())
	return nil
}

func (m *MockStore) Last() *state.LifecycleState {
	if len(m.Saved) == 0 {
		return nil
	}
	return m.Saved[len(m.Saved)-1]
}

// --- MockHandle ---

type MockHandle struct {
	Addr string
}

func (m *MockHandle) Address() string { return m.Addr }

func (m *MockHandle) SubmitValueTransfer(context.Context, string, *big.Int) (ledger.Receipt, error) {
	return ledger.Receipt{EffectID: "0xtransfer"}, nil
}

func (m *MockHandle) SubmitContractCall(context.Context, ledger.ContractCall) (ledger.Receipt, error) {
	return ledger.Receipt{EffectID: "0xcall"}, nil
}

func (m *MockHandle) CallContract(context.Context, ledger.ContractCall) ([]any, error) {
	return nil, nil
}

func (m *MockHandle) Balance(context.Context, string) (*big.Int, error) {
	return big.NewInt(5_000_000_000_000_000), nil
}

// --- MockKeyring ---

type MockKeyring struct {
	Wallets   map[int]ledger.Handle
	NextCalls []int
}

func (m *MockKeyring) Current(generation int) ledger.Handle {
	if h, ok := m.Wallets[generation]; ok {
		return h
	}
	return m.Wallets[0]
}

func (m *MockKeyring) Next(generation int) ledger.Handle {
	m.NextCalls = append(m.NextCalls, generation)
	return m.Current(generation + 1)
}

// --- MockSelector ---

type MockSelector struct {
	Choices []string
	Func    func(choice string) (life.Result, error)
}

func (m *MockSelector) SelectAndPerform(_ context.Context, _ ledger.Handle, choice string) (life.Result, error) {
	m.Choices = append(m.Choices, choice)
	if m.Func != nil {
		return m.Func(choice)
	}
	return life.Result{
		Action:      life.SelfTransfer,
		Description: "Sent 0.0001 ETH to self (reflection loop)",
		EffectID:    fmt.Sprintf("0xtx%d", len(m.Choices)),
		Value:       new(big.Int).Set(ledger.MicroEth),
	}, nil
}

// --- MockEngine ---

type MockEngine struct {
	Calls      int
	Decision   molt.Decision
	Thresholds []molt.Thresholds
}

func (m *MockEngine) Evaluate(*state.LifecycleState, time.Time) molt.Decision {
	m.Calls++
	return m.Decision
}

func (m *MockEngine) SetThresholds(t molt.Thresholds) error {
	m.Thresholds = append(m.Thresholds, t)
	return nil
}

// --- MockMolter ---

type MockMolter struct {
	Calls       int
	ExecuteFunc func(st *state.LifecycleState, outgoing, incoming ledger.Handle) (molt.Summary, error)
}

func (m *MockMolter) Execute(_ context.Context, st *state.LifecycleState, outgoing, incoming ledger.Handle) (molt.Summary, error) {
	m.Calls++
	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(st, outgoing, incoming)
	}
	return molt.Summary{
		OutgoingGeneration: st.GenerationIndex,
		IncomingGeneration: st.GenerationIndex + 1,
		OutgoingAddress:    outgoing.Address(),
		IncomingAddress:    incoming.Address(),
		ActionCount:        st.ActionCount,
		ValueMoved:         st.TotalValueMoved.Int(),
		MintTxHash:         "0xmint",
		LifeSummary:        "a short life",
	}, nil
}

// --- MockAdvisor ---

type MockAdvisor struct {
	ActionFunc        func() string
	TransitionFunc    func() *bool
	AnnouncementFunc  func(res life.Result) string
	TransitionTextFun func(sum molt.Summary) string
	ReplyFunc         func(text, author string) string
}

func (m *MockAdvisor) AdviseAction(context.Context, *state.LifecycleState, string) string {
	if m.ActionFunc != nil {
		return m.ActionFunc()
	}
	return ""
}

func (m *MockAdvisor) AdviseTransition(context.Context, *state.LifecycleState) *bool {
	if m.TransitionFunc != nil {
		return m.TransitionFunc()
	}
	return nil
}

func (m *MockAdvisor) ComposeAnnouncement(_ context.Context, _ *state.LifecycleState, res life.Result) string {
	if m.AnnouncementFunc != nil {
		return m.AnnouncementFunc(res)
	}
	return ""
}

func (m *MockAdvisor) ComposeTransitionAnnouncement(_ context.Context, sum molt.Summary) string {
	if m.TransitionTextFun != nil {
		return m.TransitionTextFun(sum)
	}
	return ""
}

func (m *MockAdvisor) ComposeReply(_ context.Context, text, author string, _ *state.LifecycleState) string {
	if m.ReplyFunc != nil {
		return m.ReplyFunc(text, author)
	}
	return ""
}

// --- MockSocial ---

type post struct {
	Text   string
	Parent string
}

type MockSocial struct {
	Posts    []post
	Mentions []social.Mention
	Fetches  int
	PostFail bool
}

func (m *MockSocial) Post(_ context.Context, text, parent string) (string, bool) {
	if m.PostFail {
		return "", false
	}
	m.Posts = append(m.Posts, post{Text: text, Parent: parent})
	return fmt.Sprintf("0xcast%d", len(m.Posts)), true
}

func (m *MockSocial) FetchMentions(context.Context, string) []social.Mention {
	m.Fetches++
	return m.Mentions
}

// --- MockRecorder ---

type MockRecorder struct {
	Actions []life.Result
	Shells  []molt.Summary
}

func (m *MockRecorder) RecordAction(_ context.Context, _ int, res life.Result, _ time.Time) error {
	m.Actions = append(m.Actions, res)
	return nil
}

func (m *MockRecorder) RecordShell(_ context.Context, sum molt.Summary) error {
	m.Shells = append(m.Shells, sum)
	return nil
}

// --- MockTuning ---

type MockTuning struct {
	Value config.Tuning
}

func (m *MockTuning) Tuning() config.Tuning { return m.Value }

// --- loopClock ---

// loopClock stands in for Sleep. It records every pause and cancels the run
// after the given number of loop sleeps (pauses of a minute or more).
type loopClock struct {
	cancel     context.CancelFunc
	iterations int
	pauses     []time.Duration
	loops      int
}

func (c *loopClock) Sleep(ctx context.Context, d time.Duration) error {
	c.pauses = append(c.pauses, d)
	if d >= time.Minute {
		c.loops++
		if c.loops >= c.iterations {
			c.cancel()
			return ctx.Err()
		}
	}
	return ctx.Err()
}

func (c *loopClock) count(d time.Duration) int {
	n := 0
	for _, p := range c.pauses {
		if p == d {
			n++
		}
	}
	return n
}
