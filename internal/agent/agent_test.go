package agent

import (
	"context"
	"errors"
	"math/big"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"hermitbase/internal/config"
	"hermitbase/internal/ledger"
	"hermitbase/internal/life"
	"hermitbase/internal/molt"
	"hermitbase/internal/social"
	"hermitbase/internal/state"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var bornAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

const (
	loopSleep    = 10 * time.Minute
	errorBackoff = 2 * time.Minute
	replyPause   = 2 * time.Second
	threadPause  = 3 * time.Second
)

func testTuning() config.Tuning {
	return config.Tuning{
		TxMin:          10,
		TxMax:          20,
		TimeMin:        2 * time.Hour,
		TimeMax:        4 * time.Hour,
		SleepMin:       loopSleep,
		SleepMax:       loopSleep,
		ErrorBackoff:   errorBackoff,
		AnnounceEvery:  3,
		MentionReplies: 3,
		ReplyPause:     replyPause,
		ThreadPause:    threadPause,
	}
}

type harness struct {
	store    *MockStore
	keyring  *MockKeyring
	selector *MockSelector
	engine   *MockEngine
	molter   *MockMolter
	advisor  *MockAdvisor
	social   *MockSocial
	archive  *MockRecorder
	clock    *loopClock

	oldWallet *MockHandle
	newWallet *MockHandle
	deps      Deps
}

func newHarness() *harness {
	h := &harness{
		store:     &MockStore{},
		selector:  &MockSelector{},
		engine:    &MockEngine{Decision: molt.Decision{Reason: "not yet time"}},
		molter:    &MockMolter{},
		advisor:   &MockAdvisor{},
		social:    &MockSocial{},
		archive:   &MockRecorder{},
		clock:     &loopClock{iterations: 1},
		oldWallet: &MockHandle{Addr: "0x00000000000000000000000000000000000000aa"},
		newWallet: &MockHandle{Addr: "0x00000000000000000000000000000000000000bb"},
	}
	h.keyring = &MockKeyring{Wallets: map[int]ledger.Handle{0: h.oldWallet, 1: h.newWallet}}
	rng := rand.New(rand.NewSource(7))
	h.deps = Deps{
		Store:     h.store,
		Keyring:   h.keyring,
		Actions:   h.selector,
		Engine:    h.engine,
		Molter:    h.molter,
		Advisor:   h.advisor,
		Social:    h.social,
		Templates: social.NewTemplates(rng, "https://sepolia.basescan.org"),
		Archive:   h.archive,
		Tuning:    testTuning(),
		Rand:      rng,
		Now:       func() time.Time { return bornAt.Add(time.Hour) },
		Sleep:     func(ctx context.Context, d time.Duration) error { return nil },
	}
	return h
}

// run executes the agent for the given number of loop passes.
func (h *harness) run(t *testing.T, iterations int) *Agent {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.clock.cancel = cancel
	h.clock.iterations = iterations
	h.deps.Sleep = h.clock.Sleep

	a, err := New(h.deps)
	require.NoError(t, err)
	require.NoError(t, a.Run(ctx))
	return a
}

func boolPtr(v bool) *bool { return &v }

func TestNew_MissingDependencies(t *testing.T) {
	_, err := New(Deps{Tuning: testTuning()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Store")
	assert.Contains(t, err.Error(), "Keyring")
}

func TestNew_RejectsInvalidTuning(t *testing.T) {
	h := newHarness()
	h.deps.Tuning.AnnounceEvery = 0
	_, err := New(h.deps)
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestRun_ActsAndPersistsOnShutdown(t *testing.T) {
	h := newHarness()
	a := h.run(t, 2)

	assert.Equal(t, 2, a.Iterations())
	assert.Len(t, h.selector.Choices, 2)

	last := h.store.Last()
	require.NotNil(t, last)
	assert.Equal(t, 2, last.ActionCount)
	assert.Equal(t, new(big.Int).Mul(ledger.MicroEth, big.NewInt(2)).String(), last.TotalValueMoved.String())
	assert.Equal(t, 2, last.ActionsSinceAnnouncement)
	assert.Equal(t, 0, last.GenerationIndex)

	require.Len(t, h.social.Posts, 1)
	assert.Contains(t, h.social.Posts[0].Text, "awakens in shell #0")
	assert.Len(t, h.archive.Actions, 2)
	assert.Equal(t, 2, h.clock.count(loopSleep))
}

func TestRun_StartupAnnouncesResume(t *testing.T) {
	h := newHarness()
	h.store.Initial = state.Default(bornAt)
	h.store.Initial.GenerationIndex = 1
	h.store.Initial.ActionCount = 4
	h.run(t, 1)

	require.NotEmpty(t, h.social.Posts)
	assert.Contains(t, h.social.Posts[0].Text, "resumes in shell #1")
	assert.Contains(t, h.social.Posts[0].Text, "4 transactions so far")
}

func TestRun_AdvisoryActionChoiceIsPassedThrough(t *testing.T) {
	h := newHarness()
	h.advisor.ActionFunc = func() string { return "breathe" }
	h.run(t, 1)

	assert.Equal(t, []string{"breathe"}, h.selector.Choices)
}

func TestRun_ReadOnlyActionDoesNotCount(t *testing.T) {
	h := newHarness()
	h.selector.Func = func(string) (life.Result, error) {
		return life.Result{Action: life.ObserveShells, Description: "Observed", Value: new(big.Int)}, nil
	}
	h.run(t, 2)

	last := h.store.Last()
	assert.Equal(t, 0, last.ActionCount)
	assert.True(t, last.TotalValueMoved.IsZero())
	assert.Equal(t, 2, last.ActionsSinceAnnouncement)
}

func TestRun_AnnouncesOnCadence(t *testing.T) {
	h := newHarness()
	h.advisor.AnnouncementFunc = func(res life.Result) string { return "hello from the shell: " + res.EffectID }
	h.run(t, 3)

	require.Len(t, h.social.Posts, 2)
	assert.Equal(t, "hello from the shell: 0xtx3", h.social.Posts[1].Text)
	assert.Equal(t, 0, h.store.Last().ActionsSinceAnnouncement)
	assert.Equal(t, 3, h.store.Last().ActionCount)
}

func TestRun_AnnouncementFallsBackToTemplate(t *testing.T) {
	h := newHarness()
	h.run(t, 3)

	require.Len(t, h.social.Posts, 2)
	assert.NotEmpty(t, h.social.Posts[1].Text)
	assert.Equal(t, 0, h.store.Last().ActionsSinceAnnouncement)
}

func TestRun_FailedAnnouncementStillResetsCadence(t *testing.T) {
	h := newHarness()
	h.social.PostFail = true
	h.run(t, 3)

	assert.Equal(t, 0, h.store.Last().ActionsSinceAnnouncement)
}

func TestIteration_DefiniteAdviceBypassesEngine(t *testing.T) {
	tests := []struct {
		name      string
		advice    bool
		wantMolts int
		wantGen   int
	}{
		{name: "molt", advice: true, wantMolts: 1, wantGen: 1},
		{name: "stay", advice: false, wantMolts: 0, wantGen: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			h.advisor.TransitionFunc = func() *bool { return boolPtr(tt.advice) }
			h.engine.Decision = molt.Decision{ShouldMolt: !tt.advice, Reason: "rule says otherwise"}
			h.run(t, 1)

			assert.Equal(t, 0, h.engine.Calls)
			assert.Equal(t, tt.wantMolts, h.molter.Calls)
			assert.Equal(t, tt.wantGen, h.store.Last().GenerationIndex)
		})
	}
}

func TestIteration_IndeterminateAdviceUsesEngine(t *testing.T) {
	h := newHarness()
	h.engine.Decision = molt.Decision{ShouldMolt: true, Reason: "action threshold reached (25 >= 20)"}
	h.run(t, 1)

	assert.Equal(t, 1, h.engine.Calls)
	assert.Equal(t, 1, h.molter.Calls)
}

func TestIteration_MoltAppliesTransition(t *testing.T) {
	h := newHarness()
	h.store.Initial = state.Default(bornAt)
	h.store.Initial.ActionCount = 11
	h.store.Initial.TotalValueMoved = state.NewAmount(big.NewInt(123456))
	h.store.Initial.TotalTransitions = 4
	h.advisor.TransitionFunc = func() *bool { return boolPtr(true) }

	a := h.run(t, 1)

	last := h.store.Last()
	assert.Equal(t, 1, last.GenerationIndex)
	assert.Equal(t, 0, last.ActionCount)
	assert.True(t, last.TotalValueMoved.IsZero())
	assert.Equal(t, 0, last.ActionsSinceAnnouncement)
	assert.Equal(t, 5, last.TotalTransitions)
	assert.Equal(t, bornAt.Add(time.Hour), last.GenerationStartedAt)

	assert.Equal(t, []int{0}, h.keyring.NextCalls)
	assert.Equal(t, h.newWallet.Address(), a.Wallet().Address())

	require.Len(t, h.archive.Shells, 1)
	assert.Equal(t, 12, h.archive.Shells[0].ActionCount)
	assert.Equal(t, h.oldWallet.Address(), h.archive.Shells[0].OutgoingAddress)
	assert.Equal(t, h.newWallet.Address(), h.archive.Shells[0].IncomingAddress)
}

func TestIteration_MoltWithoutMintStillAdvances(t *testing.T) {
	h := newHarness()
	h.advisor.TransitionFunc = func() *bool { return boolPtr(true) }
	h.molter.ExecuteFunc = func(st *state.LifecycleState, outgoing, incoming ledger.Handle) (molt.Summary, error) {
		return molt.Summary{
			OutgoingGeneration: st.GenerationIndex,
			IncomingGeneration: st.GenerationIndex + 1,
			OutgoingAddress:    outgoing.Address(),
			IncomingAddress:    incoming.Address(),
			MintError:          "execution reverted",
			LifeSummary:        "Shell #0 lived 1.0h",
		}, nil
	}
	h.run(t, 1)

	assert.Equal(t, 1, h.store.Last().GenerationIndex)
	var shed *post
	for i := range h.social.Posts {
		if strings.Contains(h.social.Posts[i].Text, "has been shed") {
			shed = &h.social.Posts[i]
		}
	}
	require.NotNil(t, shed)
	assert.NotContains(t, shed.Text, "ShellNFT:")
}

func TestIteration_TransitionThreadFallback(t *testing.T) {
	h := newHarness()
	h.advisor.TransitionFunc = func() *bool { return boolPtr(true) }
	h.run(t, 1)

	// awakening, shed cast, reflection reply
	require.Len(t, h.social.Posts, 3)
	assert.Contains(t, h.social.Posts[1].Text, "Shell #0 has been shed.")
	assert.Contains(t, h.social.Posts[1].Text, "ShellNFT: https://sepolia.basescan.org/tx/0xmint")
	assert.Empty(t, h.social.Posts[1].Parent)
	assert.Equal(t, "0xcast2", h.social.Posts[2].Parent)
	assert.Equal(t, 1, h.clock.count(threadPause))
}

func TestIteration_AdvisorTransitionText(t *testing.T) {
	h := newHarness()
	h.advisor.TransitionFunc = func() *bool { return boolPtr(true) }
	h.advisor.TransitionTextFun = func(sum molt.Summary) string { return "shed shell #0, minted " + sum.MintTxHash }
	h.run(t, 1)

	require.Len(t, h.social.Posts, 2)
	assert.Equal(t, "shed shell #0, minted 0xmint", h.social.Posts[1].Text)
	assert.Equal(t, 0, h.clock.count(threadPause))
}

func TestRun_ActionFailureBacksOffWithoutMutation(t *testing.T) {
	h := newHarness()
	h.selector.Func = func(string) (life.Result, error) {
		return life.Result{}, errors.New("insufficient funds for gas")
	}
	a := h.run(t, 1)

	assert.Equal(t, 1, a.Iterations())
	assert.Equal(t, 1, h.clock.count(errorBackoff))
	assert.Equal(t, 0, h.clock.count(loopSleep))

	last := h.store.Last()
	require.NotNil(t, last)
	assert.Equal(t, 0, last.ActionCount)
	assert.Equal(t, 0, last.ActionsSinceAnnouncement)
	assert.Equal(t, 0, h.molter.Calls)
	assert.Equal(t, 0, h.social.Fetches)
	// error-path save plus the shutdown save
	assert.Equal(t, 2, h.store.Attempts)
}

func TestRun_PanicInIterationIsRecovered(t *testing.T) {
	h := newHarness()
	h.selector.Func = func(string) (life.Result, error) { panic("nil wallet") }
	h.run(t, 1)

	assert.Equal(t, 1, h.clock.count(errorBackoff))
}

func TestIteration_MoltFailureKeepsGeneration(t *testing.T) {
	h := newHarness()
	h.advisor.TransitionFunc = func() *bool { return boolPtr(true) }
	h.molter.ExecuteFunc = func(*state.LifecycleState, ledger.Handle, ledger.Handle) (molt.Summary, error) {
		return molt.Summary{}, errors.New("rpc unavailable")
	}
	a := h.run(t, 1)

	last := h.store.Last()
	assert.Equal(t, 0, last.GenerationIndex)
	assert.Equal(t, 1, last.ActionCount)
	assert.Equal(t, h.oldWallet.Address(), a.Wallet().Address())
	assert.Equal(t, 1, h.clock.count(errorBackoff))
}

func TestIteration_RepliesToAtMostThreeNewMentions(t *testing.T) {
	h := newHarness()
	h.store.Initial = state.Default(bornAt)
	h.store.Initial.Acknowledge("m2", bornAt)
	h.social.Mentions = []social.Mention{
		{ID: "m1", Text: "hi crab", AuthorHandle: "alice"},
		{ID: "m2", Text: "seen already", AuthorHandle: "bob"},
		{ID: "m3", Text: "gm", AuthorHandle: "carol"},
		{ID: "m4", Text: "how old are you", AuthorHandle: "dave"},
		{ID: "m5", Text: "too late", AuthorHandle: "erin"},
	}
	h.advisor.ReplyFunc = func(text, author string) string { return "@" + author + " hello" }
	h.run(t, 1)

	var parents []string
	for _, p := range h.social.Posts {
		if p.Parent != "" {
			parents = append(parents, p.Parent)
		}
	}
	assert.Equal(t, []string{"m1", "m3", "m4"}, parents)
	assert.Equal(t, []string{"m2", "m1", "m3", "m4"}, h.store.Last().AcknowledgedEventIDs)
	assert.NotNil(t, h.store.Last().LastExternalEventTimestamp)
	assert.Equal(t, 2, h.clock.count(replyPause))
}

func TestIteration_UnansweredMentionIsAcknowledged(t *testing.T) {
	h := newHarness()
	h.social.Mentions = []social.Mention{{ID: "m1", Text: "hi", AuthorHandle: "alice"}}
	h.run(t, 1)

	assert.Len(t, h.social.Posts, 1) // awakening only
	assert.Equal(t, []string{"m1"}, h.store.Last().AcknowledgedEventIDs)
}

func TestRun_SaveFailureRetriedAtBoundary(t *testing.T) {
	h := newHarness()
	h.store.SaveFunc = func(attempt int) error {
		if attempt == 1 {
			return errors.New("disk full")
		}
		return nil
	}
	h.run(t, 2)

	// failed save, boundary retry, second action, shutdown
	assert.Equal(t, 4, h.store.Attempts)
	assert.Equal(t, 1, h.store.Saved[0].ActionCount)
	assert.Equal(t, 2, h.store.Last().ActionCount)
}

func TestRun_AppliesReloadedTuning(t *testing.T) {
	h := newHarness()
	reloaded := testTuning()
	reloaded.AnnounceEvery = 1
	reloaded.TxMin = 5
	reloaded.TxMax = 8
	h.deps.Reload = &MockTuning{Value: reloaded}
	h.advisor.AnnouncementFunc = func(life.Result) string { return "every time" }
	h.run(t, 1)

	require.Len(t, h.engine.Thresholds, 1)
	assert.Equal(t, 5, h.engine.Thresholds[0].TxMin)
	assert.Equal(t, 8, h.engine.Thresholds[0].TxMax)
	require.Len(t, h.social.Posts, 2)
	assert.Equal(t, "every time", h.social.Posts[1].Text)
}

func TestRun_IgnoresInvalidReloadedTuning(t *testing.T) {
	h := newHarness()
	reloaded := testTuning()
	reloaded.TxMax = 1
	h.deps.Reload = &MockTuning{Value: reloaded}
	h.run(t, 1)

	assert.Empty(t, h.engine.Thresholds)
}

func TestRun_CancelledBeforeStartStillSaves(t *testing.T) {
	h := newHarness()
	a, err := New(h.deps)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, a.Run(ctx))

	assert.Equal(t, 0, a.Iterations())
	assert.Equal(t, 1, h.store.Attempts)
}

func TestRun_FinalSaveFailureIsReported(t *testing.T) {
	h := newHarness()
	h.store.SaveFunc = func(int) error { return errors.New("read-only filesystem") }
	a, err := New(h.deps)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, a.Run(ctx))
}
