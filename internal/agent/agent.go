// Package agent runs the hermit's control loop: act, announce, maybe molt,
// answer mentions, sleep. It is the only writer of the lifecycle state.
package agent

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"

	"hermitbase/internal/config"
	"hermitbase/internal/ledger"
	"hermitbase/internal/life"
	"hermitbase/internal/logging"
	"hermitbase/internal/molt"
	"hermitbase/internal/social"
	"hermitbase/internal/state"
	"hermitbase/internal/telemetry"
)

// Store persists the lifecycle state.
type Store interface {
	Load() *state.LifecycleState
	Save(st *state.LifecycleState) error
}

// Selector picks and performs one action.
type Selector interface {
	SelectAndPerform(ctx context.Context, w ledger.Handle, choice string) (life.Result, error)
}

// Evaluator is the rule-based molt check.
type Evaluator interface {
	Evaluate(st *state.LifecycleState, now time.Time) molt.Decision
}

// ThresholdSetter is implemented by evaluators that accept reloaded tuning.
type ThresholdSetter interface {
	SetThresholds(t molt.Thresholds) error
}

// Transitioner performs the molt side effects.
type Transitioner interface {
	Execute(ctx context.Context, st *state.LifecycleState, outgoing, incoming ledger.Handle) (molt.Summary, error)
}

// Advisor supplies optional LLM decisions and text. Empty strings and nil
// mean no advice.
type Advisor interface {
	AdviseAction(ctx context.Context, st *state.LifecycleState, balance string) string
	AdviseTransition(ctx context.Context, st *state.LifecycleState) *bool
	ComposeAnnouncement(ctx context.Context, st *state.LifecycleState, res life.Result) string
	ComposeTransitionAnnouncement(ctx context.Context, sum molt.Summary) string
	ComposeReply(ctx context.Context, text, author string, st *state.LifecycleState) string
}

// Recorder journals actions and shells. Failures are logged only.
type Recorder interface {
	RecordAction(ctx context.Context, generation int, res life.Result, at time.Time) error
	RecordShell(ctx context.Context, sum molt.Summary) error
}

// TuningSource yields the latest reloadable settings.
type TuningSource interface {
	Tuning() config.Tuning
}

// Rand draws sleep jitter.
type Rand interface {
	Int63n(n int64) int64
}

// Deps are the agent's collaborators. Archive, Reload and Tracer are optional.
type Deps struct {
	Store     Store
	Keyring   ledger.Keyring
	Actions   Selector
	Engine    Evaluator
	Molter    Transitioner
	Advisor   Advisor
	Social    social.Client
	Templates *social.Templates
	Archive   Recorder
	Tuning    config.Tuning
	Reload    TuningSource
	Tracer    trace.Tracer
	Rand      Rand

	// Now and Sleep default to the wall clock and a context-aware timer.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// Agent owns the in-memory lifecycle state between iterations.
type Agent struct {
	deps   Deps
	tuning config.Tuning
	tracer trace.Tracer

	st     *state.LifecycleState
	wallet ledger.Handle
	// unsaved is set when a save failed; the next boundary retries it.
	unsaved bool
	// iterations counts completed or failed iterations.
	iterations int
}

// New validates deps and creates an agent. State is loaded by Run.
func New(deps Deps) (*Agent, error) {
	var missing []string
	if deps.Store == nil {
		missing = append(missing, "Store")
	}
	if deps.Keyring == nil {
		missing = append(missing, "Keyring")
	}
	if deps.Actions == nil {
		missing = append(missing, "Actions")
	}
	if deps.Engine == nil {
		missing = append(missing, "Engine")
	}
	if deps.Molter == nil {
		missing = append(missing, "Molter")
	}
	if deps.Advisor == nil {
		missing = append(missing, "Advisor")
	}
	if deps.Social == nil {
		missing = append(missing, "Social")
	}
	if deps.Templates == nil {
		missing = append(missing, "Templates")
	}
	if deps.Rand == nil {
		missing = append(missing, "Rand")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("agent: missing dependencies: %v", missing)
	}
	if err := deps.Tuning.Validate(); err != nil {
		return nil, fmt.Errorf("agent: %w", err)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Sleep == nil {
		deps.Sleep = sleepContext
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = telemetry.Tracer()
	}
	return &Agent{deps: deps, tuning: deps.Tuning, tracer: tracer}, nil
}

// State returns a copy of the current lifecycle state.
func (a *Agent) State() *state.LifecycleState {
	if a.st == nil {
		return nil
	}
	return a.st.Clone()
}

// Wallet returns the active wallet handle.
func (a *Agent) Wallet() ledger.Handle { return a.wallet }

// Iterations returns how many iterations have run.
func (a *Agent) Iterations() int { return a.iterations }

// Run drives STARTUP then ACTIVE until ctx is cancelled, then persists and
// returns nil. Recoverable iteration errors never end the loop.
func (a *Agent) Run(ctx context.Context) (err error) {
	// A panic outside an iteration still gets a best-effort save.
	defer func() {
		if r := recover(); r != nil {
			logging.Get(logging.CategoryLoop).Error("PANIC escaped agent loop: %v", r)
			a.persist()
			panic(r)
		}
	}()

	a.startup(ctx)

	for {
		if ctx.Err() != nil {
			return a.shutdown()
		}
		a.boundary()

		iterErr := a.runIteration(ctx)
		a.iterations++

		var pause time.Duration
		if iterErr != nil {
			if ctx.Err() != nil {
				return a.shutdown()
			}
			logging.Get(logging.CategoryLoop).Error("Error in main loop: %v", iterErr)
			a.persist()
			pause = a.tuning.ErrorBackoff
			logging.Loop("Backing off for %s", pause)
		} else {
			pause = a.jitter()
			logging.Loop("Sleeping %.1f minutes", pause.Minutes())
		}

		if err := a.deps.Sleep(ctx, pause); err != nil {
			return a.shutdown()
		}
	}
}

func (a *Agent) startup(ctx context.Context) {
	a.st = a.deps.Store.Load()
	a.wallet = a.deps.Keyring.Current(a.st.GenerationIndex)
	logging.Boot("State loaded: shell #%d, %d txs", a.st.GenerationIndex, a.st.ActionCount)
	logging.Boot("Current wallet: %s", a.wallet.Address())

	balance, err := a.wallet.Balance(ctx, a.wallet.Address())
	switch {
	case err != nil:
		logging.Get(logging.CategoryBoot).Warn("Could not read wallet balance: %v", err)
	case balance.Sign() == 0:
		logging.Get(logging.CategoryBoot).Warn("Wallet has 0 ETH. Fund %s; read-only actions will still work", a.wallet.Address())
	default:
		logging.Boot("Balance: %s ETH", ledger.FormatEth(balance, 6))
	}

	msg := a.deps.Templates.Awakening(a.st.GenerationIndex, a.st.ActionCount, a.wallet.Address())
	if _, ok := a.deps.Social.Post(ctx, msg, ""); ok {
		logging.Boot("Awakening announced")
	}
}

func (a *Agent) shutdown() error {
	logging.Boot("Shutting down, persisting state")
	if err := a.deps.Store.Save(a.st); err != nil {
		logging.Get(logging.CategoryBoot).Error("Final state save failed: %v", err)
		return fmt.Errorf("final save: %w", err)
	}
	a.unsaved = false
	logging.Boot("State saved. Goodbye.")
	return nil
}

// boundary runs between iterations: retry a failed save and pick up
// reloaded tuning.
func (a *Agent) boundary() {
	if a.unsaved {
		logging.LoopDebug("Retrying state save from a previous failure")
		a.persist()
	}
	if a.deps.Reload == nil {
		return
	}
	next := a.deps.Reload.Tuning()
	if next == a.tuning {
		return
	}
	if err := next.Validate(); err != nil {
		logging.Get(logging.CategoryLoop).Warn("Ignoring reloaded tuning: %v", err)
		return
	}
	if setter, ok := a.deps.Engine.(ThresholdSetter); ok {
		t := molt.Thresholds{TxMin: next.TxMin, TxMax: next.TxMax, AgeMin: next.TimeMin, AgeMax: next.TimeMax}
		if err := setter.SetThresholds(t); err != nil {
			logging.Get(logging.CategoryLoop).Warn("Ignoring reloaded molt thresholds: %v", err)
			return
		}
	}
	a.tuning = next
	logging.Loop("Applied reloaded tuning")
}

// persist saves the state; failures are logged and retried at the next boundary.
func (a *Agent) persist() {
	if a.st == nil {
		return
	}
	if err := a.deps.Store.Save(a.st); err != nil {
		a.unsaved = true
		logging.Get(logging.CategoryState).Error("Failed to persist state: %v", err)
		return
	}
	a.unsaved = false
}

func (a *Agent) jitter() time.Duration {
	lo, hi := a.tuning.SleepMin, a.tuning.SleepMax
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(a.deps.Rand.Int63n(int64(hi-lo)+1))
}

func (a *Agent) now() time.Time { return a.deps.Now() }

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
