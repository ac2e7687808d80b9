package agent

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"hermitbase/internal/ledger"
	"hermitbase/internal/life"
	"hermitbase/internal/logging"
	"hermitbase/internal/molt"
)

// errPanic wraps a value recovered from an iteration.
var errPanic = errors.New("iteration panicked")

// runIteration performs steps (a) through (e) of one loop pass. Sleeping is
// left to Run. A panic is converted into an error so the loop backs off
// instead of dying.
func (a *Agent) runIteration(ctx context.Context) (err error) {
	id := uuid.NewString()
	ctx, span := a.tracer.Start(ctx, "agent.iteration", trace.WithAttributes(
		attribute.String("iteration.id", id),
		attribute.Int("shell.generation", a.st.GenerationIndex),
	))
	log := logging.Get(logging.CategoryLoop).With(zap.String("iteration", id))

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errPanic, r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	res, err := a.act(ctx, log)
	if err != nil {
		return err
	}

	if a.st.ActionsSinceAnnouncement >= a.tuning.AnnounceEvery {
		a.announce(ctx, res)
	}

	if a.decideMolt(ctx, log) {
		if err := a.molt(ctx, log); err != nil {
			return err
		}
	}

	a.answerMentions(ctx, log)
	return nil
}

// act is step (a) and (b): choose, perform, record, persist.
func (a *Agent) act(ctx context.Context, log *logging.Logger) (life.Result, error) {
	balance, balErr := a.wallet.Balance(ctx, a.wallet.Address())
	choice := a.deps.Advisor.AdviseAction(ctx, a.st, balanceString(balance, balErr))
	if choice != "" {
		log.Info("Advisor chose: %s", choice)
	}

	res, err := a.deps.Actions.SelectAndPerform(ctx, a.wallet, choice)
	if err != nil {
		return life.Result{}, fmt.Errorf("action failed: %w", err)
	}
	log.Info("Action: %s", res.Description)
	if res.HasEffect() {
		log.Info("Tx: %s", res.EffectID)
	}

	a.st.RecordAction(res.EffectID, res.Value)
	a.persist()

	if a.deps.Archive != nil {
		if err := a.deps.Archive.RecordAction(ctx, a.st.GenerationIndex, res, a.now()); err != nil {
			logging.Get(logging.CategoryArchive).Warn("Failed to journal action: %v", err)
		}
	}
	return res, nil
}

// announce is step (c).
func (a *Agent) announce(ctx context.Context, res life.Result) {
	text := a.deps.Advisor.ComposeAnnouncement(ctx, a.st, res)
	if text == "" {
		text = a.deps.Templates.Update(a.st.GenerationIndex, a.st.ActionCount, res.Description, res.EffectID)
	} else {
		logging.LoopDebug("Using advisor announcement")
	}
	a.deps.Social.Post(ctx, text, "")

	// The cadence resets whether or not the post went through.
	a.st.MarkAnnounced()
	a.persist()
}

// decideMolt is the first half of step (d). A definite advisory answer is
// final and the rule engine is not consulted.
func (a *Agent) decideMolt(ctx context.Context, log *logging.Logger) bool {
	if advice := a.deps.Advisor.AdviseTransition(ctx, a.st); advice != nil {
		if *advice {
			log.Info("Advisor molt decision: MOLT")
		} else {
			log.Info("Advisor molt decision: stay")
		}
		return *advice
	}
	d := a.deps.Engine.Evaluate(a.st, a.now())
	log.Info("Rule-based molt check: %s", d.Reason)
	return d.ShouldMolt
}

// molt is the second half of step (d): side effects first, then the state
// commit, then the announcement.
func (a *Agent) molt(ctx context.Context, log *logging.Logger) error {
	log.Info("=== MOLT INITIATED ===")
	incoming := a.deps.Keyring.Next(a.st.GenerationIndex)

	sum, err := a.deps.Molter.Execute(ctx, a.st, a.wallet, incoming)
	if err != nil {
		return fmt.Errorf("molt failed: %w", err)
	}

	if a.deps.Archive != nil {
		if err := a.deps.Archive.RecordShell(ctx, sum); err != nil {
			logging.Get(logging.CategoryArchive).Warn("Failed to archive shell #%d: %v", sum.OutgoingGeneration, err)
		}
	}

	if err := a.st.BeginGeneration(sum.IncomingGeneration, a.now()); err != nil {
		return fmt.Errorf("apply molt: %w", err)
	}
	a.persist()

	a.wallet = a.deps.Keyring.Current(a.st.GenerationIndex)
	log.Info("Now inhabiting shell #%d at %s", a.st.GenerationIndex, a.wallet.Address())

	a.announceTransition(ctx, sum)
	return nil
}

func (a *Agent) announceTransition(ctx context.Context, sum molt.Summary) {
	if text := a.deps.Advisor.ComposeTransitionAnnouncement(ctx, sum); text != "" {
		a.deps.Social.Post(ctx, text, "")
		return
	}

	cast := a.deps.Templates.Transition(sum.OutgoingGeneration, sum.OutgoingAddress, sum.IncomingAddress, sum.ActionCount, sum.MintTxHash)
	hash, ok := a.deps.Social.Post(ctx, cast, "")
	if !ok || hash == "" {
		return
	}
	if err := a.deps.Sleep(ctx, a.tuning.ThreadPause); err != nil {
		return
	}
	a.deps.Social.Post(ctx, a.deps.Templates.Reflection(sum.OutgoingGeneration), hash)
}

// answerMentions is step (e). Mentions that get no reply text are still
// acknowledged so they are not retried forever.
func (a *Agent) answerMentions(ctx context.Context, log *logging.Logger) {
	mentions := a.deps.Social.FetchMentions(ctx, "")

	replied := 0
	for _, m := range mentions {
		if replied >= a.tuning.MentionReplies {
			break
		}
		if m.ID == "" || a.st.IsAcknowledged(m.ID) {
			continue
		}
		if replied > 0 {
			if err := a.deps.Sleep(ctx, a.tuning.ReplyPause); err != nil {
				break
			}
		}
		replied++

		log.Info("Replying to @%s", m.AuthorHandle)
		if text := a.deps.Advisor.ComposeReply(ctx, m.Text, m.AuthorHandle, a.st); text != "" {
			a.deps.Social.Post(ctx, text, m.ID)
		} else {
			log.Info("No reply composed for %s, skipping", m.ID)
		}
		a.st.Acknowledge(m.ID, a.now())
	}

	if replied == 0 {
		logging.LoopDebug("No new mentions")
		return
	}
	a.persist()
}

func balanceString(b *big.Int, err error) string {
	if err != nil {
		return "unknown"
	}
	return ledger.FormatEth(b, 6)
}
