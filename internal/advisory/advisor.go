// Package advisory asks an LLM for decisions and narration. Every method
// degrades to an empty result when no model is configured or the call fails,
// so callers always have a deterministic fallback.
package advisory

import (
	"context"
	"sort"
	"strings"
	"time"

	"hermitbase/internal/life"
	"hermitbase/internal/logging"
	"hermitbase/internal/molt"
	"hermitbase/internal/state"
)

// Completer is a text generation backend.
type Completer interface {
	Complete(ctx context.Context, system, prompt string, maxTokens int) (string, error)
}

// DefaultActionHints is the vocabulary offered to the model for action choice.
func DefaultActionHints() map[string]string {
	return map[string]string{
		"breathe":       "send tiny ETH to myself, meditative",
		"gift":          "send tiny ETH to a random address, generous",
		"observe":       "check how many shells exist, contemplative",
		"self-transfer": "send 0.0001 ETH to myself, routine",
	}
}

// Advisor wraps a Completer with the agent's prompts.
type Advisor struct {
	completer   Completer
	hints       map[string]string
	explorerURL string
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// New creates an advisor. A nil completer yields an advisor that never advises.
func New(completer Completer, explorerURL string) *Advisor {
	return &Advisor{
		completer:   completer,
		hints:       DefaultActionHints(),
		explorerURL: strings.TrimRight(explorerURL, "/"),
	}
}

// Available reports whether a backend is configured.
func (a *Advisor) Available() bool { return a != nil && a.completer != nil }

func (a *Advisor) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *Advisor) txURL(hash string) string {
	if hash == "" || a.explorerURL == "" {
		return ""
	}
	return a.explorerURL + "/tx/" + hash
}

func (a *Advisor) ask(ctx context.Context, kind, prompt string, maxTokens int) string {
	if !a.Available() {
		logging.AdvisoryDebug("No LLM configured, skipping %s", kind)
		return ""
	}
	start := time.Now()
	out, err := a.completer.Complete(ctx, systemPrompt, prompt, maxTokens)
	if err != nil {
		logging.Get(logging.CategoryAdvisory).Warn("%s failed after %v: %v", kind, time.Since(start), err)
		return ""
	}
	logging.AdvisoryDebug("%s completed in %v (%d chars)", kind, time.Since(start), len(out))
	return strings.TrimSpace(out)
}

// AdviseAction returns an action word the life registry understands, or "".
func (a *Advisor) AdviseAction(ctx context.Context, st *state.LifecycleState, balance string) string {
	out := a.ask(ctx, "action advice", actionPrompt(st, a.now(), balance, a.hints), actionTokens)
	choice := ParseAction(out, a.hints)
	if out != "" && choice == "" {
		logging.AdvisoryDebug("Discarding unrecognized action advice %q", out)
	}
	return choice
}

// AdviseTransition returns a definite molt decision, or nil when the model is
// unavailable or its answer is neither yes nor no.
func (a *Advisor) AdviseTransition(ctx context.Context, st *state.LifecycleState) *bool {
	return ParseYesNo(a.ask(ctx, "molt advice", transitionPrompt(st, a.now()), transitionTokens))
}

// ComposeAnnouncement writes the periodic cast about res.
func (a *Advisor) ComposeAnnouncement(ctx context.Context, st *state.LifecycleState, res life.Result) string {
	return a.ask(ctx, "announcement", announcementPrompt(st, a.now(), res, a.txURL(res.EffectID)), castTokens)
}

// ComposeTransitionAnnouncement writes the molt cast for sum.
func (a *Advisor) ComposeTransitionAnnouncement(ctx context.Context, sum molt.Summary) string {
	return a.ask(ctx, "molt announcement", transitionAnnouncementPrompt(sum, a.txURL(sum.MintTxHash)), moltCastTokens)
}

// ComposeReply answers a mention.
func (a *Advisor) ComposeReply(ctx context.Context, text, author string, st *state.LifecycleState) string {
	return a.ask(ctx, "reply", replyPrompt(text, author, st, a.now()), replyTokens)
}

// ParseAction normalizes a model answer to one of the allowed choices.
func ParseAction(out string, allowed map[string]string) string {
	word := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r == '-':
			return r
		}
		return -1
	}, strings.ToLower(out))
	if _, ok := allowed[word]; ok {
		return word
	}
	return ""
}

// ParseYesNo reads a leading yes or no; anything else is indeterminate.
func ParseYesNo(out string) *bool {
	fields := strings.FieldsFunc(strings.ToLower(out), func(r rune) bool {
		return r < 'a' || r > 'z'
	})
	if len(fields) == 0 {
		return nil
	}
	var v bool
	switch fields[0] {
	case "yes":
		v = true
	case "no":
		v = false
	default:
		return nil
	}
	return &v
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
