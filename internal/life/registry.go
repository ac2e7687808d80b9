// Package life chooses and performs the agent's small on-chain actions.
package life

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"hermitbase/internal/ledger"
	"hermitbase/internal/logging"
)

// ErrUnknownAction is returned when a name resolves to no registered action.
var ErrUnknownAction = errors.New("unknown action")

// Rand is the randomness the selector draws from. *math/rand.Rand satisfies it.
type Rand interface {
	Intn(n int) int
}

// Result is what one performed action produced. EffectID is empty for
// read-only actions, which then move no value.
type Result struct {
	Action      string
	Description string
	EffectID    string
	Value       *big.Int
}

// HasEffect reports whether the action changed ledger state.
func (r Result) HasEffect() bool { return r.EffectID != "" }

// Performer executes an action against a wallet.
type Performer func(ctx context.Context, w ledger.Handle) (Result, error)

// Action is a registry entry.
type Action struct {
	Name    string
	Weight  int
	Perform Performer
}

// Registry holds the weighted actions and the advisory vocabulary mapping
// onto them.
type Registry struct {
	actions []Action
	aliases map[string]string
	rng     Rand
}

// NewRegistry creates an empty registry drawing from rng.
func NewRegistry(rng Rand) *Registry {
	return &Registry{aliases: make(map[string]string), rng: rng}
}

// Register adds an action. Its name is always a valid choice.
func (r *Registry) Register(a Action) error {
	if a.Name == "" || a.Perform == nil {
		return fmt.Errorf("action needs a name and a performer")
	}
	if a.Weight <= 0 {
		return fmt.Errorf("action %s: weight must be positive, got %d", a.Name, a.Weight)
	}
	if _, exists := r.aliases[a.Name]; exists {
		return fmt.Errorf("action %s already registered", a.Name)
	}
	r.actions = append(r.actions, a)
	r.aliases[a.Name] = a.Name
	return nil
}

// Alias lets alias select the action called name.
func (r *Registry) Alias(alias, name string) error {
	if _, ok := r.find(name); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAction, name)
	}
	r.aliases[alias] = name
	return nil
}

// Lookup resolves a canonical name or alias.
func (r *Registry) Lookup(choice string) (Action, bool) {
	name, ok := r.aliases[strings.ToLower(strings.TrimSpace(choice))]
	if !ok {
		return Action{}, false
	}
	return r.find(name)
}

// Choices lists every accepted choice word, sorted.
func (r *Registry) Choices() []string {
	out := make([]string, 0, len(r.aliases))
	for alias := range r.aliases {
		out = append(out, alias)
	}
	sort.Strings(out)
	return out
}

// Actions returns the registered actions in registration order.
func (r *Registry) Actions() []Action {
	return append([]Action(nil), r.actions...)
}

func (r *Registry) find(name string) (Action, bool) {
	for _, a := range r.actions {
		if a.Name == name {
			return a, true
		}
	}
	return Action{}, false
}

// Pick selects the action for this iteration. A known choice wins outright;
// anything else falls through to a weighted draw in which each action holds
// as many slots as its weight.
func (r *Registry) Pick(choice string) (Action, error) {
	if choice != "" {
		if a, ok := r.Lookup(choice); ok {
			return a, nil
		}
		logging.LifeDebug("Ignoring unknown advisory choice %q", choice)
	}
	total := 0
	for _, a := range r.actions {
		total += a.Weight
	}
	if total == 0 {
		return Action{}, fmt.Errorf("%w: registry is empty", ErrUnknownAction)
	}
	slot := r.rng.Intn(total)
	for _, a := range r.actions {
		if slot < a.Weight {
			return a, nil
		}
		slot -= a.Weight
	}
	return r.actions[len(r.actions)-1], nil
}

// SelectAndPerform picks an action and runs it. A ledger failure is returned
// unchanged; nothing is recorded on failure.
func (r *Registry) SelectAndPerform(ctx context.Context, w ledger.Handle, choice string) (Result, error) {
	a, err := r.Pick(choice)
	if err != nil {
		return Result{}, err
	}
	logging.Life("Performing action: %s", a.Name)
	res, err := a.Perform(ctx, w)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", a.Name, err)
	}
	res.Action = a.Name
	if res.Value == nil || !res.HasEffect() {
		res.Value = new(big.Int)
	}
	return res, nil
}
