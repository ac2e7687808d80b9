// Package molt decides when a shell generation ends and performs the
// transition into the next one.
package molt

import (
	"fmt"
	"time"

	"hermitbase/internal/state"
)

// Rand is the randomness thresholds are drawn from. *math/rand.Rand satisfies it.
type Rand interface {
	Intn(n int) int
	Int63n(n int64) int64
}

// Thresholds bound the randomized molt triggers. Min values also gate: no
// molt happens before TxMin actions or AgeMin of age.
type Thresholds struct {
	TxMin  int
	TxMax  int
	AgeMin time.Duration
	AgeMax time.Duration
}

// DefaultThresholds returns 10-20 actions and 2-4 hours.
func DefaultThresholds() Thresholds {
	return Thresholds{
		TxMin:  10,
		TxMax:  20,
		AgeMin: 2 * time.Hour,
		AgeMax: 4 * time.Hour,
	}
}

// Validate checks the ranges are well formed.
func (t Thresholds) Validate() error {
	if t.TxMin < 0 || t.TxMax < t.TxMin {
		return fmt.Errorf("invalid action range [%d, %d]", t.TxMin, t.TxMax)
	}
	if t.AgeMin < 0 || t.AgeMax < t.AgeMin {
		return fmt.Errorf("invalid age range [%s, %s]", t.AgeMin, t.AgeMax)
	}
	return nil
}

// Decision is the outcome of one evaluation. The thresholds are the ones
// drawn for that call; they are zero when the gate failed.
type Decision struct {
	ShouldMolt      bool
	Reason          string
	ActionThreshold int
	AgeThreshold    time.Duration
}

// Engine is the rule-based molt check.
type Engine struct {
	thresholds Thresholds
	rng        Rand
}

// NewEngine creates an engine. Invalid thresholds fall back to the defaults.
func NewEngine(t Thresholds, rng Rand) *Engine {
	if t.Validate() != nil {
		t = DefaultThresholds()
	}
	return &Engine{thresholds: t, rng: rng}
}

// Thresholds returns the active ranges.
func (e *Engine) Thresholds() Thresholds { return e.thresholds }

// SetThresholds replaces the ranges; invalid ranges are rejected.
func (e *Engine) SetThresholds(t Thresholds) error {
	if err := t.Validate(); err != nil {
		return err
	}
	e.thresholds = t
	return nil
}

// Evaluate decides whether st should molt at now. Thresholds are drawn fresh
// on every call. The action count takes priority over age.
func (e *Engine) Evaluate(st *state.LifecycleState, now time.Time) Decision {
	t := e.thresholds
	age := st.Age(now)

	if st.ActionCount < t.TxMin && age < t.AgeMin {
		return Decision{Reason: "too young and too few actions"}
	}

	actionThreshold := t.TxMin + e.rng.Intn(t.TxMax-t.TxMin+1)
	spanMs := (t.AgeMax - t.AgeMin).Milliseconds()
	ageThreshold := t.AgeMin + time.Duration(e.rng.Int63n(spanMs+1))*time.Millisecond

	d := Decision{ActionThreshold: actionThreshold, AgeThreshold: ageThreshold}
	switch {
	case st.ActionCount >= actionThreshold:
		d.ShouldMolt = true
		d.Reason = fmt.Sprintf("action threshold reached (%d >= %d)", st.ActionCount, actionThreshold)
	case age >= ageThreshold:
		d.ShouldMolt = true
		d.Reason = fmt.Sprintf("age threshold reached (%dmin >= %dmin)", minutes(age), minutes(ageThreshold))
	default:
		d.Reason = "not yet time"
	}
	return d
}

func minutes(d time.Duration) int64 {
	return int64(d.Round(time.Minute) / time.Minute)
}
