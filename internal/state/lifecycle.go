// Package state holds the durable record of the agent's current shell
// generation and the file store that persists it.
package state

import (
	"fmt"
	"math/big"
	"time"
)

// MaxAcknowledged caps AcknowledgedEventIDs; the oldest ids are evicted first.
const MaxAcknowledged = 200

// LifecycleState is the single persisted aggregate of the agent.
type LifecycleState struct {
	GenerationIndex            int        `json:"generation_index"`
	GenerationStartedAt        time.Time  `json:"generation_started_at"`
	ActionCount                int        `json:"action_count"`
	TotalValueMoved            Amount     `json:"total_value_moved"`
	ActionsSinceAnnouncement   int        `json:"actions_since_announcement"`
	TotalTransitions           int        `json:"total_transitions"`
	LastExternalEventTimestamp *time.Time `json:"last_external_event_timestamp"`
	AcknowledgedEventIDs       []string   `json:"acknowledged_event_ids"`
}

// Default returns the state of a brand new agent born at now.
func Default(now time.Time) *LifecycleState {
	return &LifecycleState{
		GenerationStartedAt:  now.UTC(),
		AcknowledgedEventIDs: []string{},
	}
}

// Clone returns a deep copy, used to snapshot the outgoing generation.
func (s *LifecycleState) Clone() *LifecycleState {
	c := *s
	c.TotalValueMoved = NewAmount(s.TotalValueMoved.Int())
	if s.LastExternalEventTimestamp != nil {
		ts := *s.LastExternalEventTimestamp
		c.LastExternalEventTimestamp = &ts
	}
	c.AcknowledgedEventIDs = append([]string{}, s.AcknowledgedEventIDs...)
	return &c
}

// Age is how long the current generation has been alive.
func (s *LifecycleState) Age(now time.Time) time.Duration {
	return now.Sub(s.GenerationStartedAt)
}

// RecordAction applies the result of one performed action. Only actions that
// produced a ledger effect count toward the generation; every action moves the
// announcement cadence forward.
func (s *LifecycleState) RecordAction(effectID string, value *big.Int) {
	if effectID != "" {
		s.ActionCount++
		s.TotalValueMoved = s.TotalValueMoved.Add(value)
	}
	s.ActionsSinceAnnouncement++
}

// MarkAnnounced resets the announcement cadence.
func (s *LifecycleState) MarkAnnounced() {
	s.ActionsSinceAnnouncement = 0
}

// IsAcknowledged reports whether an external event was already handled.
func (s *LifecycleState) IsAcknowledged(id string) bool {
	for _, seen := range s.AcknowledgedEventIDs {
		if seen == id {
			return true
		}
	}
	return false
}

// Acknowledge appends id, evicting the oldest entries beyond MaxAcknowledged.
func (s *LifecycleState) Acknowledge(id string, now time.Time) {
	if !s.IsAcknowledged(id) {
		s.AcknowledgedEventIDs = append(s.AcknowledgedEventIDs, id)
	}
	if over := len(s.AcknowledgedEventIDs) - MaxAcknowledged; over > 0 {
		// copy into a fresh slice so the evicted prefix is released
		s.AcknowledgedEventIDs = append([]string{}, s.AcknowledgedEventIDs[over:]...)
	}
	ts := now.UTC()
	s.LastExternalEventTimestamp = &ts
}

// BeginGeneration commits a molt boundary. next must be exactly one past the
// current generation; the per-generation counters reset together.
func (s *LifecycleState) BeginGeneration(next int, now time.Time) error {
	if next != s.GenerationIndex+1 {
		return fmt.Errorf("generation must advance by one: current %d, requested %d", s.GenerationIndex, next)
	}
	s.GenerationIndex = next
	s.GenerationStartedAt = now.UTC()
	s.ActionCount = 0
	s.TotalValueMoved = Amount{}
	s.ActionsSinceAnnouncement = 0
	s.TotalTransitions++
	return nil
}

// normalize repairs values a hand-edited or older file may carry.
func (s *LifecycleState) normalize() {
	if s.AcknowledgedEventIDs == nil {
		s.AcknowledgedEventIDs = []string{}
	}
	if over := len(s.AcknowledgedEventIDs) - MaxAcknowledged; over > 0 {
		s.AcknowledgedEventIDs = append([]string{}, s.AcknowledgedEventIDs[over:]...)
	}
	if s.GenerationIndex < 0 {
		s.GenerationIndex = 0
	}
	if s.ActionCount < 0 {
		s.ActionCount = 0
	}
	if s.ActionsSinceAnnouncement < 0 {
		s.ActionsSinceAnnouncement = 0
	}
	if s.TotalTransitions < 0 {
		s.TotalTransitions = 0
	}
}
