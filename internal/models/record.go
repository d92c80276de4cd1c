package models

import "fmt"

// Context is the raw situation at a decision tick.
type Context struct {
	DaysPassed       int      `json:"days_passed"`
	Hour             int      `json:"hour"`
	Minute           int      `json:"minute"`
	Weekday          int      `json:"weekday"`
	Location         Location `json:"location"`
	Activity         Activity `json:"activity"`
	MinutesSinceLast int      `json:"minutes_since_last"`
}

// State derives the discrete decision state from the context.
func (c Context) State() State {
	return NewState(c.Hour, c.Weekday, c.Location, c.Activity, c.MinutesSinceLast)
}

// TickKey identifies a tick by absolute day, hour and minute.
type TickKey struct {
	Day    int
	Hour   int
	Minute int
}

func (k TickKey) String() string {
	return fmt.Sprintf("day=%d %02d:%02d", k.Day, k.Hour, k.Minute)
}

// Key returns the tick key of the context.
func (c Context) Key() TickKey {
	return TickKey{Day: c.DaysPassed, Hour: c.Hour, Minute: c.Minute}
}

// Transition is one (state, action, reward) triple fed to an agent in batch.
type Transition struct {
	State  State   `json:"state"`
	Send   bool    `json:"send"`
	Reward float64 `json:"reward"`
}

// EmulationRecord is the record of one emulated tick. Its reward is unset
// until the round's responses are processed and is resolved exactly once.
type EmulationRecord struct {
	Context Context  `json:"context"`
	State   State    `json:"state"`
	Send    bool     `json:"send"`
	Reward  *float64 `json:"reward,omitempty"`
}

// Resolved reports whether the reward has been set.
func (r *EmulationRecord) Resolved() bool { return r.Reward != nil }

// Resolve sets the reward. A record can only be resolved once.
func (r *EmulationRecord) Resolve(reward float64) error {
	if r.Reward != nil {
		return &ProtocolError{Op: "resolve reward", State: "already resolved at " + r.Context.Key().String()}
	}
	r.Reward = &reward
	return nil
}

// RewardValue returns the reward, or 0 when unresolved.
func (r *EmulationRecord) RewardValue() float64 {
	if r.Reward == nil {
		return 0
	}
	return *r.Reward
}

// Transition returns the record as a batch transition.
func (r *EmulationRecord) Transition() Transition {
	return Transition{State: r.State, Send: r.Send, Reward: r.RewardValue()}
}

// IsAccepted reports a sent notification with a positive reward.
func (r *EmulationRecord) IsAccepted() bool { return r.Send && r.Resolved() && *r.Reward > 0 }

// IsIgnored reports a sent notification with a zero reward.
func (r *EmulationRecord) IsIgnored() bool { return r.Send && r.Resolved() && *r.Reward == 0 }

// IsDismissed reports a sent notification with a negative reward.
func (r *EmulationRecord) IsDismissed() bool { return r.Send && r.Resolved() && *r.Reward < 0 }
