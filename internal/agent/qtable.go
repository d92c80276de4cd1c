package agent

import (
	"fmt"
	"math"

	"github.com/nvandessel/nudge/internal/models"
)

// Decay is a stepwise exponential schedule:
// max(Min, Init * 0.85^(steps / 100)).
type Decay struct {
	Init float64
	Min  float64
}

const (
	decayFactor = 0.85
	decayPeriod = 100
)

// At returns the scheduled value after steps learning steps.
func (d Decay) At(steps int) float64 {
	return math.Max(d.Min, d.Init*math.Pow(decayFactor, float64(steps/decayPeriod)))
}

// QTable maps every state to the estimated value of holding (index 0) and
// sending (index 1). It is fully populated at creation and never shrinks.
type QTable map[models.State][2]float64

func actionIndex(send bool) int {
	if send {
		return 1
	}
	return 0
}

// NewQTable populates the full state cross product.
func NewQTable(holdInit, sendInit float64) QTable {
	q := make(QTable, models.NumStates)
	for _, s := range models.AllStates() {
		q[s] = [2]float64{holdInit, sendInit}
	}
	return q
}

// Value returns Q(s, send).
func (q QTable) Value(s models.State, send bool) float64 {
	return q[s][actionIndex(send)]
}

// Max returns the best action value in s.
func (q QTable) Max(s models.State) float64 {
	v := q[s]
	return math.Max(v[0], v[1])
}

// Best returns the greedy action in s. Ties prefer holding.
func (q QTable) Best(s models.State) bool {
	v := q[s]
	return v[1] > v[0]
}

// Update applies the one-step Q-learning rule
// Q(s,a) += eta * (r + gamma * max_a' Q(s',a') - Q(s,a)).
func (q QTable) Update(s models.State, send bool, reward float64, next models.State, eta, gamma float64) float64 {
	v := q[s]
	i := actionIndex(send)
	v[i] += eta * (reward + gamma*q.Max(next) - v[i])
	q[s] = v
	return v[i]
}

// QEntry is one flattened Q-table row.
type QEntry struct {
	State models.State `json:"state"`
	Hold  float64      `json:"hold"`
	Send  float64      `json:"send"`
}

// Entries flattens the table in AllStates order.
func (q QTable) Entries() []QEntry {
	states := models.AllStates()
	out := make([]QEntry, 0, len(states))
	for _, s := range states {
		v := q[s]
		out = append(out, QEntry{State: s, Hold: v[0], Send: v[1]})
	}
	return out
}

// QTableFromEntries rebuilds a table and checks it covers every state.
func QTableFromEntries(entries []QEntry) (QTable, error) {
	q := make(QTable, len(entries))
	for _, e := range entries {
		if err := e.State.Validate(); err != nil {
			return nil, fmt.Errorf("q-table entry: %w", err)
		}
		if math.IsNaN(e.Hold) || math.IsNaN(e.Send) || math.IsInf(e.Hold, 0) || math.IsInf(e.Send, 0) {
			return nil, fmt.Errorf("q-table entry %v is not finite", e.State)
		}
		q[e.State] = [2]float64{e.Hold, e.Send}
	}
	if len(q) != models.NumStates {
		return nil, fmt.Errorf("q-table covers %d states, want %d", len(q), models.NumStates)
	}
	return q, nil
}
