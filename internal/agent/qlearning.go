package agent

import (
	"context"

	"github.com/nvandessel/nudge/internal/logging"
	"github.com/nvandessel/nudge/internal/models"
)

// Schedules of the first Q-learning agent.
var (
	qlearningEpsilon = Decay{Init: 0.5, Min: 0.1}
	qlearningEta     = Decay{Init: 1.0, Min: 0.003}
)

const qlearningGamma = 1.0

// QLearning is tabular one-step Q-learning with a synthesized next state:
// after a send the next state is the same context with a recent
// notification, otherwise the context is unchanged.
type QLearning struct {
	*base
	q       QTable
	current models.State
	chosen  bool
}

func newQLearning(b *base) *QLearning {
	return &QLearning{base: b, q: NewQTable(0, 0)}
}

// QTable returns the live table.
func (a *QLearning) QTable() QTable { return a.q }

// Epsilon returns the current exploration rate.
func (a *QLearning) Epsilon() float64 { return qlearningEpsilon.At(a.steps) }

// Action implements Agent.
func (a *QLearning) Action(s models.State) (bool, error) {
	if err := a.beginAction(s); err != nil {
		return false, err
	}
	send := epsilonGreedy(a.base, a.q, s, a.Epsilon())
	a.current = s
	a.chosen = send
	a.logDecision(s, send, map[string]any{"epsilon": a.Epsilon(), "q_hold": a.q.Value(s, false), "q_send": a.q.Value(s, true)})
	return send, nil
}

// FeedReward implements Agent.
func (a *QLearning) FeedReward(reward float64) error {
	if err := a.beginReward(); err != nil {
		return err
	}
	a.learn(a.current, a.chosen, reward)
	return nil
}

// FeedBatch implements Agent. Every entry is learned with its own
// synthesized next state.
func (a *QLearning) FeedBatch(history []models.Transition) error {
	if err := a.beginBatch(history); err != nil {
		return err
	}
	for _, t := range history {
		a.learn(t.State, t.Send, t.Reward)
	}
	return nil
}

func (a *QLearning) learn(s models.State, send bool, reward float64) {
	next := s
	if send {
		next = s.WithRecency(models.RecencyWithinHour)
	}
	v := a.q.Update(s, send, reward, next, qlearningEta.At(a.steps), qlearningGamma)
	a.logger.Log(context.Background(), logging.LevelTrace, "q update", "state", s.String(), "send", send, "reward", reward, "value", v)
	a.steps++
}

// Snapshot implements Agent.
func (a *QLearning) Snapshot() (Snapshot, error) {
	s, err := a.snapshot()
	if err != nil {
		return s, err
	}
	s.QTable = a.q.Entries()
	cur := a.current
	s.Current = &cur
	s.Chosen = a.chosen
	return s, nil
}

func (a *QLearning) restoreModel(s Snapshot) error {
	if err := a.restore(s); err != nil {
		return err
	}
	q, err := QTableFromEntries(s.QTable)
	if err != nil {
		return err
	}
	a.q = q
	if s.Current != nil {
		a.current = *s.Current
	}
	a.chosen = s.Chosen
	return nil
}

// epsilonGreedy explores uniformly with probability eps and otherwise
// exploits the table.
func epsilonGreedy(b *base, q QTable, s models.State, eps float64) bool {
	if b.rand.Float64() < eps {
		return b.rand.Bernoulli(0.5)
	}
	return q.Best(s)
}
