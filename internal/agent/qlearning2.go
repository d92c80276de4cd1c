package agent

import (
	"context"

	"github.com/nvandessel/nudge/internal/logging"
	"github.com/nvandessel/nudge/internal/models"
)

// Schedules of the second Q-learning agent.
var (
	qlearning2Epsilon = Decay{Init: 0.3, Min: 0.05}
	qlearning2Eta     = Decay{Init: 1.0, Min: 0.1}
)

const (
	qlearning2Gamma    = 0.9
	qlearning2SendInit = 1e-5
)

// QLearning2 is tabular Q-learning over observed next states. The update
// for a step is deferred until the following step's state is known. In
// batch mode consecutive history entries are paired; the final entry of a
// batch is carried over and paired with the first entry of the next batch.
type QLearning2 struct {
	*base
	q       QTable
	current models.State
	chosen  bool
	last    *models.Transition
}

func newQLearning2(b *base) *QLearning2 {
	return &QLearning2{base: b, q: NewQTable(0, qlearning2SendInit)}
}

// QTable returns the live table.
func (a *QLearning2) QTable() QTable { return a.q }

// Epsilon returns the current exploration rate.
func (a *QLearning2) Epsilon() float64 { return qlearning2Epsilon.At(a.steps) }

// Pending returns the transition still waiting for its next state.
func (a *QLearning2) Pending() *models.Transition { return a.last }

// Action implements Agent.
func (a *QLearning2) Action(s models.State) (bool, error) {
	if err := a.beginAction(s); err != nil {
		return false, err
	}
	if a.mode == ModeInteractive && a.last != nil {
		a.update(*a.last, s)
		a.last = nil
	}
	send := epsilonGreedy(a.base, a.q, s, a.Epsilon())
	a.current = s
	a.chosen = send
	a.logDecision(s, send, map[string]any{"epsilon": a.Epsilon(), "q_hold": a.q.Value(s, false), "q_send": a.q.Value(s, true)})
	return send, nil
}

// FeedReward implements Agent.
func (a *QLearning2) FeedReward(reward float64) error {
	if err := a.beginReward(); err != nil {
		return err
	}
	a.last = &models.Transition{State: a.current, Send: a.chosen, Reward: reward}
	a.steps++
	return nil
}

// FeedBatch implements Agent.
func (a *QLearning2) FeedBatch(history []models.Transition) error {
	if err := a.beginBatch(history); err != nil {
		return err
	}
	if len(history) == 0 {
		return nil
	}

	seq := history
	if a.last != nil {
		seq = append([]models.Transition{*a.last}, history...)
	}
	for i := 0; i+1 < len(seq); i++ {
		a.update(seq[i], seq[i+1].State)
		a.steps++
	}
	tail := seq[len(seq)-1]
	a.last = &tail
	return nil
}

func (a *QLearning2) update(t models.Transition, next models.State) {
	v := a.q.Update(t.State, t.Send, t.Reward, next, qlearning2Eta.At(a.steps), qlearning2Gamma)
	a.logger.Log(context.Background(), logging.LevelTrace, "q update", "state", t.State.String(), "send", t.Send, "reward", t.Reward, "value", v)
}

// Snapshot implements Agent.
func (a *QLearning2) Snapshot() (Snapshot, error) {
	s, err := a.snapshot()
	if err != nil {
		return s, err
	}
	s.QTable = a.q.Entries()
	cur := a.current
	s.Current = &cur
	s.Chosen = a.chosen
	if a.last != nil {
		last := *a.last
		s.Last = &last
	}
	return s, nil
}

func (a *QLearning2) restoreModel(s Snapshot) error {
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
	a.last = nil
	if s.Last != nil {
		last := *s.Last
		a.last = &last
	}
	return nil
}
