package agent

import "github.com/nvandessel/nudge/internal/models"

// Always sends at every tick and ignores rewards. It is the baseline every
// learning agent is compared against.
type Always struct {
	*base
}

func newAlways(b *base) *Always {
	return &Always{base: b}
}

// Action implements Agent.
func (a *Always) Action(s models.State) (bool, error) {
	if err := a.beginAction(s); err != nil {
		return false, err
	}
	a.logDecision(s, true, nil)
	return true, nil
}

// FeedReward implements Agent.
func (a *Always) FeedReward(float64) error {
	if err := a.beginReward(); err != nil {
		return err
	}
	a.steps++
	return nil
}

// FeedBatch implements Agent.
func (a *Always) FeedBatch(history []models.Transition) error {
	if err := a.beginBatch(history); err != nil {
		return err
	}
	a.steps += len(history)
	return nil
}

// Snapshot implements Agent.
func (a *Always) Snapshot() (Snapshot, error) {
	return a.snapshot()
}

func (a *Always) restoreModel(s Snapshot) error {
	return a.restore(s)
}
