package agent

import (
	"github.com/nvandessel/nudge/internal/classifier"
	"github.com/nvandessel/nudge/internal/models"
)

// BanditProb is a contextual bandit that weighs class probabilities by
// reward: it sends when P(neg)*negativeReward + P(pos) > 0. The classifier
// is refit after every new sample once MinSamples have been collected.
type BanditProb struct {
	*base
	trainer classifier.Trainer
	samples []Sample
	model   *classifier.Model
	current models.State
	chosen  bool
}

func newBanditProb(b *base) *BanditProb {
	trainer := b.cfg.Trainer
	if trainer == nil {
		trainer = classifier.DefaultLogistic()
	}
	return &BanditProb{base: b, trainer: trainer}
}

// Model returns the trained classifier, or nil when none is available.
func (a *BanditProb) Model() *classifier.Model { return a.model }

// Samples returns the accumulated dataset.
func (a *BanditProb) Samples() []Sample { return samplesCopy(a.samples) }

// ExpectedReward returns the model's expected reward for sending in s and
// whether a model was available to compute it.
func (a *BanditProb) ExpectedReward(s models.State) (float64, bool) {
	if a.model == nil {
		return 0, false
	}
	neg, pos := a.model.Probability(models.Features(s))
	return neg*a.cfg.NegativeReward + pos, true
}

// Action implements Agent.
func (a *BanditProb) Action(s models.State) (bool, error) {
	if err := a.beginAction(s); err != nil {
		return false, err
	}
	var send bool
	reason := "predict"
	expected, ok := a.ExpectedReward(s)
	switch {
	case a.rand.Float64() < a.cfg.ExplorationRate:
		send, reason = true, "explore"
	case !ok:
		send, reason = true, "no model"
	default:
		send = expected > 0
	}
	a.current = s
	a.chosen = send
	a.logDecision(s, send, map[string]any{"reason": reason, "expected_reward": expected, "samples": len(a.samples)})
	return send, nil
}

// FeedReward implements Agent.
func (a *BanditProb) FeedReward(reward float64) error {
	if err := a.beginReward(); err != nil {
		return err
	}
	a.steps++
	if !a.chosen {
		return nil
	}
	a.samples = append(a.samples, Sample{State: a.current, Reward: reward})
	a.train()
	return nil
}

// FeedBatch implements Agent. The classifier is refit once per batch.
func (a *BanditProb) FeedBatch(history []models.Transition) error {
	if err := a.beginBatch(history); err != nil {
		return err
	}
	added := 0
	for _, t := range history {
		if t.Send {
			a.samples = append(a.samples, Sample{State: t.State, Reward: t.Reward})
			added++
		}
	}
	a.steps += len(history)
	if added > 0 {
		a.train()
	}
	return nil
}

func (a *BanditProb) train() {
	if len(a.samples) < a.cfg.MinSamples {
		return
	}
	x, y := dataset(a.samples, 1)
	m, err := a.trainer.Fit(x, y)
	if err != nil {
		a.model = nil
		a.logger.Debug("bandit training skipped", "samples", len(a.samples), "error", err)
		return
	}
	a.model = m
}

// Snapshot implements Agent.
func (a *BanditProb) Snapshot() (Snapshot, error) {
	s, err := a.snapshot()
	if err != nil {
		return s, err
	}
	s.Samples = samplesCopy(a.samples)
	s.Model = a.model
	cur := a.current
	s.Current = &cur
	s.Chosen = a.chosen
	return s, nil
}

func (a *BanditProb) restoreModel(s Snapshot) error {
	if err := a.restore(s); err != nil {
		return err
	}
	a.samples = samplesCopy(s.Samples)
	a.model = s.Model
	if s.Current != nil {
		a.current = *s.Current
	}
	a.chosen = s.Chosen
	return nil
}
