package agent

import (
	"errors"
	"math"

	"github.com/nvandessel/nudge/internal/classifier"
	"github.com/nvandessel/nudge/internal/models"
)

// Bandit is a classifier-backed contextual bandit. Every sent notification
// becomes a labelled sample (reward > 0 is positive). The classifier is
// retrained on a countdown that resets to max(1, round(sqrt(n))) after each
// training attempt. Without a trained classifier the agent sends.
type Bandit struct {
	*base
	trainer   classifier.Trainer
	samples   []Sample
	model     *classifier.Model
	countdown int
	current   models.State
	chosen    bool
}

func newBandit(b *base) *Bandit {
	trainer := b.cfg.Trainer
	if trainer == nil {
		trainer = classifier.DefaultGridSearch()
	}
	return &Bandit{base: b, trainer: trainer}
}

// Model returns the trained classifier, or nil when none is available.
func (a *Bandit) Model() *classifier.Model { return a.model }

// Samples returns the accumulated dataset.
func (a *Bandit) Samples() []Sample { return samplesCopy(a.samples) }

// Countdown returns the number of samples left before the next training.
func (a *Bandit) Countdown() int { return a.countdown }

// Action implements Agent.
func (a *Bandit) Action(s models.State) (bool, error) {
	if err := a.beginAction(s); err != nil {
		return false, err
	}
	send, reason := a.decide(s)
	a.current = s
	a.chosen = send
	a.logDecision(s, send, map[string]any{"reason": reason, "samples": len(a.samples)})
	return send, nil
}

func (a *Bandit) decide(s models.State) (bool, string) {
	if a.rand.Float64() < a.cfg.ExplorationRate {
		return true, "explore"
	}
	if a.model == nil {
		return true, "no model"
	}
	return a.model.Predict(models.Features(s)), "predict"
}

// FeedReward implements Agent.
func (a *Bandit) FeedReward(reward float64) error {
	if err := a.beginReward(); err != nil {
		return err
	}
	a.steps++
	if !a.chosen {
		return nil
	}
	a.samples = append(a.samples, Sample{State: a.current, Reward: reward})
	if a.countdown <= 0 {
		a.train()
	}
	a.countdown--
	return nil
}

// FeedBatch implements Agent.
func (a *Bandit) FeedBatch(history []models.Transition) error {
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
	if added == 0 {
		return nil
	}
	a.countdown -= added
	if a.countdown <= 0 {
		a.train()
	}
	return nil
}

// train fits a new classifier on all samples. On failure the model becomes
// unavailable and the countdown is left as is, so the next sample retries.
func (a *Bandit) train() {
	x, y := dataset(a.samples, 1)
	m, err := a.trainer.Fit(x, y)
	if err != nil {
		a.model = nil
		level := a.logger.Warn
		if errors.Is(err, classifier.ErrInsufficientClasses) {
			level = a.logger.Debug
		}
		level("bandit training skipped", "samples", len(a.samples), "error", err)
		return
	}
	a.model = m
	a.countdown = max(1, int(math.Round(math.Sqrt(float64(len(a.samples))))))
	a.logger.Debug("bandit trained", "samples", len(a.samples), "lambda", m.Lambda, "countdown", a.countdown)
}

// Snapshot implements Agent.
func (a *Bandit) Snapshot() (Snapshot, error) {
	s, err := a.snapshot()
	if err != nil {
		return s, err
	}
	s.Samples = samplesCopy(a.samples)
	s.Model = a.model
	s.Countdown = a.countdown
	cur := a.current
	s.Current = &cur
	s.Chosen = a.chosen
	return s, nil
}

func (a *Bandit) restoreModel(s Snapshot) error {
	if err := a.restore(s); err != nil {
		return err
	}
	a.samples = samplesCopy(s.Samples)
	a.model = s.Model
	a.countdown = s.Countdown
	if s.Current != nil {
		a.current = *s.Current
	}
	a.chosen = s.Chosen
	return nil
}

// dataset turns samples into a feature matrix and labels. Negative-reward
// rows are repeated negWeight times.
func dataset(samples []Sample, negWeight int) ([][]float64, []bool) {
	x := make([][]float64, 0, len(samples))
	y := make([]bool, 0, len(samples))
	for _, s := range samples {
		n := 1
		if s.Reward < 0 {
			n = negWeight
		}
		f := models.Features(s.State)
		for range n {
			x = append(x, f)
			y = append(y, s.Positive())
		}
	}
	return x, y
}
