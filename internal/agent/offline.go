package agent

import (
	"fmt"

	"github.com/nvandessel/nudge/internal/classifier"
	"github.com/nvandessel/nudge/internal/models"
)

// Offline follows a classifier trained once from a collector's history
// file. Negative rows are oversampled by NegativeWeight. It never learns
// online; rewards are accepted only to keep the protocol.
type Offline struct {
	*base
	trainer classifier.Trainer
	model   *classifier.Model
	trained bool
}

func newOffline(b *base) *Offline {
	trainer := b.cfg.Trainer
	if trainer == nil {
		trainer = classifier.DefaultLogistic()
	}
	return &Offline{base: b, trainer: trainer}
}

// Model returns the trained classifier, or nil before LoadModel.
func (a *Offline) Model() *classifier.Model { return a.model }

// LoadModel trains the classifier from a history file.
func (a *Offline) LoadModel(path string) error {
	samples, err := readHistoryFile(path)
	if err != nil {
		return err
	}
	return a.Train(samples)
}

// Train fits the classifier on samples.
func (a *Offline) Train(samples []Sample) error {
	x, y := dataset(samples, a.cfg.NegativeWeight)
	m, err := a.trainer.Fit(x, y)
	if err != nil {
		return fmt.Errorf("training offline agent on %d samples: %w", len(samples), err)
	}
	a.model = m
	a.trained = true
	a.logger.Info("offline agent trained", "samples", len(samples), "rows", len(x))
	return nil
}

// Action implements Agent.
func (a *Offline) Action(s models.State) (bool, error) {
	if err := a.beginAction(s); err != nil {
		return false, err
	}
	send := true
	if a.model != nil {
		send = a.model.Predict(models.Features(s))
	}
	a.logDecision(s, send, map[string]any{"trained": a.trained})
	return send, nil
}

// FeedReward implements Agent.
func (a *Offline) FeedReward(float64) error {
	if err := a.beginReward(); err != nil {
		return err
	}
	a.steps++
	return nil
}

// FeedBatch implements Agent.
func (a *Offline) FeedBatch(history []models.Transition) error {
	if err := a.beginBatch(history); err != nil {
		return err
	}
	a.steps += len(history)
	return nil
}

// Snapshot implements Agent.
func (a *Offline) Snapshot() (Snapshot, error) {
	s, err := a.snapshot()
	if err != nil {
		return s, err
	}
	s.Model = a.model
	s.Trained = a.trained
	return s, nil
}

func (a *Offline) restoreModel(s Snapshot) error {
	if err := a.restore(s); err != nil {
		return err
	}
	a.model = s.Model
	a.trained = s.Trained
	return nil
}
