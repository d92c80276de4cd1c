// Package agent defines the notification policy contract and its
// algorithm variants: always-send, passive data collection, two tabular
// Q-learning agents, two classifier-backed contextual bandits, and an
// offline classifier policy.
//
// Interactive agents follow a strict Action / FeedReward alternation.
// Batch agents are asked for actions over a whole round and then receive
// the round's (state, action, reward) history through FeedBatch.
package agent

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/nvandessel/nudge/internal/classifier"
	"github.com/nvandessel/nudge/internal/logging"
	"github.com/nvandessel/nudge/internal/models"
)

// Mode is fixed at construction.
type Mode int

const (
	ModeInteractive Mode = iota
	ModeBatch
)

func (m Mode) String() string {
	if m == ModeBatch {
		return "batch"
	}
	return "interactive"
}

// ParseMode maps "interactive" or "batch" to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "interactive", "":
		return ModeInteractive, nil
	case "batch":
		return ModeBatch, nil
	}
	return 0, fmt.Errorf("unknown agent mode %q (valid: interactive, batch)", s)
}

// Kind names an algorithm variant.
type Kind string

const (
	KindAlways     Kind = "always"
	KindCollector  Kind = "collector"
	KindQLearning  Kind = "qlearning"
	KindQLearning2 Kind = "qlearning2"
	KindBandit     Kind = "bandit"
	KindBanditProb Kind = "bandit-prob"
	KindOffline    Kind = "offline"
)

// Kinds lists every registered variant.
func Kinds() []Kind {
	return []Kind{KindAlways, KindCollector, KindQLearning, KindQLearning2, KindBandit, KindBanditProb, KindOffline}
}

// Agent is a stateful notification policy.
type Agent interface {
	Kind() Kind
	Mode() Mode

	// Action decides whether to send a notification in state s.
	Action(s models.State) (bool, error)

	// FeedReward reports the reward for the last action (interactive mode).
	FeedReward(reward float64) error

	// FeedBatch reports a full round of transitions (batch mode).
	FeedBatch(history []models.Transition) error

	// SetNegativeReward tells the agent what a dismissal costs.
	SetNegativeReward(reward float64)

	// Snapshot captures the agent's full internal model.
	Snapshot() (Snapshot, error)

	// SetLogger attaches operational and decision loggers.
	SetLogger(logger *slog.Logger, decisions *logging.DecisionLogger)
}

// ModelLoader is implemented by agents that can load a model file.
type ModelLoader interface {
	LoadModel(path string) error
}

// ModelSaver is implemented by agents that can write a model file.
type ModelSaver interface {
	SaveModel(path string) error
}

// LoadModel loads a model file into a, failing with an error wrapping
// errors.ErrUnsupported when the variant has no file model.
func LoadModel(a Agent, path string) error {
	l, ok := a.(ModelLoader)
	if !ok {
		return fmt.Errorf("%s agent cannot load a model: %w", a.Kind(), errors.ErrUnsupported)
	}
	return l.LoadModel(path)
}

// SaveModel writes a's model file, failing with an error wrapping
// errors.ErrUnsupported when the variant has no file model.
func SaveModel(a Agent, path string) error {
	s, ok := a.(ModelSaver)
	if !ok {
		return fmt.Errorf("%s agent cannot save a model: %w", a.Kind(), errors.ErrUnsupported)
	}
	return s.SaveModel(path)
}

// Config holds agent settings. Zero fields are replaced by defaults in New.
type Config struct {
	// NegativeReward is the reward of a dismissed notification. Default: -5.
	NegativeReward float64 `json:"negative_reward"`

	// Seed seeds the agent's random source.
	Seed uint64 `json:"seed"`

	// SendProbability is the collector's fixed send rate. Default: 0.2.
	SendProbability float64 `json:"send_probability"`

	// ExplorationRate is the bandits' forced-send probability. Default: 0.02.
	ExplorationRate float64 `json:"exploration_rate"`

	// MinSamples gates the first training of the probabilistic bandit. Default: 2.
	MinSamples int `json:"min_samples"`

	// NegativeWeight oversamples negative rows in the offline agent. Default: 3.
	NegativeWeight int `json:"negative_weight"`

	// Trainer overrides the classifier trainer of classifier-backed agents.
	Trainer classifier.Trainer `json:"-"`
}

// DefaultConfig returns the default agent configuration.
func DefaultConfig() Config {
	return Config{
		NegativeReward:  -5,
		SendProbability: 0.2,
		ExplorationRate: 0.02,
		MinSamples:      2,
		NegativeWeight:  3,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.NegativeReward == 0 {
		c.NegativeReward = d.NegativeReward
	}
	if c.SendProbability == 0 {
		c.SendProbability = d.SendProbability
	}
	if c.ExplorationRate == 0 {
		c.ExplorationRate = d.ExplorationRate
	}
	if c.MinSamples == 0 {
		c.MinSamples = d.MinSamples
	}
	if c.NegativeWeight == 0 {
		c.NegativeWeight = d.NegativeWeight
	}
	return c
}

// Validate checks the configuration ranges.
func (c Config) Validate() error {
	if c.SendProbability < 0 || c.SendProbability > 1 {
		return &models.ConfigurationError{Detail: fmt.Sprintf("send_probability must be in [0, 1], got %g", c.SendProbability)}
	}
	if c.ExplorationRate < 0 || c.ExplorationRate > 1 {
		return &models.ConfigurationError{Detail: fmt.Sprintf("exploration_rate must be in [0, 1], got %g", c.ExplorationRate)}
	}
	if c.MinSamples < 0 {
		return &models.ConfigurationError{Detail: fmt.Sprintf("min_samples must be non-negative, got %d", c.MinSamples)}
	}
	if c.NegativeWeight < 1 {
		return &models.ConfigurationError{Detail: fmt.Sprintf("negative_weight must be at least 1, got %d", c.NegativeWeight)}
	}
	return nil
}

// New builds an agent of the given kind with a blank model.
func New(kind Kind, mode Mode, cfg Config) (Agent, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b := newBase(kind, mode, cfg)

	switch kind {
	case KindAlways:
		return newAlways(b), nil
	case KindCollector:
		return newCollector(b), nil
	case KindQLearning:
		return newQLearning(b), nil
	case KindQLearning2:
		return newQLearning2(b), nil
	case KindBandit:
		return newBandit(b), nil
	case KindBanditProb:
		return newBanditProb(b), nil
	case KindOffline:
		return newOffline(b), nil
	}
	return nil, &models.ConfigurationError{Detail: fmt.Sprintf("unknown agent kind %q", kind)}
}
