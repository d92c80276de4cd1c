package agent

import (
	"fmt"
	"log/slog"

	"github.com/nvandessel/nudge/internal/logging"
	"github.com/nvandessel/nudge/internal/models"
	"github.com/nvandessel/nudge/internal/rng"
)

// Stage is the interactive protocol position.
type Stage int

const (
	StageAwaitingAction Stage = iota
	StageAwaitingReward
)

func (s Stage) String() string {
	if s == StageAwaitingReward {
		return "awaiting reward"
	}
	return "awaiting action"
}

// base carries what every variant shares: the protocol guard, settings,
// random source, step counter and loggers.
type base struct {
	kind   Kind
	mode   Mode
	stage  Stage
	steps  int
	cfg    Config
	rand   *rng.Source
	logger *slog.Logger

	decisions *logging.DecisionLogger
}

func newBase(kind Kind, mode Mode, cfg Config) *base {
	return &base{
		kind:   kind,
		mode:   mode,
		cfg:    cfg,
		rand:   rng.New(cfg.Seed),
		logger: slog.New(slog.DiscardHandler),
	}
}

func (b *base) Kind() Kind { return b.kind }
func (b *base) Mode() Mode { return b.mode }

// Steps returns the number of learning steps taken.
func (b *base) Steps() int { return b.steps }

// Stage returns the current protocol position.
func (b *base) Stage() Stage { return b.stage }

// NegativeReward returns the dismissal reward in use.
func (b *base) NegativeReward() float64 { return b.cfg.NegativeReward }

func (b *base) SetNegativeReward(reward float64) { b.cfg.NegativeReward = reward }

func (b *base) SetLogger(logger *slog.Logger, decisions *logging.DecisionLogger) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	b.logger = logger
	b.decisions = decisions
}

// beginAction checks the protocol and the state, then moves an interactive
// agent to awaiting-reward. A rejected call leaves the stage unchanged.
func (b *base) beginAction(s models.State) error {
	if b.mode == ModeInteractive && b.stage != StageAwaitingAction {
		return &models.ProtocolError{Op: "Action", State: b.stage.String()}
	}
	if err := s.Validate(); err != nil {
		return fmt.Errorf("%s agent: %w", b.kind, err)
	}
	if b.mode == ModeInteractive {
		b.stage = StageAwaitingReward
	}
	return nil
}

// beginReward checks that a reward is expected and moves back to
// awaiting-action.
func (b *base) beginReward() error {
	if b.mode != ModeInteractive {
		return &models.ProtocolError{Op: "FeedReward", State: "in batch mode"}
	}
	if b.stage != StageAwaitingReward {
		return &models.ProtocolError{Op: "FeedReward", State: b.stage.String()}
	}
	b.stage = StageAwaitingAction
	return nil
}

// beginBatch checks the mode and every state in the history.
func (b *base) beginBatch(history []models.Transition) error {
	if b.mode != ModeBatch {
		return &models.ProtocolError{Op: "FeedBatch", State: "in interactive mode"}
	}
	for i, t := range history {
		if err := t.State.Validate(); err != nil {
			return fmt.Errorf("%s agent: history entry %d: %w", b.kind, i, err)
		}
	}
	return nil
}

func (b *base) logDecision(s models.State, send bool, extra map[string]any) {
	if b.decisions == nil {
		return
	}
	event := map[string]any{
		"event": "agent_action",
		"agent": string(b.kind),
		"state": s.String(),
		"send":  send,
		"steps": b.steps,
	}
	for k, v := range extra {
		event[k] = v
	}
	b.decisions.Log(event)
}
