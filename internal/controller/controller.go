// Package controller runs closed-loop simulations: at every clock tick it
// observes the simulated person's context, asks the agent whether to send a
// notification, samples the person's reaction, and feeds the reward back.
package controller

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nvandessel/nudge/internal/agent"
	"github.com/nvandessel/nudge/internal/behavior"
	"github.com/nvandessel/nudge/internal/clock"
	"github.com/nvandessel/nudge/internal/environment"
	"github.com/nvandessel/nudge/internal/logging"
	"github.com/nvandessel/nudge/internal/models"
	"github.com/nvandessel/nudge/internal/rng"
)

// Config holds simulation settings.
type Config struct {
	// Weeks is the simulated horizon. Default: 10.
	Weeks int `json:"weeks"`

	// StepMinutes is the spacing of decision ticks. Default: 10.
	StepMinutes int `json:"step_minutes"`

	// Quiet is the daily window with no decision ticks. Default: 22-8.
	Quiet clock.QuietHours `json:"quiet"`

	// RefWeekday is the weekday of day 0 (0 = Sunday).
	RefWeekday int `json:"ref_weekday"`

	// NegativeReward is the reward of a dismissal. Default: -10.
	NegativeReward float64 `json:"negative_reward"`

	// Seed seeds reaction sampling.
	Seed uint64 `json:"seed"`
}

// DefaultConfig returns the default simulation settings.
func DefaultConfig() Config {
	return Config{
		Weeks:          10,
		StepMinutes:    10,
		Quiet:          clock.DefaultQuietHours,
		NegativeReward: -10,
	}
}

// Validate checks the settings.
func (c Config) Validate() error {
	if c.Weeks <= 0 {
		return &models.ConfigurationError{Detail: fmt.Sprintf("weeks must be positive, got %d", c.Weeks)}
	}
	if c.StepMinutes <= 0 {
		return &models.ConfigurationError{Detail: fmt.Sprintf("step_minutes must be positive, got %d", c.StepMinutes)}
	}
	return c.Quiet.Validate()
}

// Step is the log entry of one simulated tick.
type Step struct {
	Context       models.Context      `json:"context"`
	State         models.State        `json:"state"`
	Probabilities models.Distribution `json:"probabilities"`
	Send          bool                `json:"send"`
	Answer        *models.Answer      `json:"answer,omitempty"`
	Reward        float64             `json:"reward"`
}

// Record converts the step into a resolved record.
func (s Step) Record() models.EmulationRecord {
	reward := s.Reward
	return models.EmulationRecord{Context: s.Context, State: s.State, Send: s.Send, Reward: &reward}
}

// Controller drives one simulation.
type Controller struct {
	cfg      Config
	agent    agent.Agent
	env      environment.Environment
	behavior behavior.Behavior
	clock    *clock.Clock
	rand     *rng.Source
	rewards  models.RewardTable
	lastSent models.TickKey

	logger    *slog.Logger
	decisions *logging.DecisionLogger
}

// New wires a controller. The agent must be interactive; its dismissal
// reward is set to cfg.NegativeReward.
func New(cfg Config, a agent.Agent, env environment.Environment, b behavior.Behavior) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if a.Mode() != agent.ModeInteractive {
		return nil, &models.ConfigurationError{Detail: "simulation needs an interactive agent"}
	}
	clk, err := clock.New(cfg.RefWeekday, cfg.Quiet)
	if err != nil {
		return nil, err
	}
	a.SetNegativeReward(cfg.NegativeReward)
	return &Controller{
		cfg:      cfg,
		agent:    a,
		env:      env,
		behavior: b,
		clock:    clk,
		rand:     rng.New(cfg.Seed),
		rewards:  models.DefaultRewardTable(cfg.NegativeReward),
		logger:   slog.New(slog.DiscardHandler),
	}, nil
}

// SetLogger attaches operational and decision loggers.
func (c *Controller) SetLogger(logger *slog.Logger, decisions *logging.DecisionLogger) {
	if logger != nil {
		c.logger = logger
	}
	c.decisions = decisions
}

// Run simulates until the horizon and returns every step. Cancellation is
// checked between ticks; the steps completed so far are returned with the
// context error.
func (c *Controller) Run(ctx context.Context) ([]Step, error) {
	horizon := c.cfg.Weeks * 7
	var steps []Step

	now, err := c.clock.Forward(c.cfg.StepMinutes)
	if err != nil {
		return nil, err
	}
	for now.Days < horizon {
		if err := ctx.Err(); err != nil {
			return steps, err
		}
		step, err := c.tick(now)
		if err != nil {
			return steps, fmt.Errorf("simulating %s: %w", now, err)
		}
		steps = append(steps, step)

		if now, err = c.clock.Forward(c.cfg.StepMinutes); err != nil {
			return steps, err
		}
	}
	c.logger.Info("simulation finished", "ticks", len(steps), "weeks", c.cfg.Weeks, "agent", c.agent.Kind())
	return steps, nil
}

func (c *Controller) tick(now clock.Time) (Step, error) {
	cx, err := Observe(now, c.lastSent, c.behavior)
	if err != nil {
		return Step{}, err
	}
	accept, ignore, dismiss, err := c.env.ResponseDistribution(cx.Hour, cx.Minute, cx.Weekday, cx.Location, cx.Activity, cx.MinutesSinceLast)
	if err != nil {
		return Step{}, fmt.Errorf("environment: %w", err)
	}
	dist, err := models.Normalize(accept, ignore, dismiss)
	if err != nil {
		return Step{}, fmt.Errorf("environment: %w", err)
	}

	state := cx.State()
	send, err := c.agent.Action(state)
	if err != nil {
		return Step{}, err
	}

	step := Step{Context: cx, State: state, Probabilities: dist, Send: send}
	if send {
		i, err := c.rand.Choice(dist.Weights())
		if err != nil {
			return Step{}, err
		}
		answer := models.AnswerAt(i)
		step.Answer = &answer
		step.Reward = c.rewards.Reward(answer)
		c.lastSent = cx.Key()
	}
	if err := c.agent.FeedReward(step.Reward); err != nil {
		return Step{}, err
	}

	c.decisions.Log(map[string]any{
		"event":  "simulation_tick",
		"day":    cx.DaysPassed,
		"hour":   cx.Hour,
		"minute": cx.Minute,
		"state":  state.String(),
		"send":   send,
		"reward": step.Reward,
		"agent":  string(c.agent.Kind()),
	})
	return step, nil
}

// Observe builds the context of the tick at now: minutes since the last
// sent notification, plus location and activity from the behavior.
func Observe(now clock.Time, lastSent models.TickKey, b behavior.Behavior) (models.Context, error) {
	loc, act, err := b.LocationActivity(now.Hour, now.Minute, now.Weekday)
	if err != nil {
		return models.Context{}, fmt.Errorf("behavior: %w", err)
	}
	return models.Context{
		DaysPassed:       now.Days,
		Hour:             now.Hour,
		Minute:           now.Minute,
		Weekday:          now.Weekday,
		Location:         loc,
		Activity:         act,
		MinutesSinceLast: models.DeltaMinutes(now.Days, now.Hour, now.Minute, lastSent.Day, lastSent.Hour, lastSent.Minute),
	}, nil
}
