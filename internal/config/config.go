// Package config provides unified configuration loading for nudge.
// It supports loading from YAML or TOML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/nvandessel/nudge/internal/agent"
	"github.com/nvandessel/nudge/internal/behavior"
	"github.com/nvandessel/nudge/internal/clock"
	"github.com/nvandessel/nudge/internal/environment"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// DirName is the per-user configuration directory under the home directory.
const DirName = ".nudge"

// NudgeConfig contains all nudge configuration settings.
type NudgeConfig struct {
	// Simulation contains settings for closed-loop simulations.
	Simulation SimulationConfig `json:"simulation" yaml:"simulation" toml:"simulation"`

	// Agent selects and tunes the notification policy.
	Agent AgentConfig `json:"agent" yaml:"agent" toml:"agent"`

	// Emulator contains settings for crowd-sourced emulations.
	Emulator EmulatorConfig `json:"emulator" yaml:"emulator" toml:"emulator"`

	// Store configures the run archive.
	Store StoreConfig `json:"store" yaml:"store" toml:"store"`

	// Logging contains settings for operational and decision logging.
	Logging LoggingConfig `json:"logging" yaml:"logging" toml:"logging"`
}

// SimulationConfig configures nudge simulate.
type SimulationConfig struct {
	Weeks       int `json:"weeks" yaml:"weeks" toml:"weeks"`
	StepMinutes int `json:"step_minutes" yaml:"step_minutes" toml:"step_minutes"`

	// QuietFrom and QuietTo bound the nightly window without ticks.
	QuietFrom int `json:"quiet_from" yaml:"quiet_from" toml:"quiet_from"`
	QuietTo   int `json:"quiet_to" yaml:"quiet_to" toml:"quiet_to"`

	// ReferenceWeekday is the weekday of day 0 (0 = Sunday).
	ReferenceWeekday int `json:"reference_weekday" yaml:"reference_weekday" toml:"reference_weekday"`

	NegativeReward float64 `json:"negative_reward" yaml:"negative_reward" toml:"negative_reward"`
	Seed           uint64  `json:"seed" yaml:"seed" toml:"seed"`

	// Environment is the simulated person's answer model.
	Environment string `json:"environment" yaml:"environment" toml:"environment"`

	// Behavior is the simulated person's location/activity source.
	Behavior string `json:"behavior" yaml:"behavior" toml:"behavior"`
}

// AgentConfig configures the notification policy.
type AgentConfig struct {
	Kind            string  `json:"kind" yaml:"kind" toml:"kind"`
	SendProbability float64 `json:"send_probability" yaml:"send_probability" toml:"send_probability"`
	ExplorationRate float64 `json:"exploration_rate" yaml:"exploration_rate" toml:"exploration_rate"`
	MinSamples      int     `json:"min_samples" yaml:"min_samples" toml:"min_samples"`
	NegativeWeight  int     `json:"negative_weight" yaml:"negative_weight" toml:"negative_weight"`

	// ModelPath is loaded into agents that read a model file (offline).
	// Supports ${VAR} syntax.
	ModelPath string `json:"model_path,omitempty" yaml:"model_path,omitempty" toml:"model_path,omitempty"`
}

// EmulatorConfig configures nudge emulate.
type EmulatorConfig struct {
	// Root is prepended to relative emulation folders.
	Root string `json:"root,omitempty" yaml:"root,omitempty" toml:"root,omitempty"`

	// FlaggedPath lists respondents whose answers are discarded.
	FlaggedPath string `json:"flagged_path,omitempty" yaml:"flagged_path,omitempty" toml:"flagged_path,omitempty"`

	NegativeReward float64 `json:"negative_reward" yaml:"negative_reward" toml:"negative_reward"`

	// WaitMinutes bounds resume --wait. Zero waits until interrupted.
	WaitMinutes int `json:"wait_minutes" yaml:"wait_minutes" toml:"wait_minutes"`
}

// StoreConfig configures the SQLite run archive.
type StoreConfig struct {
	// DBPath is the database file. Empty disables archiving.
	DBPath string `json:"db_path,omitempty" yaml:"db_path,omitempty" toml:"db_path,omitempty"`
}

// LoggingConfig configures nudge's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables decision logging to <decision_dir>/decisions.jsonl.
	Level string `json:"level" yaml:"level" toml:"level"`

	DecisionDir string `json:"decision_dir" yaml:"decision_dir" toml:"decision_dir"`
}

// Default returns a NudgeConfig with sensible defaults.
func Default() *NudgeConfig {
	a := agent.DefaultConfig()
	return &NudgeConfig{
		Simulation: SimulationConfig{
			Weeks:          10,
			StepMinutes:    10,
			QuietFrom:      clock.DefaultQuietHours.From,
			QuietTo:        clock.DefaultQuietHours.To,
			NegativeReward: -10,
			Environment:    string(environment.KindAlwaysOK),
			Behavior:       string(behavior.KindRandom),
		},
		Agent: AgentConfig{
			Kind:            string(agent.KindQLearning),
			SendProbability: a.SendProbability,
			ExplorationRate: a.ExplorationRate,
			MinSamples:      a.MinSamples,
			NegativeWeight:  a.NegativeWeight,
		},
		Emulator: EmulatorConfig{
			NegativeReward: -5,
		},
		Logging: LoggingConfig{
			Level:       "info",
			DecisionDir: DirName,
		},
	}
}

// Dir returns the per-user configuration directory.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, DirName), nil
}

// DefaultPath returns the config file Load reads when none is given:
// config.yaml in Dir, or config.toml when only that exists.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	yamlPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return yamlPath, nil
	}
	tomlPath := filepath.Join(dir, "config.toml")
	if _, err := os.Stat(tomlPath); err == nil {
		return tomlPath, nil
	}
	return yamlPath, nil
}

// Load loads configuration from path, or from the default location when
// path is empty, and applies environment variables.
// Order: defaults -> config file -> environment variables
func Load(path string) (*NudgeConfig, error) {
	config := Default()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err == nil {
			path = p
		}
	}
	if path != "" {
		_, statErr := os.Stat(path)
		switch {
		case statErr == nil:
			fileConfig, err := LoadFromFile(path)
			if err != nil {
				return nil, fmt.Errorf("loading config file: %w", err)
			}
			config = fileConfig
		case explicit:
			return nil, fmt.Errorf("loading config file: %w", statErr)
		}
	}

	// Apply environment variable overrides
	applyEnvOverrides(config)

	return config, nil
}

// LoadFromFile loads configuration from a YAML file, or a TOML file when
// the name ends in .toml.
func LoadFromFile(path string) (*NudgeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if isTOML(path) {
		err = toml.Unmarshal(data, config)
	} else {
		err = yaml.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Expand environment variables in paths
	config.Agent.ModelPath = expandEnvVars(config.Agent.ModelPath)
	config.Emulator.Root = expandEnvVars(config.Emulator.Root)
	config.Emulator.FlaggedPath = expandEnvVars(config.Emulator.FlaggedPath)
	config.Store.DBPath = expandEnvVars(config.Store.DBPath)
	config.Logging.DecisionDir = expandEnvVars(config.Logging.DecisionDir)

	return config, nil
}

// Save writes the configuration to path in the format its extension names.
func (c *NudgeConfig) Save(path string) error {
	var (
		data []byte
		err  error
	)
	if isTOML(path) {
		data, err = toml.Marshal(c)
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// Validate checks that the configuration is valid.
func (c *NudgeConfig) Validate() error {
	s := c.Simulation
	if s.Weeks <= 0 {
		return fmt.Errorf("weeks must be positive, got %d", s.Weeks)
	}
	if s.StepMinutes <= 0 {
		return fmt.Errorf("step_minutes must be positive, got %d", s.StepMinutes)
	}
	if err := (clock.QuietHours{From: s.QuietFrom, To: s.QuietTo}).Validate(); err != nil {
		return err
	}
	if s.ReferenceWeekday < 0 || s.ReferenceWeekday > 6 {
		return fmt.Errorf("reference_weekday must be between 0 and 6, got %d", s.ReferenceWeekday)
	}
	if s.NegativeReward > 0 {
		return fmt.Errorf("simulation negative_reward must not be positive, got %g", s.NegativeReward)
	}
	if !slices.Contains(environment.Kinds(), environment.Kind(s.Environment)) {
		return fmt.Errorf("invalid environment: %s (valid: %s)", s.Environment, joinKinds(environment.Kinds()))
	}
	if s.Behavior != string(behavior.KindRandom) && s.Behavior != string(behavior.KindTrace) {
		return fmt.Errorf("invalid behavior: %s (valid: random, trace)", s.Behavior)
	}

	if !slices.Contains(agent.Kinds(), agent.Kind(c.Agent.Kind)) {
		return fmt.Errorf("invalid agent: %s (valid: %s)", c.Agent.Kind, joinKinds(agent.Kinds()))
	}
	if err := c.AgentSettings(0).Validate(); err != nil {
		return err
	}

	if c.Emulator.NegativeReward > 0 {
		return fmt.Errorf("emulator negative_reward must not be positive, got %g", c.Emulator.NegativeReward)
	}
	if c.Emulator.WaitMinutes < 0 {
		return fmt.Errorf("wait_minutes must be non-negative, got %d", c.Emulator.WaitMinutes)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// AgentSettings returns the agent construction settings for the given
// dismissal reward.
func (c *NudgeConfig) AgentSettings(negativeReward float64) agent.Config {
	return agent.Config{
		NegativeReward:  negativeReward,
		Seed:            c.Simulation.Seed,
		SendProbability: c.Agent.SendProbability,
		ExplorationRate: c.Agent.ExplorationRate,
		MinSamples:      c.Agent.MinSamples,
		NegativeWeight:  c.Agent.NegativeWeight,
	}
}

func joinKinds[K ~string](kinds []K) string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *NudgeConfig) {
	if v := os.Getenv("NUDGE_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}

	if v := os.Getenv("NUDGE_SEED"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			config.Simulation.Seed = n
		}
	}

	if v := os.Getenv("NUDGE_WEEKS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Simulation.Weeks = n
		}
	}

	if v := os.Getenv("NUDGE_AGENT"); v != "" {
		config.Agent.Kind = v
	}

	// Applies to both simulation and emulation.
	if v := os.Getenv("NUDGE_NEGATIVE_REWARD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Simulation.NegativeReward = f
			config.Emulator.NegativeReward = f
		}
	}

	if v := os.Getenv("NUDGE_DB_PATH"); v != "" {
		config.Store.DBPath = v
	}

	if v := os.Getenv("NUDGE_FLAGGED_PATH"); v != "" {
		config.Emulator.FlaggedPath = v
	}

	if v := os.Getenv("NUDGE_EMULATOR_ROOT"); v != "" {
		config.Emulator.Root = v
	}
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
