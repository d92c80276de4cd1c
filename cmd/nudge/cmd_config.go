package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/nvandessel/nudge/internal/config"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage nudge configuration",
		Long: `View and modify nudge configuration settings.

Configuration is stored in ~/.nudge/config.yaml (or config.toml), unless
--config names another file. NUDGE_* environment variables override it.

Examples:
  nudge config list                            # Show all settings
  nudge config get agent.kind                  # Get a specific setting
  nudge config set agent.kind bandit-prob      # Set a setting
  nudge config set store.db_path ~/nudge/runs.db`,
	}

	cmd.AddCommand(
		newConfigListCmd(),
		newConfigGetCmd(),
		newConfigSetCmd(),
	)

	return cmd
}

// configKeys lists the settable keys in display order.
var configKeys = []string{
	"simulation.weeks",
	"simulation.step_minutes",
	"simulation.quiet_from",
	"simulation.quiet_to",
	"simulation.reference_weekday",
	"simulation.negative_reward",
	"simulation.seed",
	"simulation.environment",
	"simulation.behavior",
	"agent.kind",
	"agent.send_probability",
	"agent.exploration_rate",
	"agent.min_samples",
	"agent.negative_weight",
	"agent.model_path",
	"emulator.root",
	"emulator.flagged_path",
	"emulator.negative_reward",
	"emulator.wait_minutes",
	"store.db_path",
	"logging.level",
	"logging.decision_dir",
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			path, _ := cmd.Flags().GetString("config")

			cfg, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), cfg)
			}

			out := cmd.OutOrStdout()
			section := ""
			for _, key := range configKeys {
				prefix, _, _ := strings.Cut(key, ".")
				if prefix != section {
					if section != "" {
						fmt.Fprintln(out)
					}
					fmt.Fprintf(out, "%s:\n", prefix)
					section = prefix
				}
				value, _ := getConfigValue(cfg, key)
				fmt.Fprintf(out, "  %-30s %s\n", key+":", valueOrDefault(fmt.Sprint(value), "(not set)"))
			}
			return nil
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			path, _ := cmd.Flags().GetString("config")
			key := args[0]

			cfg, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			value, found := getConfigValue(cfg, key)
			if !found {
				return fmt.Errorf("unknown configuration key: %s", key)
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"key":   key,
					"value": value,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", key, value)
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			key, value := args[0], args[1]

			// Edit the file itself; environment overrides are not persisted.
			path, cfg, err := loadConfigFile(cmd)
			if err != nil {
				return err
			}
			if err := setConfigValue(cfg, key, value); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := cfg.Save(path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"status": "updated",
					"key":    key,
					"value":  value,
					"path":   path,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s in %s\n", key, value, path)
			return nil
		},
	}
}

// loadConfigFile reads the file named by --config, or the default config
// file, without environment overrides. A missing file yields defaults.
func loadConfigFile(cmd *cobra.Command) (string, *config.NudgeConfig, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return "", nil, err
		}
		path = p
	}
	cfg, err := config.LoadFromFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return path, config.Default(), nil
	}
	if err != nil {
		return "", nil, fmt.Errorf("failed to load config: %w", err)
	}
	return path, cfg, nil
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.NudgeConfig, key string) (any, bool) {
	switch key {
	case "simulation.weeks":
		return cfg.Simulation.Weeks, true
	case "simulation.step_minutes":
		return cfg.Simulation.StepMinutes, true
	case "simulation.quiet_from":
		return cfg.Simulation.QuietFrom, true
	case "simulation.quiet_to":
		return cfg.Simulation.QuietTo, true
	case "simulation.reference_weekday":
		return cfg.Simulation.ReferenceWeekday, true
	case "simulation.negative_reward":
		return cfg.Simulation.NegativeReward, true
	case "simulation.seed":
		return cfg.Simulation.Seed, true
	case "simulation.environment":
		return cfg.Simulation.Environment, true
	case "simulation.behavior":
		return cfg.Simulation.Behavior, true
	case "agent.kind":
		return cfg.Agent.Kind, true
	case "agent.send_probability":
		return cfg.Agent.SendProbability, true
	case "agent.exploration_rate":
		return cfg.Agent.ExplorationRate, true
	case "agent.min_samples":
		return cfg.Agent.MinSamples, true
	case "agent.negative_weight":
		return cfg.Agent.NegativeWeight, true
	case "agent.model_path":
		return cfg.Agent.ModelPath, true
	case "emulator.root":
		return cfg.Emulator.Root, true
	case "emulator.flagged_path":
		return cfg.Emulator.FlaggedPath, true
	case "emulator.negative_reward":
		return cfg.Emulator.NegativeReward, true
	case "emulator.wait_minutes":
		return cfg.Emulator.WaitMinutes, true
	case "store.db_path":
		return cfg.Store.DBPath, true
	case "logging.level":
		return cfg.Logging.Level, true
	case "logging.decision_dir":
		return cfg.Logging.DecisionDir, true
	default:
		return nil, false
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.NudgeConfig, key, value string) error {
	var err error
	switch key {
	case "simulation.weeks":
		cfg.Simulation.Weeks, err = parseInt(key, value)
	case "simulation.step_minutes":
		cfg.Simulation.StepMinutes, err = parseInt(key, value)
	case "simulation.quiet_from":
		cfg.Simulation.QuietFrom, err = parseInt(key, value)
	case "simulation.quiet_to":
		cfg.Simulation.QuietTo, err = parseInt(key, value)
	case "simulation.reference_weekday":
		cfg.Simulation.ReferenceWeekday, err = parseInt(key, value)
	case "simulation.negative_reward":
		cfg.Simulation.NegativeReward, err = parseFloat(key, value)
	case "simulation.seed":
		cfg.Simulation.Seed, err = strconv.ParseUint(value, 10, 64)
		if err != nil {
			err = fmt.Errorf("invalid %s: %s (must be a non-negative integer)", key, value)
		}
	case "simulation.environment":
		cfg.Simulation.Environment = value
	case "simulation.behavior":
		cfg.Simulation.Behavior = value
	case "agent.kind":
		cfg.Agent.Kind = value
	case "agent.send_probability":
		cfg.Agent.SendProbability, err = parseFloat(key, value)
	case "agent.exploration_rate":
		cfg.Agent.ExplorationRate, err = parseFloat(key, value)
	case "agent.min_samples":
		cfg.Agent.MinSamples, err = parseInt(key, value)
	case "agent.negative_weight":
		cfg.Agent.NegativeWeight, err = parseInt(key, value)
	case "agent.model_path":
		cfg.Agent.ModelPath = value
	case "emulator.root":
		cfg.Emulator.Root = value
	case "emulator.flagged_path":
		cfg.Emulator.FlaggedPath = value
	case "emulator.negative_reward":
		cfg.Emulator.NegativeReward, err = parseFloat(key, value)
	case "emulator.wait_minutes":
		cfg.Emulator.WaitMinutes, err = parseInt(key, value)
	case "store.db_path":
		cfg.Store.DBPath = value
	case "logging.level":
		cfg.Logging.Level = value
	case "logging.decision_dir":
		cfg.Logging.DecisionDir = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return err
}

func parseInt(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %s (must be an integer)", key, value)
	}
	return n, nil
}

func parseFloat(key, value string) (float64, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %s (must be a number)", key, value)
	}
	return f, nil
}

// valueOrDefault returns the value if non-empty, otherwise the default.
func valueOrDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}
