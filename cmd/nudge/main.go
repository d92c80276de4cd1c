package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/nvandessel/nudge/internal/config"
	"github.com/nvandessel/nudge/internal/logging"
	"github.com/spf13/cobra"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "nudge",
		Short: "Notification timing - learn when to interrupt",
		Long: `nudge trains agents that decide when to send a notification.

Agents are evaluated against simulated people (nudge simulate) or against
real answers gathered round by round from a crowd-sourcing platform
(nudge emulate).`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.nudge/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: info, debug, or trace")

	rootCmd.AddCommand(
		newVersionCmd(),
		newSimulateCmd(),
		newEmulateCmd(),
		newFlaggedCmd(),
		newRunsCmd(),
		newConfigCmd(),
	)
	return rootCmd
}

// app holds what every command needs: settings and loggers.
type app struct {
	cfg       *config.NudgeConfig
	logger    *slog.Logger
	decisions *logging.DecisionLogger
	jsonOut   bool
}

// loadApp reads the configuration named by --config, applies --log-level
// and builds the loggers. Callers must Close the result.
func loadApp(cmd *cobra.Command) (*app, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	jsonOut, _ := cmd.Flags().GetBool("json")
	var logger *slog.Logger
	if jsonOut {
		logger = logging.NewJSONLogger(cfg.Logging.Level, cmd.ErrOrStderr())
	} else {
		logger = logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())
	}
	return &app{
		cfg:       cfg,
		logger:    logger,
		decisions: logging.NewDecisionLogger(cfg.Logging.DecisionDir, cfg.Logging.Level),
		jsonOut:   jsonOut,
	}, nil
}

func (a *app) Close() {
	a.decisions.Close()
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	notifySignals(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
