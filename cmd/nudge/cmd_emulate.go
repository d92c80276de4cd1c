package main

import (
	"bufio"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/nvandessel/nudge/internal/agent"
	"github.com/nvandessel/nudge/internal/analysis"
	"github.com/nvandessel/nudge/internal/behavior"
	"github.com/nvandessel/nudge/internal/emulator"
	"github.com/nvandessel/nudge/internal/environment"
	"github.com/nvandessel/nudge/internal/models"
	"github.com/nvandessel/nudge/internal/rng"
	"github.com/nvandessel/nudge/internal/store"
	"github.com/spf13/cobra"
)

func newEmulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "emulate",
		Short: "Run an agent against crowd-sourced answers, one round at a time",
		Long: `Run a batch agent against real people, one round of days at a time.

Each round writes the notifications the agent would send to
ddd-ddd.action.csv in the emulation folder. Publish those questions on the
crowd-sourcing platform, place the answers next to them as
ddd-ddd.response.csv and run 'nudge emulate resume' to feed the rewards to
the agent and generate the next round.`,
	}

	cmd.AddCommand(
		newEmulateCreateCmd(),
		newEmulateResumeCmd(),
		newEmulateStatusCmd(),
		newEmulateFakeResponseCmd(),
	)
	return cmd
}

// emulationOptions builds emulator options from the configuration.
func emulationOptions(a *app) emulator.Options {
	return emulator.Options{
		NegativeReward: a.cfg.Emulator.NegativeReward,
		RefWeekday:     a.cfg.Simulation.ReferenceWeekday,
		FlaggedPath:    a.cfg.Emulator.FlaggedPath,
		Logger:         a.logger,
		Decisions:      a.decisions,
	}
}

// emulationFolder resolves a relative folder against emulator.root.
func emulationFolder(a *app, folder string) string {
	if a.cfg.Emulator.Root != "" && !filepath.IsAbs(folder) {
		return filepath.Join(a.cfg.Emulator.Root, folder)
	}
	return folder
}

type roundResult struct {
	Start     int    `json:"start_day"`
	End       int    `json:"end_day"`
	Action    string `json:"action_file"`
	Sent      int    `json:"sent"`
	Savepoint string `json:"savepoint"`
}

// nextRound generates the current round's notifications and saves the
// emulator.
func nextRound(e *emulator.Emulator) (roundResult, error) {
	start, end := e.Round()
	action, sent, err := e.Generate()
	if err != nil {
		return roundResult{}, err
	}
	sp, err := e.Savepoint()
	if err != nil {
		return roundResult{}, err
	}
	return roundResult{Start: start, End: end, Action: action, Sent: sent, Savepoint: sp}, nil
}

func printRound(cmd *cobra.Command, r roundResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Round %03d-%03d: %d notifications written to %s\n", r.Start, r.End, r.Sent, r.Action)
	fmt.Fprintf(out, "Place the answers in %s, then run 'nudge emulate resume'.\n",
		emulator.FileName(r.Start, r.End, emulator.FileResponse, "csv"))
}

func newEmulateCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <folder>",
		Short: "Start an emulation and generate its first round",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			kind := a.cfg.Agent.Kind
			if cmd.Flags().Changed("agent") {
				kind, _ = cmd.Flags().GetString("agent")
			}
			behaviorKind := a.cfg.Simulation.Behavior
			if cmd.Flags().Changed("behavior") {
				behaviorKind, _ = cmd.Flags().GetString("behavior")
			}
			seed := a.cfg.Simulation.Seed
			if cmd.Flags().Changed("seed") {
				seed, _ = cmd.Flags().GetUint64("seed")
			}
			traces, _ := cmd.Flags().GetStringSlice("trace")
			overwrite, _ := cmd.Flags().GetBool("overwrite")

			settings := a.cfg.AgentSettings(a.cfg.Emulator.NegativeReward)
			settings.Seed = seed
			ag, err := agent.New(agent.Kind(kind), agent.ModeBatch, settings)
			if err != nil {
				return err
			}
			ag.SetLogger(a.logger, a.decisions)
			if err := loadAgentModel(cmd, a, ag); err != nil {
				return err
			}

			// Route files are reopened on resume, so store absolute paths.
			for i, p := range traces {
				if traces[i], err = filepath.Abs(p); err != nil {
					return err
				}
			}
			beh, err := behavior.New(behavior.Kind(behaviorKind), seed+2, traces)
			if err != nil {
				return err
			}
			logTraceSummary(a, beh)

			opts := emulationOptions(a)
			opts.Overwrite = overwrite
			e, err := emulator.Create(emulationFolder(a, args[0]), beh, ag, opts)
			if err != nil {
				return err
			}
			r, err := nextRound(e)
			if err != nil {
				return err
			}

			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"folder": e.Folder(),
					"agent":  kind,
					"round":  r,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created emulation in %s (agent %s)\n", e.Folder(), kind)
			printRound(cmd, r)
			return nil
		},
	}

	cmd.Flags().String("agent", "", "Agent kind (default from config)")
	cmd.Flags().String("behavior", "", "Behavior: random or trace")
	cmd.Flags().StringSlice("trace", nil, "Route files for the trace behavior")
	cmd.Flags().Uint64("seed", 0, "Random seed (default from config)")
	cmd.Flags().String("model", "", "Model file to load into the agent")
	cmd.Flags().Bool("overwrite", false, "Replace an existing emulation folder")
	return cmd
}

func newEmulateResumeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume <folder>",
		Short: "Process the current round's answers and generate the next round",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			yes, _ := cmd.Flags().GetBool("yes")
			wait, _ := cmd.Flags().GetBool("wait")

			e, err := emulator.Restore(emulationFolder(a, args[0]), emulationOptions(a))
			if err != nil {
				return err
			}

			var (
				processed *roundSummary
				round     []models.EmulationRecord
			)
			if e.Phase() == emulator.PhaseAwaitingRewards {
				response, err := awaitResponse(cmd, a, e, wait)
				if err != nil {
					return err
				}
				if !yes && !a.jsonOut {
					ok, err := confirm(cmd, fmt.Sprintf("Process answers from %s?", filepath.Base(response)))
					if err != nil {
						return err
					}
					if !ok {
						fmt.Fprintln(cmd.OutOrStdout(), "Aborted; nothing changed.")
						return nil
					}
				}

				start, end := e.Round()
				before := len(e.Records())
				if err := e.ProcessRewards(); err != nil {
					return err
				}
				round = e.Records()[before:]
				line, err := analysis.Format(round, summaryTemplate)
				if err != nil {
					return err
				}
				processed = &roundSummary{Start: start, End: end, Report: newPeriodReport(analysis.Summarize(round)), line: line}
			}

			r, err := nextRound(e)
			if err != nil {
				return err
			}
			// Only archive once the next savepoint holds the round.
			if processed != nil {
				if err := archiveRound(cmd, a, e, round); err != nil {
					return err
				}
			}

			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"folder":    e.Folder(),
					"processed": processed,
					"report":    newReport(e.Analyzer()),
					"round":     r,
				})
			}
			out := cmd.OutOrStdout()
			if processed != nil {
				fmt.Fprintf(out, "Round %03d-%03d processed: %s\n", processed.Start, processed.End, processed.line)
				fmt.Fprintln(out, "Results so far:")
			}
			if err := printReport(out, e.Analyzer()); err != nil {
				return err
			}
			printRound(cmd, r)
			return nil
		},
	}

	cmd.Flags().Bool("yes", false, "Process the answers without asking")
	cmd.Flags().Bool("wait", false, "Wait for the response file to appear")
	cmd.Flags().String("db", "", "Archive processed rounds in this SQLite database")
	return cmd
}

type roundSummary struct {
	Start  int          `json:"start_day"`
	End    int          `json:"end_day"`
	Report periodReport `json:"report"`

	line string
}

// awaitResponse returns the current round's response file. With wait set
// it blocks until the file appears, an interrupt arrives, or
// emulator.wait_minutes pass.
func awaitResponse(cmd *cobra.Command, a *app, e *emulator.Emulator, wait bool) (string, error) {
	path, err := e.ProbeResponse()
	if err != nil || path != "" {
		return path, err
	}
	start, end := e.Round()
	name := emulator.FileName(start, end, emulator.FileResponse, "csv")
	if !wait {
		return "", fmt.Errorf("no answers yet: place them in %s", filepath.Join(e.Folder(), name))
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()
	if m := a.cfg.Emulator.WaitMinutes; m > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(m)*time.Minute)
		defer cancel()
	}
	a.logger.Info("waiting for answers", "file", name, "folder", e.Folder())
	return emulator.WaitForResponse(ctx, e.Folder(), start, end)
}

// confirm asks a yes/no question on the command's input.
func confirm(cmd *cobra.Command, question string) (bool, error) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N] ", question)
	answer, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && answer == "" {
		return false, nil
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes", nil
}

// archiveRound appends a processed round to the emulation's run when --db
// or store.db_path is set. The run ID is derived from the folder, so every
// round lands in the same run.
func archiveRound(cmd *cobra.Command, a *app, e *emulator.Emulator, round []models.EmulationRecord) error {
	path := a.cfg.Store.DBPath
	if cmd.Flags().Changed("db") {
		path, _ = cmd.Flags().GetString("db")
	}
	if path == "" {
		return nil
	}

	st, err := store.Open(path)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	id, err := st.CreateRun(ctx, store.Run{
		ID:    store.EmulationRunID(e.Folder()),
		Kind:  store.KindEmulation,
		Agent: string(e.Agent().Kind()),
		Label: filepath.Base(e.Folder()),
	})
	if err != nil {
		return err
	}
	if err := st.AppendSteps(ctx, id, round); err != nil {
		return err
	}
	a.logger.Debug("round archived", "db", path, "run_id", id, "steps", len(round))
	return nil
}

func newEmulateStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <folder>",
		Short: "Show an emulation's round, phase and results so far",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			e, err := emulator.Restore(emulationFolder(a, args[0]), emulationOptions(a))
			if err != nil {
				return err
			}
			start, end := e.Round()
			var response string
			if e.Phase() == emulator.PhaseAwaitingRewards {
				if response, err = e.ProbeResponse(); err != nil {
					return err
				}
			}

			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"folder":        e.Folder(),
					"agent":         e.Agent().Kind(),
					"start_day":     start,
					"end_day":       end,
					"phase":         e.Phase().String(),
					"response_file": response,
					"report":        newReport(e.Analyzer()),
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Emulation %s (agent %s)\n", e.Folder(), e.Agent().Kind())
			fmt.Fprintf(out, "Round %03d-%03d: %s\n", start, end, e.Phase())
			if response != "" {
				fmt.Fprintf(out, "Answers ready in %s\n", filepath.Base(response))
			}
			if len(e.Records()) == 0 {
				fmt.Fprintln(out, "No completed rounds yet.")
				return nil
			}
			return printReport(out, e.Analyzer())
		},
	}
}

func newEmulateFakeResponseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fake-response <action.csv>",
		Short: "Answer a round's questions with a simulated person",
		Long: `Answer every question of a round's action file by sampling a simulated
person, writing ddd-ddd.response.csv next to it. Useful for rehearsing an
emulation without the crowd-sourcing platform.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			kind := a.cfg.Simulation.Environment
			if cmd.Flags().Changed("env") {
				kind, _ = cmd.Flags().GetString("env")
			}
			seed := a.cfg.Simulation.Seed
			if cmd.Flags().Changed("seed") {
				seed, _ = cmd.Flags().GetUint64("seed")
			}
			surveys, _ := cmd.Flags().GetStringSlice("survey")

			env, err := buildEnvironment(a, environment.Kind(kind), seed+1, surveys)
			if err != nil {
				return err
			}
			path, n, err := emulator.FakeResponses(args[0], env, rng.New(seed+3))
			if err != nil {
				return err
			}

			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"response_file": path, "answers": n})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d answers to %s\n", n, path)
			return nil
		},
	}

	cmd.Flags().String("env", "", "Environment: always-ok, stubborn, less-stubborn, survey")
	cmd.Flags().StringSlice("survey", nil, "Crowd response files for the survey environment")
	cmd.Flags().Uint64("seed", 0, "Random seed (default from config)")
	return cmd
}
