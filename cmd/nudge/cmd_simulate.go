package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nvandessel/nudge/internal/agent"
	"github.com/nvandessel/nudge/internal/analysis"
	"github.com/nvandessel/nudge/internal/behavior"
	"github.com/nvandessel/nudge/internal/clock"
	"github.com/nvandessel/nudge/internal/controller"
	"github.com/nvandessel/nudge/internal/crowd"
	"github.com/nvandessel/nudge/internal/environment"
	"github.com/nvandessel/nudge/internal/flagged"
	"github.com/nvandessel/nudge/internal/models"
	"github.com/nvandessel/nudge/internal/store"
	"github.com/spf13/cobra"
)

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run an agent against a simulated person",
		Long: `Run an interactive agent against a simulated person for a number of weeks.

Every 10 minutes outside quiet hours the agent decides whether to send a
notification; the simulated person's reaction is fed back as the reward.

Examples:
  nudge simulate --agent qlearning --env stubborn --weeks 20
  nudge simulate --agent bandit --env survey --survey responses.csv --db runs.db
  nudge simulate --agent collector --save-model collected.csv
  nudge simulate --agent offline --model collected.csv --behavior trace --trace week1.tsv`,
		RunE: runSimulate,
	}

	cmd.Flags().String("agent", "", "Agent kind (default from config)")
	cmd.Flags().String("env", "", "Environment: always-ok, stubborn, less-stubborn, survey")
	cmd.Flags().String("behavior", "", "Behavior: random or trace")
	cmd.Flags().Int("weeks", 0, "Simulated weeks (default from config)")
	cmd.Flags().Uint64("seed", 0, "Random seed (default from config)")
	cmd.Flags().String("db", "", "Archive the run in this SQLite database")
	cmd.Flags().String("label", "", "Label stored with the archived run")
	cmd.Flags().StringSlice("trace", nil, "Route files for the trace behavior")
	cmd.Flags().StringSlice("survey", nil, "Crowd response files for the survey environment")
	cmd.Flags().String("model", "", "Model file to load into the agent")
	cmd.Flags().String("save-model", "", "Write the agent's model file after the run")
	return cmd
}

// simulation holds the resolved settings of one nudge simulate run.
type simulation struct {
	Agent       string   `json:"agent"`
	Environment string   `json:"environment"`
	Behavior    string   `json:"behavior"`
	Weeks       int      `json:"weeks"`
	Seed        uint64   `json:"seed"`
	Traces      []string `json:"traces,omitempty"`
	Surveys     []string `json:"surveys,omitempty"`

	Controller controller.Config `json:"controller"`
}

func resolveSimulation(cmd *cobra.Command, a *app) simulation {
	sim := a.cfg.Simulation
	s := simulation{
		Agent:       a.cfg.Agent.Kind,
		Environment: sim.Environment,
		Behavior:    sim.Behavior,
		Weeks:       sim.Weeks,
		Seed:        sim.Seed,
	}
	if cmd.Flags().Changed("agent") {
		s.Agent, _ = cmd.Flags().GetString("agent")
	}
	if cmd.Flags().Changed("env") {
		s.Environment, _ = cmd.Flags().GetString("env")
	}
	if cmd.Flags().Changed("behavior") {
		s.Behavior, _ = cmd.Flags().GetString("behavior")
	}
	if cmd.Flags().Changed("weeks") {
		s.Weeks, _ = cmd.Flags().GetInt("weeks")
	}
	if cmd.Flags().Changed("seed") {
		s.Seed, _ = cmd.Flags().GetUint64("seed")
	}
	s.Traces, _ = cmd.Flags().GetStringSlice("trace")
	s.Surveys, _ = cmd.Flags().GetStringSlice("survey")

	s.Controller = controller.Config{
		Weeks:          s.Weeks,
		StepMinutes:    sim.StepMinutes,
		Quiet:          clock.QuietHours{From: sim.QuietFrom, To: sim.QuietTo},
		RefWeekday:     sim.ReferenceWeekday,
		NegativeReward: sim.NegativeReward,
		Seed:           s.Seed,
	}
	return s
}

func runSimulate(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	s := resolveSimulation(cmd, a)

	settings := a.cfg.AgentSettings(s.Controller.NegativeReward)
	settings.Seed = s.Seed
	ag, err := agent.New(agent.Kind(s.Agent), agent.ModeInteractive, settings)
	if err != nil {
		return err
	}
	ag.SetLogger(a.logger, a.decisions)
	if err := loadAgentModel(cmd, a, ag); err != nil {
		return err
	}

	// Each component draws from its own stream.
	env, err := buildEnvironment(a, environment.Kind(s.Environment), s.Seed+1, s.Surveys)
	if err != nil {
		return err
	}
	beh, err := behavior.New(behavior.Kind(s.Behavior), s.Seed+2, s.Traces)
	if err != nil {
		return err
	}
	logTraceSummary(a, beh)

	c, err := controller.New(s.Controller, ag, env, beh)
	if err != nil {
		return err
	}
	c.SetLogger(a.logger, a.decisions)

	ctx, stop := signalContext(cmd.Context())
	defer stop()
	steps, runErr := c.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	if runErr != nil {
		a.logger.Warn("simulation interrupted", "ticks", len(steps))
	}

	records := make([]models.EmulationRecord, len(steps))
	for i, st := range steps {
		records[i] = st.Record()
	}

	if path, _ := cmd.Flags().GetString("save-model"); path != "" {
		if err := agent.SaveModel(ag, path); err != nil {
			return err
		}
		a.logger.Info("model saved", "path", path)
	}

	runID, err := archiveSimulation(cmd, a, s, records)
	if err != nil {
		return err
	}

	an := analysis.New(records, s.Weeks*7)
	out := cmd.OutOrStdout()
	if a.jsonOut {
		if err := writeJSON(out, map[string]any{
			"run_id":     runID,
			"simulation": s,
			"ticks":      len(steps),
			"report":     newReport(an),
		}); err != nil {
			return err
		}
		return runErr
	}

	fmt.Fprintf(out, "Simulated %d weeks: agent %s, environment %s, behavior %s (%d ticks)\n",
		s.Weeks, s.Agent, s.Environment, s.Behavior, len(steps))
	if err := printReport(out, an); err != nil {
		return err
	}
	if runID != "" {
		fmt.Fprintf(out, "Archived as run %s\n", runID)
	}
	return runErr
}

// loadAgentModel loads --model, or the configured model path, into ag.
func loadAgentModel(cmd *cobra.Command, a *app, ag agent.Agent) error {
	path := a.cfg.Agent.ModelPath
	if cmd.Flags().Changed("model") {
		path, _ = cmd.Flags().GetString("model")
	}
	if path == "" {
		return nil
	}
	if err := agent.LoadModel(ag, path); err != nil {
		return fmt.Errorf("loading model %s: %w", path, err)
	}
	a.logger.Info("model loaded", "path", path, "agent", ag.Kind())
	return nil
}

// buildEnvironment builds a simulated person. Survey environments skip
// answers from flagged respondents.
func buildEnvironment(a *app, kind environment.Kind, seed uint64, surveys []string) (environment.Environment, error) {
	cfg := environment.Config{Seed: seed, SurveyFiles: surveys, Logger: a.logger}
	if kind == environment.KindSurvey {
		skip, err := flagged.Load(a.cfg.Emulator.FlaggedPath)
		if err != nil {
			return nil, err
		}
		cfg.Filter = func(r crowd.Response) bool { return !skip.Has(r.WorkerID) }
	}
	return environment.New(kind, cfg)
}

func logTraceSummary(a *app, b behavior.Behavior) {
	t, ok := b.(*behavior.Trace)
	if !ok {
		return
	}
	records, missingLoc, missingAct := t.Summary()
	a.logger.Info("routes loaded", "records", records, "missing_location", missingLoc, "missing_activity", missingAct)
}

// archiveSimulation stores the run when --db or store.db_path is set and
// returns its ID.
func archiveSimulation(cmd *cobra.Command, a *app, s simulation, records []models.EmulationRecord) (string, error) {
	path := a.cfg.Store.DBPath
	if cmd.Flags().Changed("db") {
		path, _ = cmd.Flags().GetString("db")
	}
	if path == "" {
		return "", nil
	}
	label, _ := cmd.Flags().GetString("label")
	settings, err := json.Marshal(s)
	if err != nil {
		return "", err
	}

	st, err := store.Open(path)
	if err != nil {
		return "", err
	}
	defer st.Close()

	ctx := cmd.Context()
	id, err := st.CreateRun(ctx, store.Run{
		Kind:        store.KindSimulation,
		Agent:       s.Agent,
		Environment: s.Environment,
		Behavior:    s.Behavior,
		Label:       label,
		Config:      settings,
	})
	if err != nil {
		return "", err
	}
	if err := st.AppendSteps(ctx, id, records); err != nil {
		return "", err
	}
	a.logger.Debug("run archived", "db", path, "run_id", id, "steps", len(records))
	return id, nil
}
