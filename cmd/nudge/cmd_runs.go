package main

import (
	"fmt"

	"github.com/nvandessel/nudge/internal/analysis"
	"github.com/nvandessel/nudge/internal/store"
	"github.com/spf13/cobra"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect archived simulation and emulation runs",
		RunE:  runRunsList,
	}
	cmd.PersistentFlags().String("db", "", "Run database (default from config)")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List archived runs, newest first",
			RunE:  runRunsList,
		},
		&cobra.Command{
			Use:   "show <run-id>",
			Short: "Show a run's weekly results",
			Args:  cobra.ExactArgs(1),
			RunE:  runRunsShow,
		},
	)
	return cmd
}

// openRunStore opens --db or store.db_path.
func openRunStore(cmd *cobra.Command, a *app) (*store.Store, error) {
	path := a.cfg.Store.DBPath
	if cmd.Flags().Changed("db") {
		path, _ = cmd.Flags().GetString("db")
	}
	if path == "" {
		return nil, fmt.Errorf("no run database: set store.db_path or pass --db")
	}
	return store.Open(path)
}

func runRunsList(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	st, err := openRunStore(cmd, a)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.Summaries(cmd.Context())
	if err != nil {
		return err
	}

	if a.jsonOut {
		return writeJSON(cmd.OutOrStdout(), runs)
	}
	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs archived.")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(out, "%s  %-10s %-12s %5d steps  %4d sent  %4d accepted  %4d dismissed  reward %g",
			r.ID, r.Kind, r.Agent, r.Steps, r.Notifications, r.Accepted, r.Dismissed, r.TotalReward)
		if r.Label != "" {
			fmt.Fprintf(out, "  %s", r.Label)
		}
		fmt.Fprintln(out)
	}
	return nil
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	st, err := openRunStore(cmd, a)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	run, err := st.Run(ctx, args[0])
	if err != nil {
		return err
	}
	records, err := st.Steps(ctx, run.ID)
	if err != nil {
		return err
	}
	days := 0
	if n := len(records); n > 0 {
		days = records[n-1].Context.DaysPassed + 1
	}
	an := analysis.New(records, days)

	if a.jsonOut {
		return writeJSON(cmd.OutOrStdout(), map[string]any{
			"run":    run,
			"steps":  len(records),
			"report": newReport(an),
		})
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s (%s, agent %s", run.ID, run.Kind, run.Agent)
	if run.Environment != "" {
		fmt.Fprintf(out, ", environment %s", run.Environment)
	}
	if run.Behavior != "" {
		fmt.Fprintf(out, ", behavior %s", run.Behavior)
	}
	fmt.Fprintf(out, ") created %s\n", run.CreatedAt.Format("2006-01-02 15:04"))
	return printReport(out, an)
}
