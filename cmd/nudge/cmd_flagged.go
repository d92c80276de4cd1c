package main

import (
	"fmt"
	"os"
	"time"

	"github.com/nvandessel/nudge/internal/crowd"
	"github.com/nvandessel/nudge/internal/flagged"
	"github.com/spf13/cobra"
)

func newFlaggedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flagged",
		Short: "Manage respondents whose answers are discarded",
		Long: `Manage the flagged-respondent list (emulator.flagged_path).

Answers from listed respondents are skipped when an emulation processes a
round and when a survey environment is built.`,
	}
	cmd.PersistentFlags().String("list", "", "Flagged list file (default from config)")

	cmd.AddCommand(
		newFlaggedDetectCmd(),
		newFlaggedListCmd(),
		newFlaggedAddCmd(),
	)
	return cmd
}

// flaggedPath returns --list or the configured list.
func flaggedPath(cmd *cobra.Command, a *app) (string, error) {
	path := a.cfg.Emulator.FlaggedPath
	if cmd.Flags().Changed("list") {
		path, _ = cmd.Flags().GetString("list")
	}
	if path == "" {
		return "", fmt.Errorf("no flagged list: set emulator.flagged_path or pass --list")
	}
	return path, nil
}

func newFlaggedDetectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect <response.csv>...",
		Short: "Find respondents who give the same answer almost every time",
		Long: `Find respondents who, within a look-back window, answered at least 20
questions and gave one answer more than 80% of the time.

Examples:
  nudge flagged detect 000-006.response.csv
  nudge flagged detect *.response.csv --windows 60,1440 --append`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			windows, _ := cmd.Flags().GetIntSlice("windows")
			appendIDs, _ := cmd.Flags().GetBool("append")
			now := time.Now()
			if s, _ := cmd.Flags().GetString("now"); s != "" {
				if now, err = time.Parse(time.RFC3339, s); err != nil {
					return fmt.Errorf("invalid --now: %w", err)
				}
			}

			var responses []crowd.Response
			for _, p := range args {
				rs, err := readResponseFile(p)
				if err != nil {
					return err
				}
				responses = append(responses, rs...)
			}

			// The list is optional unless --append needs it.
			path := a.cfg.Emulator.FlaggedPath
			if cmd.Flags().Changed("list") || appendIDs {
				if path, err = flaggedPath(cmd, a); err != nil {
					return err
				}
			}
			listed, err := flagged.Load(path)
			if err != nil {
				return err
			}

			result, usable := flagged.Detect(responses, now, windows, listed)
			a.logger.Debug("responses scanned", "files", len(args), "responses", len(responses), "usable", usable)

			added := 0
			if appendIDs {
				var ids []string
				for _, w := range result {
					for _, s := range w.Suspects {
						ids = append(ids, s.WorkerID)
					}
				}
				if added, err = flagged.Append(path, ids); err != nil {
					return err
				}
			}

			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"usable":  usable,
					"windows": result,
					"added":   added,
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d usable responses\n", usable)
			for _, w := range result {
				fmt.Fprintf(out, "Last %d minutes: %d flagged\n", w.Minutes, len(w.Suspects))
				for _, s := range w.Suspects {
					mark := ""
					if s.Listed {
						mark = " (listed)"
					}
					fmt.Fprintf(out, "  %s  accept %d, later %d, dismiss %d%s\n",
						s.WorkerID, s.Counts.Accept, s.Counts.Later, s.Counts.Dismiss, mark)
				}
			}
			if appendIDs {
				fmt.Fprintf(out, "Added %d respondents to %s\n", added, path)
			}
			return nil
		},
	}

	cmd.Flags().IntSlice("windows", flagged.DefaultWindows, "Look-back windows in minutes")
	cmd.Flags().String("now", "", "Reference time (RFC 3339, default now)")
	cmd.Flags().Bool("append", false, "Add the flagged respondents to the list")
	return cmd
}

func readResponseFile(path string) ([]crowd.Response, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening response file: %w", err)
	}
	defer f.Close()
	rs, err := crowd.ReadResponses(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return rs, nil
}

func newFlaggedListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the flagged respondents",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			path, err := flaggedPath(cmd, a)
			if err != nil {
				return err
			}
			set, err := flagged.Load(path)
			if err != nil {
				return err
			}
			ids := set.Sorted()

			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"path": path, "respondents": ids})
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
}

func newFlaggedAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <worker-id>...",
		Short: "Add respondents to the flagged list",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			path, err := flaggedPath(cmd, a)
			if err != nil {
				return err
			}
			added, err := flagged.Append(path, args)
			if err != nil {
				return err
			}

			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"path": path, "added": added})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %d respondents to %s\n", added, path)
			return nil
		},
	}
}
