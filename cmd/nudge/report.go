package main

import (
	"fmt"
	"io"

	"github.com/nvandessel/nudge/internal/analysis"
)

const summaryTemplate = "reward $totalReward, sent $numNotifications, " +
	"accepted $numAcceptingNotifications ($ratioAcceptingNotifications), " +
	"ignored $numIgnoringNotifications, " +
	"dismissed $numDismissingNotifications ($ratioDismissingNotifications)"

// periodReport is the JSON form of one summary.
type periodReport struct {
	analysis.Summary
	AcceptRatio            float64 `json:"accept_ratio"`
	IgnoreRatio            float64 `json:"ignore_ratio"`
	DismissRatio           float64 `json:"dismiss_ratio"`
	AcceptExcludingIgnores float64 `json:"accept_excluding_ignores"`
}

func newPeriodReport(s analysis.Summary) periodReport {
	return periodReport{
		Summary:                s,
		AcceptRatio:            s.AcceptRatio(),
		IgnoreRatio:            s.IgnoreRatio(),
		DismissRatio:           s.DismissRatio(),
		AcceptExcludingIgnores: s.AcceptExcludingIgnores(),
	}
}

type report struct {
	Total periodReport   `json:"total"`
	Weeks []periodReport `json:"weeks"`
}

func newReport(a *analysis.Analyzer) report {
	r := report{Total: newPeriodReport(a.Summary())}
	for _, week := range a.ByWeek() {
		r.Weeks = append(r.Weeks, newPeriodReport(analysis.Summarize(week)))
	}
	return r
}

// printReport writes the weekly and overall summaries as text.
func printReport(w io.Writer, a *analysis.Analyzer) error {
	weeks, err := a.FormatWeeks(summaryTemplate)
	if err != nil {
		return err
	}
	for i, line := range weeks {
		fmt.Fprintf(w, "  week %2d: %s\n", i+1, line)
	}
	total, err := analysis.Format(a.Records(), summaryTemplate)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "  total:   %s\n", total)
	return nil
}
