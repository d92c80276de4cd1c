// Package analysis summarizes emulation records: reward totals, notification
// counts and acceptance ratios, overall or grouped by week and day.
package analysis

import (
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/nvandessel/nudge/internal/models"
)

// Summary aggregates a set of records.
type Summary struct {
	TotalReward   float64 `json:"total_reward"`
	Notifications int     `json:"notifications"`
	Accepted      int     `json:"accepted"`
	Ignored       int     `json:"ignored"`
	Dismissed     int     `json:"dismissed"`
}

// Summarize aggregates records. Unresolved records count toward the
// notification total but not toward any answer.
func Summarize(records []models.EmulationRecord) Summary {
	var s Summary
	for i := range records {
		r := &records[i]
		s.TotalReward += r.RewardValue()
		if !r.Send {
			continue
		}
		s.Notifications++
		switch {
		case r.IsAccepted():
			s.Accepted++
		case r.IsIgnored():
			s.Ignored++
		case r.IsDismissed():
			s.Dismissed++
		}
	}
	return s
}

// AcceptRatio is accepted over sent notifications.
func (s Summary) AcceptRatio() float64 { return ratio(s.Accepted, s.Notifications) }

// IgnoreRatio is ignored over sent notifications.
func (s Summary) IgnoreRatio() float64 { return ratio(s.Ignored, s.Notifications) }

// DismissRatio is dismissed over sent notifications.
func (s Summary) DismissRatio() float64 { return ratio(s.Dismissed, s.Notifications) }

// AcceptExcludingIgnores is accepted over accepted plus dismissed.
func (s Summary) AcceptExcludingIgnores() float64 {
	return ratio(s.Accepted, s.Accepted+s.Dismissed)
}

// ratio rounds to three digits; a zero denominator gives 0.
func ratio(num, den int) float64 {
	if den <= 0 {
		return 0
	}
	return math.Round(float64(num)/float64(den)*1000) / 1000
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var keywords = map[string]func(Summary) string{
	"totalReward":                  func(s Summary) string { return formatNumber(s.TotalReward) },
	"numNotifications":             func(s Summary) string { return strconv.Itoa(s.Notifications) },
	"numAcceptingNotifications":    func(s Summary) string { return strconv.Itoa(s.Accepted) },
	"numIgnoringNotifications":     func(s Summary) string { return strconv.Itoa(s.Ignored) },
	"numDismissingNotifications":   func(s Summary) string { return strconv.Itoa(s.Dismissed) },
	"ratioAcceptingNotifications":  func(s Summary) string { return formatNumber(s.AcceptRatio()) },
	"ratioIgnoringNotifications":   func(s Summary) string { return formatNumber(s.IgnoreRatio()) },
	"ratioDismissingNotifications": func(s Summary) string { return formatNumber(s.DismissRatio()) },
	"ratioAcceptsExcludeIgnores":   func(s Summary) string { return formatNumber(s.AcceptExcludingIgnores()) },
}

// Format expands $keyword references in tmpl with statistics of records,
// e.g. "Total rewards: $totalReward ($numNotifications sent)".
func Format(records []models.EmulationRecord, tmpl string) (string, error) {
	s := Summarize(records)
	var unknown error
	out := os.Expand(tmpl, func(name string) string {
		fn, ok := keywords[name]
		if !ok {
			if unknown == nil {
				unknown = fmt.Errorf("unknown keyword $%s", name)
			}
			return ""
		}
		return fn(s)
	})
	if unknown != nil {
		return "", unknown
	}
	return out, nil
}

// Analyzer groups the records of an emulation that has completed days days.
type Analyzer struct {
	records []models.EmulationRecord
	days    int
}

// New returns an analyzer over records.
func New(records []models.EmulationRecord, days int) *Analyzer {
	return &Analyzer{records: records, days: days}
}

// Records returns every record.
func (a *Analyzer) Records() []models.EmulationRecord { return a.records }

// Summary aggregates every record.
func (a *Analyzer) Summary() Summary { return Summarize(a.records) }

// ByWeek partitions the records by week of DaysPassed. There is one
// partition per started week, empty weeks included.
func (a *Analyzer) ByWeek() [][]models.EmulationRecord {
	return a.partition((a.days+6)/7, 7)
}

// ByDay partitions the records by DaysPassed.
func (a *Analyzer) ByDay() [][]models.EmulationRecord {
	return a.partition(a.days, 1)
}

func (a *Analyzer) partition(n, width int) [][]models.EmulationRecord {
	for _, r := range a.records {
		if i := r.Context.DaysPassed / width; i >= n {
			n = i + 1
		}
	}
	parts := make([][]models.EmulationRecord, n)
	for _, r := range a.records {
		i := r.Context.DaysPassed / width
		parts[i] = append(parts[i], r)
	}
	return parts
}

// FormatWeeks formats each weekly partition.
func (a *Analyzer) FormatWeeks(tmpl string) ([]string, error) {
	return formatAll(a.ByWeek(), tmpl)
}

// FormatDays formats each daily partition.
func (a *Analyzer) FormatDays(tmpl string) ([]string, error) {
	return formatAll(a.ByDay(), tmpl)
}

func formatAll(parts [][]models.EmulationRecord, tmpl string) ([]string, error) {
	out := make([]string, len(parts))
	for i, p := range parts {
		s, err := Format(p, tmpl)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}
