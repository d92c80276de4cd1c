package flagged

import (
	"slices"
	"strings"
	"time"

	"github.com/nvandessel/nudge/internal/crowd"
	"github.com/nvandessel/nudge/internal/models"
)

// SubmitTimeLayout is the crowd platform's submit time format.
const SubmitTimeLayout = "Mon Jan 02 15:04:05 MST 2006"

const (
	// MinAnswers is the number of answers below which nobody is flagged.
	MinAnswers = 20

	// Threshold is the share of one label above which a respondent is flagged.
	Threshold = 0.8

	minWorkerIDLen = 8
)

// DefaultWindows are the look-back windows in minutes.
var DefaultWindows = []int{10, 30, 60, 180, 144000}

// Pacific zone abbreviations the platform reports; time.Parse only knows
// the local zone's abbreviations.
var zoneOffsets = map[string]int{
	"PDT": -7 * 3600,
	"PST": -8 * 3600,
}

// ParseSubmitTime parses a SubmitTime value.
func ParseSubmitTime(s string) (time.Time, error) {
	t, err := time.Parse(SubmitTimeLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	name, offset := t.Zone()
	if want, ok := zoneOffsets[name]; ok && offset != want {
		t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.FixedZone(name, want))
	}
	return t, nil
}

// Counts tallies one respondent's answers.
type Counts struct {
	Accept  int `json:"accept"`
	Later   int `json:"later"`
	Dismiss int `json:"dismiss"`
}

// Total returns the number of answers.
func (c Counts) Total() int { return c.Accept + c.Later + c.Dismiss }

// Flagged reports whether the respondent gave at least MinAnswers answers
// and one label exceeds Threshold of them.
func (c Counts) Flagged() bool {
	total := c.Total()
	if total < MinAnswers {
		return false
	}
	for _, v := range []int{c.Accept, c.Later, c.Dismiss} {
		if float64(v)/float64(total) > Threshold {
			return true
		}
	}
	return false
}

func (c *Counts) add(a models.Answer) {
	switch a {
	case models.AnswerAccept:
		c.Accept++
	case models.AnswerIgnore:
		c.Later++
	case models.AnswerDismiss:
		c.Dismiss++
	}
}

// Suspect is a flagged respondent within one window.
type Suspect struct {
	WorkerID string `json:"worker_id"`
	Counts   Counts `json:"counts"`
	Listed   bool   `json:"listed"` // already on the flagged list
}

// Window is the detection result for one look-back window.
type Window struct {
	Minutes  int       `json:"minutes"`
	Suspects []Suspect `json:"suspects"`
}

type answer struct {
	worker string
	at     time.Time
	answer models.Answer
}

// Detect groups responses submitted within each window before now by
// respondent and returns the flagged ones. Responses with a short worker ID,
// an unknown sentiment or an unparseable submit time are skipped; the
// number of usable responses is returned alongside.
func Detect(responses []crowd.Response, now time.Time, windows []int, listed Set) ([]Window, int) {
	var usable []answer
	for _, r := range responses {
		if len(r.WorkerID) < minWorkerIDLen {
			continue
		}
		a, err := r.Answer()
		if err != nil {
			continue
		}
		at, err := ParseSubmitTime(r.SubmitTime)
		if err != nil {
			continue
		}
		usable = append(usable, answer{worker: r.WorkerID, at: at, answer: a})
	}

	out := make([]Window, 0, len(windows))
	for _, minutes := range windows {
		span := time.Duration(minutes) * time.Minute
		counts := map[string]*Counts{}
		for _, a := range usable {
			if now.Sub(a.at) >= span {
				continue
			}
			c, ok := counts[a.worker]
			if !ok {
				c = &Counts{}
				counts[a.worker] = c
			}
			c.add(a.answer)
		}

		w := Window{Minutes: minutes}
		for id, c := range counts {
			if c.Flagged() {
				w.Suspects = append(w.Suspects, Suspect{WorkerID: id, Counts: *c, Listed: listed.Has(id)})
			}
		}
		slices.SortFunc(w.Suspects, func(a, b Suspect) int { return strings.Compare(a.WorkerID, b.WorkerID) })
		out = append(out, w)
	}
	return out, len(usable)
}
