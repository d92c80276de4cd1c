// Package crowd reads and writes the CSV files exchanged with the crowd
// survey platform: action files listing the notifications to ask about, and
// the response files the platform returns.
package crowd

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nvandessel/nudge/internal/models"
)

// ActionHeader is the column layout of an action file.
var ActionHeader = []string{
	"content", "hour", "minute", "day", "motion", "location",
	"last_notification_time", "num_days_passed",
}

// Action is one notification question in an action file.
type Action struct {
	Content          string
	Hour             int
	Minute           int
	Weekday          int
	Motion           string
	Location         string
	MinutesSinceLast int
	DaysPassed       int
}

// NewAction builds the action row for a sent notification.
func NewAction(c models.Context) Action {
	return Action{
		Content:          Describe(c),
		Hour:             c.Hour,
		Minute:           c.Minute,
		Weekday:          c.Weekday,
		Motion:           c.Activity.String(),
		Location:         c.Location.String(),
		MinutesSinceLast: c.MinutesSinceLast,
		DaysPassed:       c.DaysPassed,
	}
}

// Context parses the row back into a tick context.
func (a Action) Context() (models.Context, error) {
	loc, err := models.ParseLocation(a.Location)
	if err != nil {
		return models.Context{}, err
	}
	act, err := models.ParseActivity(a.Motion)
	if err != nil {
		return models.Context{}, err
	}
	return models.Context{
		DaysPassed:       a.DaysPassed,
		Hour:             a.Hour,
		Minute:           a.Minute,
		Weekday:          a.Weekday,
		Location:         loc,
		Activity:         act,
		MinutesSinceLast: a.MinutesSinceLast,
	}, nil
}

var weekdayNames = []string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// Describe renders a one-line situation summary used as question content.
func Describe(c models.Context) string {
	ampm := "AM"
	h := c.Hour
	if h >= 12 {
		ampm = "PM"
	}
	if h > 12 {
		h -= 12
	}
	day := "day " + strconv.Itoa(c.Weekday)
	if c.Weekday >= 0 && c.Weekday < len(weekdayNames) {
		day = weekdayNames[c.Weekday]
	}
	return fmt.Sprintf("It is %d:%02d %s on %s. You are %s at %s. Your last notification was %d minutes ago.",
		h, c.Minute, ampm, day, c.Activity, c.Location, c.MinutesSinceLast)
}

// ActionWriter streams action rows to a CSV writer.
type ActionWriter struct {
	w     *csv.Writer
	count int
}

// NewActionWriter writes the header and returns a writer for the rows.
func NewActionWriter(w io.Writer) (*ActionWriter, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(ActionHeader); err != nil {
		return nil, fmt.Errorf("writing action header: %w", err)
	}
	return &ActionWriter{w: cw}, nil
}

// Write appends one row.
func (aw *ActionWriter) Write(a Action) error {
	row := []string{
		a.Content,
		strconv.Itoa(a.Hour),
		strconv.Itoa(a.Minute),
		strconv.Itoa(a.Weekday),
		a.Motion,
		a.Location,
		strconv.Itoa(a.MinutesSinceLast),
		strconv.Itoa(a.DaysPassed),
	}
	if err := aw.w.Write(row); err != nil {
		return fmt.Errorf("writing action row: %w", err)
	}
	aw.count++
	return nil
}

// Count returns the number of rows written.
func (aw *ActionWriter) Count() int { return aw.count }

// Flush flushes buffered rows.
func (aw *ActionWriter) Flush() error {
	aw.w.Flush()
	return aw.w.Error()
}

// ReadActions parses an action file.
func ReadActions(r io.Reader) ([]Action, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading action header: %w", err)
	}
	cols, err := indexColumns(header, ActionHeader...)
	if err != nil {
		return nil, err
	}

	var out []Action
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading action line %d: %w", line, err)
		}
		p := rowParser{row: row, cols: cols}
		a := Action{
			Content:          p.str("content"),
			Hour:             p.num("hour"),
			Minute:           p.num("minute"),
			Weekday:          p.num("day"),
			Motion:           p.str("motion"),
			Location:         p.str("location"),
			MinutesSinceLast: p.num("last_notification_time"),
			DaysPassed:       p.num("num_days_passed"),
		}
		if p.err != nil {
			return nil, fmt.Errorf("action line %d: %w", line, p.err)
		}
		out = append(out, a)
	}
	return out, nil
}

// indexColumns maps column names to positions and checks required ones.
func indexColumns(header []string, required ...string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}
	return cols, nil
}

// rowParser reads named columns and keeps the first conversion error.
type rowParser struct {
	row  []string
	cols map[string]int
	err  error
}

func (p *rowParser) has(name string) bool {
	i, ok := p.cols[name]
	return ok && i < len(p.row)
}

func (p *rowParser) str(name string) string {
	if !p.has(name) {
		return ""
	}
	return strings.TrimSpace(p.row[p.cols[name]])
}

func (p *rowParser) num(name string) int {
	s := p.str(name)
	if s == "" {
		return 0
	}
	v, err := strconv.Atoi(s)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("column %s: %w", name, err)
	}
	return v
}
