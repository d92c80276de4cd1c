// Package clock provides a deterministic minute-resolution clock that
// advances simulated time in fixed steps while skipping excluded windows.
package clock

import (
	"fmt"

	"github.com/nvandessel/nudge/internal/models"
)

const (
	MinutesPerHour = 60
	MinutesPerDay  = 24 * MinutesPerHour
	MinutesPerWeek = 7 * MinutesPerDay
)

// Skipper decides whether a clock position is excluded.
type Skipper interface {
	Skip(hour, minute, weekday int) bool
}

// SkipFunc adapts a plain function to Skipper.
type SkipFunc func(hour, minute, weekday int) bool

// Skip calls f.
func (f SkipFunc) Skip(hour, minute, weekday int) bool { return f(hour, minute, weekday) }

// QuietHours excludes a daily window of hours. The window starts at From and
// ends before To and may wrap past midnight. From == To excludes nothing.
type QuietHours struct {
	From int `json:"from" yaml:"from" toml:"from"`
	To   int `json:"to" yaml:"to" toml:"to"`
}

// DefaultQuietHours excludes 22:00 to 08:00.
var DefaultQuietHours = QuietHours{From: 22, To: 8}

// Skip reports whether hour falls inside the quiet window.
func (q QuietHours) Skip(hour, _, _ int) bool {
	switch {
	case q.From == q.To:
		return false
	case q.From < q.To:
		return hour >= q.From && hour < q.To
	default:
		return hour >= q.From || hour < q.To
	}
}

// Validate checks that both bounds are valid hours.
func (q QuietHours) Validate() error {
	if q.From < 0 || q.From > 23 || q.To < 0 || q.To > 23 {
		return &models.ConfigurationError{Detail: fmt.Sprintf("quiet hours %d-%d out of range", q.From, q.To)}
	}
	return nil
}

// Time is a clock reading.
type Time struct {
	Days    int `json:"days"`
	Hour    int `json:"hour"`
	Minute  int `json:"minute"`
	Weekday int `json:"weekday"`
}

func (t Time) String() string {
	return fmt.Sprintf("day %d %02d:%02d", t.Days, t.Hour, t.Minute)
}

// Clock tracks minutes since its origin. The weekday is always derived as
// (refWeekday + days) mod 7.
type Clock struct {
	ticks      int
	refWeekday int
	skip       Skipper
}

// New returns a clock at day 0, 00:00. refWeekday is the weekday of day 0
// (0 = Sunday). A nil skipper excludes nothing.
func New(refWeekday int, skip Skipper) (*Clock, error) {
	if refWeekday < 0 || refWeekday > 6 {
		return nil, &models.ConfigurationError{Detail: fmt.Sprintf("reference weekday %d not in 0..6", refWeekday)}
	}
	if skip == nil {
		skip = QuietHours{}
	}
	return &Clock{refWeekday: refWeekday, skip: skip}, nil
}

// Now returns the current reading without advancing.
func (c *Clock) Now() Time {
	return c.at(c.ticks)
}

// Ticks returns minutes since the origin.
func (c *Clock) Ticks() int {
	return c.ticks
}

func (c *Clock) at(ticks int) Time {
	days := ticks / MinutesPerDay
	rem := ticks % MinutesPerDay
	return Time{
		Days:    days,
		Hour:    rem / MinutesPerHour,
		Minute:  rem % MinutesPerHour,
		Weekday: (c.refWeekday + days) % 7,
	}
}

// Forward advances by delta minutes, repeating the same step until the
// position is not skipped. It fails without moving the clock when no
// position within a full week of steps is admissible.
func (c *Clock) Forward(delta int) (Time, error) {
	if delta <= 0 {
		return Time{}, &models.ConfigurationError{Detail: fmt.Sprintf("step must be positive, got %d", delta)}
	}

	// Step positions repeat modulo one week, so after this many steps every
	// reachable position has been tried.
	limit := MinutesPerWeek / gcd(delta, MinutesPerWeek)

	ticks := c.ticks
	for i := 0; i < limit; i++ {
		ticks += delta
		t := c.at(ticks)
		if !c.skip.Skip(t.Hour, t.Minute, t.Weekday) {
			c.ticks = ticks
			return t, nil
		}
	}
	return Time{}, &models.ConfigurationError{
		Detail: fmt.Sprintf("skip predicate admits no position reachable in %d-minute steps", delta),
	}
}

// SetTime repositions the clock.
func (c *Clock) SetTime(days, hour, minute int) error {
	if days < 0 {
		return fmt.Errorf("days must be non-negative, got %d", days)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return fmt.Errorf("invalid time of day %02d:%02d", hour, minute)
	}
	c.ticks = days*MinutesPerDay + hour*MinutesPerHour + minute
	return nil
}

// Reset returns the clock to day 0, 00:00.
func (c *Clock) Reset() {
	c.ticks = 0
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
