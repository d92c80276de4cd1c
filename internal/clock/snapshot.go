package clock

import "fmt"

// Snapshot is the serializable state of a Clock.
type Snapshot struct {
	Ticks      int        `json:"ticks"`
	RefWeekday int        `json:"ref_weekday"`
	Quiet      QuietHours `json:"quiet"`
}

// Snapshot captures the clock. Only clocks skipping by QuietHours can be
// captured.
func (c *Clock) Snapshot() (Snapshot, error) {
	q, ok := c.skip.(QuietHours)
	if !ok {
		return Snapshot{}, fmt.Errorf("clock skip predicate %T is not serializable", c.skip)
	}
	return Snapshot{Ticks: c.ticks, RefWeekday: c.refWeekday, Quiet: q}, nil
}

// FromSnapshot rebuilds a clock.
func FromSnapshot(s Snapshot) (*Clock, error) {
	if s.Ticks < 0 {
		return nil, fmt.Errorf("negative clock ticks %d", s.Ticks)
	}
	if err := s.Quiet.Validate(); err != nil {
		return nil, err
	}
	c, err := New(s.RefWeekday, s.Quiet)
	if err != nil {
		return nil, err
	}
	c.ticks = s.Ticks
	return c, nil
}
