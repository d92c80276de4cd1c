// Package models defines the core data model shared by agents, the
// controller, and the round emulator: the discrete decision state, the
// answers a person can give to a notification, and the records kept for
// every decision tick.
package models

import (
	"fmt"
	"strings"
)

// TimeOfDay is the coarse time bucket of a decision tick.
type TimeOfDay int

const (
	TimeMorning TimeOfDay = iota
	TimeAfternoon
	TimeEvening
	TimeSleeping
)

// DayType distinguishes weekdays from weekends.
type DayType int

const (
	DayWeekday DayType = iota
	DayWeekend
)

// Location is where the person is.
type Location int

const (
	LocationHome Location = iota
	LocationWork
	LocationOther
)

// Activity is the person's motion activity.
type Activity int

const (
	ActivityStationary Activity = iota
	ActivityWalking
	ActivityRunning
	ActivityDriving
	ActivityCommuting
)

// Recency describes how long ago the last notification was sent.
type Recency int

const (
	RecencyWithinHour Recency = iota
	RecencyLong
)

// Domain sizes of each state dimension.
const (
	NumTimeOfDay = 4
	NumDayType   = 2
	NumLocation  = 3
	NumActivity  = 5
	NumRecency   = 2
)

// RecencyThresholdMinutes is the longest gap still counted as "within 1hr".
const RecencyThresholdMinutes = 60

var (
	timeLabels     = []string{"morning", "afternoon", "evening", "sleeping"}
	dayLabels      = []string{"weekday", "weekend"}
	locationLabels = []string{"home", "work", "others"}
	activityLabels = []string{"stationary", "walking", "running", "driving", "commuting"}
	recencyLabels  = []string{"within-1hr", "long"}
)

func label(labels []string, v int) string {
	if v < 0 || v >= len(labels) {
		return fmt.Sprintf("invalid(%d)", v)
	}
	return labels[v]
}

func (t TimeOfDay) String() string { return label(timeLabels, int(t)) }
func (d DayType) String() string   { return label(dayLabels, int(d)) }
func (l Location) String() string  { return label(locationLabels, int(l)) }
func (a Activity) String() string  { return label(activityLabels, int(a)) }
func (r Recency) String() string   { return label(recencyLabels, int(r)) }

// Valid reports whether the value is inside its enumerated domain.
func (t TimeOfDay) Valid() bool { return t >= 0 && int(t) < NumTimeOfDay }
func (d DayType) Valid() bool   { return d >= 0 && int(d) < NumDayType }
func (l Location) Valid() bool  { return l >= 0 && int(l) < NumLocation }
func (a Activity) Valid() bool  { return a >= 0 && int(a) < NumActivity }
func (r Recency) Valid() bool   { return r >= 0 && int(r) < NumRecency }

// ParseLocation maps a survey/trace label to a Location. Named places from
// crowd surveys fold into "others". "nan" is treated as "others", matching
// how trace files mark missing data.
func ParseLocation(s string) (Location, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "home":
		return LocationHome, nil
	case "work":
		return LocationWork, nil
	case "others", "other", "nan",
		"beach", "friend-house", "restaurant", "mall", "gym", "park", "movie-theater", "market":
		return LocationOther, nil
	}
	return 0, &ValidationError{Dimension: "location", Label: s}
}

// ParseActivity maps a survey/trace label to an Activity.
// "nan" is treated as "stationary".
func ParseActivity(s string) (Activity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "stationary", "nan":
		return ActivityStationary, nil
	case "walking":
		return ActivityWalking, nil
	case "running":
		return ActivityRunning, nil
	case "driving", "biking":
		return ActivityDriving, nil
	case "commuting", "train", "bus":
		return ActivityCommuting, nil
	}
	return 0, &ValidationError{Dimension: "activity", Label: s}
}

// State is the 5-dimensional discrete context an agent decides on.
type State struct {
	Time     TimeOfDay `json:"time"`
	Day      DayType   `json:"day"`
	Location Location  `json:"location"`
	Activity Activity  `json:"activity"`
	Recency  Recency   `json:"recency"`
}

// Validate checks every dimension against its domain and reports the first
// offending one.
func (s State) Validate() error {
	switch {
	case !s.Time.Valid():
		return &ValidationError{Dimension: "time", Value: int(s.Time)}
	case !s.Day.Valid():
		return &ValidationError{Dimension: "day", Value: int(s.Day)}
	case !s.Location.Valid():
		return &ValidationError{Dimension: "location", Value: int(s.Location)}
	case !s.Activity.Valid():
		return &ValidationError{Dimension: "activity", Value: int(s.Activity)}
	case !s.Recency.Valid():
		return &ValidationError{Dimension: "recency", Value: int(s.Recency)}
	}
	return nil
}

// WithRecency returns a copy of s with the recency dimension replaced.
func (s State) WithRecency(r Recency) State {
	s.Recency = r
	return s
}

func (s State) String() string {
	return fmt.Sprintf("(%s, %s, %s, %s, %s)", s.Time, s.Day, s.Location, s.Activity, s.Recency)
}

// NumStates is the size of the full state cross product.
const NumStates = NumTimeOfDay * NumDayType * NumLocation * NumActivity * NumRecency

// AllStates enumerates the full state cross product in a fixed order.
func AllStates() []State {
	states := make([]State, 0, NumStates)
	for t := 0; t < NumTimeOfDay; t++ {
		for d := 0; d < NumDayType; d++ {
			for l := 0; l < NumLocation; l++ {
				for a := 0; a < NumActivity; a++ {
					for r := 0; r < NumRecency; r++ {
						states = append(states, State{
							Time:     TimeOfDay(t),
							Day:      DayType(d),
							Location: Location(l),
							Activity: Activity(a),
							Recency:  Recency(r),
						})
					}
				}
			}
		}
	}
	return states
}

// TimeState buckets an hour of the day.
func TimeState(hour int) TimeOfDay {
	switch {
	case hour < 8:
		return TimeSleeping
	case hour < 12:
		return TimeMorning
	case hour < 18:
		return TimeAfternoon
	default:
		return TimeEvening
	}
}

// DayState classifies a weekday index (0 = Sunday).
func DayState(weekday int) DayType {
	if weekday == 0 || weekday == 6 {
		return DayWeekend
	}
	return DayWeekday
}

// RecencyState classifies the minutes since the last notification.
func RecencyState(minutes int) Recency {
	if minutes <= RecencyThresholdMinutes {
		return RecencyWithinHour
	}
	return RecencyLong
}

// DeltaMinutes returns the minutes from (d2, h2, m2) to (d1, h1, m1).
func DeltaMinutes(d1, h1, m1, d2, h2, m2 int) int {
	return ((d1-d2)*24+(h1-h2))*60 + (m1 - m2)
}

// NewState derives a State from raw context values.
func NewState(hour, weekday int, loc Location, act Activity, minutesSinceLast int) State {
	return State{
		Time:     TimeState(hour),
		Day:      DayState(weekday),
		Location: loc,
		Activity: act,
		Recency:  RecencyState(minutesSinceLast),
	}
}
