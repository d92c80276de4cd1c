// Package behavior supplies the simulated person's context: where they are
// and what they are doing at a given time of the week.
package behavior

import (
	"fmt"

	"github.com/nvandessel/nudge/internal/models"
	"github.com/nvandessel/nudge/internal/rng"
)

// Behavior reports location and activity for a time of the week.
type Behavior interface {
	LocationActivity(hour, minute, weekday int) (models.Location, models.Activity, error)
	Snapshot() (Snapshot, error)
}

// Kind names a behavior variant.
type Kind string

const (
	KindRandom Kind = "random"
	KindTrace  Kind = "trace"
)

// Snapshot is the resumable state of a behavior.
type Snapshot struct {
	Kind   Kind     `json:"kind"`
	RNG    []byte   `json:"rng,omitempty"`
	Files  []string `json:"files,omitempty"`
	Route  int      `json:"route,omitempty"`
	Cursor int      `json:"cursor,omitempty"`

	LastQuery int `json:"last_query"`
}

// New builds a behavior. Trace behaviors need at least one route file.
func New(kind Kind, seed uint64, traceFiles []string) (Behavior, error) {
	switch kind {
	case KindRandom:
		return NewRandom(rng.New(seed)), nil
	case KindTrace:
		return LoadTrace(traceFiles)
	}
	return nil, &models.ConfigurationError{Detail: fmt.Sprintf("unknown behavior %q", kind)}
}

// Restore rebuilds a behavior from its snapshot.
func Restore(s Snapshot) (Behavior, error) {
	switch s.Kind {
	case KindRandom:
		src, err := rng.FromState(s.RNG)
		if err != nil {
			return nil, fmt.Errorf("restoring random behavior: %w", err)
		}
		return NewRandom(src), nil
	case KindTrace:
		t, err := LoadTrace(s.Files)
		if err != nil {
			return nil, fmt.Errorf("restoring trace behavior: %w", err)
		}
		if err := t.seek(s.Route, s.Cursor, s.LastQuery); err != nil {
			return nil, err
		}
		return t, nil
	}
	return nil, fmt.Errorf("unknown behavior kind %q in snapshot", s.Kind)
}

var (
	locationWeights = []float64{0.5, 0.4, 0.1}
	activityWeights = []float64{0.7, 0.1, 0.1, 0.1}
)

// Random draws location and activity independently of time. Activity is
// never commuting.
type Random struct {
	rand *rng.Source
}

// NewRandom returns a random behavior drawing from src.
func NewRandom(src *rng.Source) *Random {
	return &Random{rand: src}
}

// LocationActivity implements Behavior.
func (r *Random) LocationActivity(int, int, int) (models.Location, models.Activity, error) {
	loc, err := r.rand.Choice(locationWeights)
	if err != nil {
		return 0, 0, err
	}
	act, err := r.rand.Choice(activityWeights)
	if err != nil {
		return 0, 0, err
	}
	return models.Location(loc), models.Activity(act), nil
}

// Snapshot implements Behavior.
func (r *Random) Snapshot() (Snapshot, error) {
	state, err := r.rand.MarshalBinary()
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Kind: KindRandom, RNG: state}, nil
}
