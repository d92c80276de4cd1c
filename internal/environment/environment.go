// Package environment provides simulated people: given the context of a
// decision tick, an Environment reports how likely the person is to accept,
// ignore, or dismiss a notification.
package environment

import (
	"fmt"
	"log/slog"

	"github.com/nvandessel/nudge/internal/crowd"
	"github.com/nvandessel/nudge/internal/models"
	"github.com/nvandessel/nudge/internal/rng"
)

// Environment is a simulated notification recipient. The returned weights
// need not be normalized.
type Environment interface {
	ResponseDistribution(hour, minute, weekday int, loc models.Location, act models.Activity, minutesSinceLast int) (accept, ignore, dismiss float64, err error)
}

// Kind names an environment variant.
type Kind string

const (
	KindAlwaysOK     Kind = "always-ok"
	KindStubborn     Kind = "stubborn"
	KindLessStubborn Kind = "less-stubborn"
	KindSurvey       Kind = "survey"
)

// Kinds lists every registered variant.
func Kinds() []Kind {
	return []Kind{KindAlwaysOK, KindStubborn, KindLessStubborn, KindSurvey}
}

// Config selects and parameterizes an environment.
type Config struct {
	// Seed seeds per-state preferences and survey sampling.
	Seed uint64

	// Deviation is the less-stubborn user's chance of going against its
	// preference. Default: 0.1.
	Deviation float64

	// SurveyFiles are crowd response files backing the survey user.
	SurveyFiles []string

	// Filter drops survey responses it returns false for.
	Filter func(crowd.Response) bool

	Logger *slog.Logger
}

// DefaultDeviation is the less-stubborn user's default deviation.
const DefaultDeviation = 0.1

// New builds an environment of the given kind.
func New(kind Kind, cfg Config) (Environment, error) {
	src := rng.New(cfg.Seed)
	switch kind {
	case KindAlwaysOK:
		return AlwaysOK{}, nil
	case KindStubborn:
		return NewStubborn(src), nil
	case KindLessStubborn:
		dev := cfg.Deviation
		if dev == 0 {
			dev = DefaultDeviation
		}
		return NewLessStubborn(src, dev)
	case KindSurvey:
		if len(cfg.SurveyFiles) == 0 {
			return nil, &models.ConfigurationError{Detail: "survey environment needs at least one response file"}
		}
		return LoadSurvey(cfg.SurveyFiles, src, cfg.Filter, cfg.Logger)
	}
	return nil, &models.ConfigurationError{Detail: fmt.Sprintf("unknown environment %q", kind)}
}

// AlwaysOK accepts every notification.
type AlwaysOK struct{}

// ResponseDistribution implements Environment.
func (AlwaysOK) ResponseDistribution(int, int, int, models.Location, models.Activity, int) (float64, float64, float64, error) {
	return 1, 0, 0, nil
}

// Stubborn either always accepts or always dismisses in each state. The
// preference per state is a coin flip made at construction.
type Stubborn struct {
	likes     map[models.State]bool
	deviation float64
}

// NewStubborn draws a fixed preference for every state.
func NewStubborn(src *rng.Source) *Stubborn {
	return &Stubborn{likes: drawPreferences(src)}
}

// NewLessStubborn is a Stubborn user that goes against its preference with
// probability deviation.
func NewLessStubborn(src *rng.Source, deviation float64) (*Stubborn, error) {
	if deviation < 0 || deviation > 1 {
		return nil, &models.ConfigurationError{Detail: fmt.Sprintf("deviation must be in [0, 1], got %g", deviation)}
	}
	return &Stubborn{likes: drawPreferences(src), deviation: deviation}, nil
}

func drawPreferences(src *rng.Source) map[models.State]bool {
	likes := make(map[models.State]bool, models.NumStates)
	for _, s := range models.AllStates() {
		likes[s] = src.Bernoulli(0.5)
	}
	return likes
}

// Likes reports the fixed preference in s.
func (u *Stubborn) Likes(s models.State) bool { return u.likes[s] }

// ResponseDistribution implements Environment. Stubborn users never ignore.
func (u *Stubborn) ResponseDistribution(hour, _, weekday int, loc models.Location, act models.Activity, minutesSinceLast int) (float64, float64, float64, error) {
	s := models.NewState(hour, weekday, loc, act, minutesSinceLast)
	if err := s.Validate(); err != nil {
		return 0, 0, 0, err
	}
	accept := u.deviation
	if u.likes[s] {
		accept = 1 - u.deviation
	}
	return accept, 0, 1 - accept, nil
}
