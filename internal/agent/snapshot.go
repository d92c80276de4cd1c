package agent

import (
	"fmt"

	"github.com/nvandessel/nudge/internal/classifier"
	"github.com/nvandessel/nudge/internal/models"
	"github.com/nvandessel/nudge/internal/rng"
)

// SnapshotVersion is bumped whenever the Snapshot layout changes.
const SnapshotVersion = 1

// Snapshot is the serializable internal model of any agent variant. Fields
// that a variant does not use stay empty.
type Snapshot struct {
	Version int    `json:"version"`
	Kind    Kind   `json:"kind"`
	Mode    Mode   `json:"mode"`
	Config  Config `json:"config"`
	Stage   Stage  `json:"stage"`
	Steps   int    `json:"steps"`
	RNG     []byte `json:"rng"`

	// Interactive bookkeeping.
	Current *models.State      `json:"current,omitempty"`
	Chosen  bool               `json:"chosen,omitempty"`
	Last    *models.Transition `json:"last,omitempty"`

	// Tabular agents.
	QTable []QEntry `json:"q_table,omitempty"`

	// Classifier-backed agents.
	Samples   []Sample          `json:"samples,omitempty"`
	Model     *classifier.Model `json:"model,omitempty"`
	Countdown int               `json:"countdown,omitempty"`
	Trained   bool              `json:"trained,omitempty"`
}

// Sample is one labelled observation kept by classifier-backed agents and
// the collector.
type Sample struct {
	State  models.State `json:"state"`
	Reward float64      `json:"reward"`
}

// Positive reports whether the sample counts as a positive label.
func (s Sample) Positive() bool { return s.Reward > 0 }

func (b *base) snapshot() (Snapshot, error) {
	state, err := b.rand.MarshalBinary()
	if err != nil {
		return Snapshot{}, fmt.Errorf("capturing random state: %w", err)
	}
	return Snapshot{
		Version: SnapshotVersion,
		Kind:    b.kind,
		Mode:    b.mode,
		Config:  b.cfg,
		Stage:   b.stage,
		Steps:   b.steps,
		RNG:     state,
	}, nil
}

func (b *base) restore(s Snapshot) error {
	if s.Stage != StageAwaitingAction && s.Stage != StageAwaitingReward {
		return fmt.Errorf("invalid stage %d", s.Stage)
	}
	if s.Steps < 0 {
		return fmt.Errorf("negative step count %d", s.Steps)
	}
	src, err := rng.FromState(s.RNG)
	if err != nil {
		return err
	}
	b.stage = s.Stage
	b.steps = s.Steps
	b.rand = src
	return nil
}

type restorer interface {
	Agent
	restoreModel(s Snapshot) error
}

// Restore rebuilds an agent from a snapshot.
func Restore(s Snapshot) (Agent, error) {
	if s.Version != SnapshotVersion {
		return nil, fmt.Errorf("unsupported agent snapshot version %d", s.Version)
	}
	a, err := New(s.Kind, s.Mode, s.Config)
	if err != nil {
		return nil, fmt.Errorf("restoring %s agent: %w", s.Kind, err)
	}
	r, ok := a.(restorer)
	if !ok {
		return nil, fmt.Errorf("%s agent cannot be restored", s.Kind)
	}
	if err := r.restoreModel(s); err != nil {
		return nil, fmt.Errorf("restoring %s agent: %w", s.Kind, err)
	}
	return a, nil
}

func samplesCopy(in []Sample) []Sample {
	if len(in) == 0 {
		return nil
	}
	out := make([]Sample, len(in))
	copy(out, in)
	return out
}
