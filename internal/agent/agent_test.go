package agent

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/nvandessel/nudge/internal/models"
)

var (
	homeState = models.State{Time: models.TimeMorning, Day: models.DayWeekday, Location: models.LocationHome, Activity: models.ActivityStationary, Recency: models.RecencyLong}
	workState = models.State{Time: models.TimeMorning, Day: models.DayWeekday, Location: models.LocationWork, Activity: models.ActivityStationary, Recency: models.RecencyLong}
)

func mustNew(t *testing.T, kind Kind, mode Mode) Agent {
	t.Helper()
	a, err := New(kind, mode, Config{Seed: 42})
	if err != nil {
		t.Fatalf("New(%s) error = %v", kind, err)
	}
	return a
}

func TestNew_AllKinds(t *testing.T) {
	for _, kind := range Kinds() {
		for _, mode := range []Mode{ModeInteractive, ModeBatch} {
			a := mustNew(t, kind, mode)
			if a.Kind() != kind {
				t.Errorf("Kind() = %v, want %v", a.Kind(), kind)
			}
			if a.Mode() != mode {
				t.Errorf("Mode() = %v, want %v", a.Mode(), mode)
			}
		}
	}
}

func TestNew_UnknownKind(t *testing.T) {
	_, err := New("nope", ModeInteractive, Config{})
	if !errors.Is(err, models.ErrConfiguration) {
		t.Errorf("New(unknown) error = %v, want configuration error", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", DefaultConfig(), false},
		{"send probability above one", Config{SendProbability: 1.5, NegativeWeight: 1}, true},
		{"negative exploration", Config{ExplorationRate: -0.1, NegativeWeight: 1}, true},
		{"zero negative weight", Config{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDecay_At(t *testing.T) {
	d := Decay{Init: 0.5, Min: 0.1}
	tests := []struct {
		steps int
		want  float64
	}{
		{0, 0.5},
		{99, 0.5},
		{250, 0.5 * 0.85 * 0.85},
		{100000, 0.1},
	}
	for _, tt := range tests {
		if got := d.At(tt.steps); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("At(%d) = %v, want %v", tt.steps, got, tt.want)
		}
	}
}

func TestQTable(t *testing.T) {
	q := NewQTable(0, 0)
	if len(q) != models.NumStates {
		t.Fatalf("len(NewQTable) = %d, want %d", len(q), models.NumStates)
	}
	if q.Best(homeState) {
		t.Error("Best() on a tie = send, want hold")
	}
	if v := q.Update(homeState, true, 1, homeState, 1.0, 1.0); v != 1 {
		t.Errorf("Update() = %v, want 1", v)
	}
	if !q.Best(homeState) {
		t.Error("Best() after positive send = hold, want send")
	}

	restored, err := QTableFromEntries(q.Entries())
	if err != nil {
		t.Fatalf("QTableFromEntries() error = %v", err)
	}
	if restored.Value(homeState, true) != 1 {
		t.Errorf("restored Value() = %v, want 1", restored.Value(homeState, true))
	}
	if _, err := QTableFromEntries(q.Entries()[:10]); err == nil {
		t.Error("QTableFromEntries(partial) error = nil, want error")
	}
}

func TestProtocol_Interactive(t *testing.T) {
	for _, kind := range Kinds() {
		t.Run(string(kind), func(t *testing.T) {
			a := mustNew(t, kind, ModeInteractive)

			if err := a.FeedReward(1); !errors.Is(err, models.ErrProtocol) {
				t.Errorf("FeedReward() before Action error = %v, want protocol error", err)
			}
			if _, err := a.Action(homeState); err != nil {
				t.Fatalf("Action() error = %v", err)
			}
			if _, err := a.Action(homeState); !errors.Is(err, models.ErrProtocol) {
				t.Errorf("second Action() error = %v, want protocol error", err)
			}
			if err := a.FeedReward(1); err != nil {
				t.Fatalf("FeedReward() error = %v", err)
			}
			if err := a.FeedReward(1); !errors.Is(err, models.ErrProtocol) {
				t.Errorf("second FeedReward() error = %v, want protocol error", err)
			}
			if err := a.FeedBatch(nil); !errors.Is(err, models.ErrProtocol) {
				t.Errorf("FeedBatch() in interactive mode error = %v, want protocol error", err)
			}
		})
	}
}

func TestProtocol_InvalidStateKeepsStage(t *testing.T) {
	a := mustNew(t, KindQLearning, ModeInteractive)
	bad := models.State{Time: 9}

	if _, err := a.Action(bad); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("Action(invalid) error = %v, want validation error", err)
	}
	if got := a.(*QLearning).Stage(); got != StageAwaitingAction {
		t.Errorf("Stage() = %v, want %v", got, StageAwaitingAction)
	}
	if _, err := a.Action(homeState); err != nil {
		t.Errorf("Action() after rejected state error = %v", err)
	}
}

func TestProtocol_Batch(t *testing.T) {
	a := mustNew(t, KindQLearning, ModeBatch)
	for i := 0; i < 3; i++ {
		if _, err := a.Action(homeState); err != nil {
			t.Fatalf("Action() #%d error = %v", i, err)
		}
	}
	if err := a.FeedReward(1); !errors.Is(err, models.ErrProtocol) {
		t.Errorf("FeedReward() in batch mode error = %v, want protocol error", err)
	}
	history := []models.Transition{
		{State: homeState, Send: true, Reward: 1},
		{State: models.State{Location: 7}, Send: false, Reward: 0},
	}
	if err := a.FeedBatch(history); !errors.Is(err, models.ErrValidation) {
		t.Errorf("FeedBatch(invalid) error = %v, want validation error", err)
	}
	if err := a.FeedBatch(history[:1]); err != nil {
		t.Errorf("FeedBatch() error = %v", err)
	}
	if got := a.(*QLearning).Steps(); got != 1 {
		t.Errorf("Steps() = %d, want 1", got)
	}
}

func TestAlways_Sends(t *testing.T) {
	a := mustNew(t, KindAlways, ModeInteractive)
	for i := 0; i < 5; i++ {
		send, err := a.Action(workState)
		if err != nil {
			t.Fatalf("Action() error = %v", err)
		}
		if !send {
			t.Errorf("Action() = false, want true")
		}
		if err := a.FeedReward(-5); err != nil {
			t.Fatalf("FeedReward() error = %v", err)
		}
	}
}

func TestQLearning_LearnsToHold(t *testing.T) {
	a := mustNew(t, KindQLearning, ModeBatch).(*QLearning)
	var history []models.Transition
	for i := 0; i < 50; i++ {
		history = append(history, models.Transition{State: workState, Send: true, Reward: -5})
	}
	if err := a.FeedBatch(history); err != nil {
		t.Fatalf("FeedBatch() error = %v", err)
	}
	if a.QTable().Best(workState) {
		t.Error("Best(workState) = send after repeated dismissals, want hold")
	}
}

func TestQLearning2_BatchCarriesTail(t *testing.T) {
	a := mustNew(t, KindQLearning2, ModeBatch).(*QLearning2)
	history := []models.Transition{
		{State: homeState, Send: true, Reward: 1},
		{State: workState, Send: false, Reward: 0},
		{State: homeState, Send: true, Reward: -5},
	}
	if err := a.FeedBatch(history); err != nil {
		t.Fatalf("FeedBatch() error = %v", err)
	}
	if a.Steps() != 2 {
		t.Errorf("Steps() = %d, want 2", a.Steps())
	}
	pending := a.Pending()
	if pending == nil || *pending != history[2] {
		t.Fatalf("Pending() = %v, want %v", pending, history[2])
	}

	if err := a.FeedBatch(history[:1]); err != nil {
		t.Fatalf("FeedBatch() error = %v", err)
	}
	if a.Steps() != 3 {
		t.Errorf("Steps() = %d, want 3", a.Steps())
	}
	if got := a.QTable().Value(homeState, true); got >= 0 {
		t.Errorf("Q(home, send) = %v after carried dismissal, want negative", got)
	}
}

func TestQLearning2_InteractiveDefersUpdate(t *testing.T) {
	a := mustNew(t, KindQLearning2, ModeInteractive).(*QLearning2)
	send, err := a.Action(homeState)
	if err != nil {
		t.Fatalf("Action() error = %v", err)
	}
	if err := a.FeedReward(1); err != nil {
		t.Fatalf("FeedReward() error = %v", err)
	}
	if a.Pending() == nil {
		t.Fatal("Pending() = nil after FeedReward, want transition")
	}
	before := a.QTable().Value(homeState, send)
	if _, err := a.Action(workState); err != nil {
		t.Fatalf("Action() error = %v", err)
	}
	if a.Pending() != nil {
		t.Error("Pending() != nil after next Action")
	}
	if after := a.QTable().Value(homeState, send); after == before {
		t.Errorf("Q(home, %v) unchanged at %v, want update", send, after)
	}
}

func TestBandit_NoModelSends(t *testing.T) {
	a := mustNew(t, KindBandit, ModeInteractive).(*Bandit)
	for i := 0; i < 10; i++ {
		send, err := a.Action(workState)
		if err != nil {
			t.Fatalf("Action() error = %v", err)
		}
		if !send {
			t.Fatalf("Action() without model = false, want true")
		}
		if err := a.FeedReward(1); err != nil {
			t.Fatalf("FeedReward() error = %v", err)
		}
	}
	if a.Model() != nil {
		t.Error("Model() != nil with a single class")
	}
	if got := len(a.Samples()); got != 10 {
		t.Errorf("len(Samples()) = %d, want 10", got)
	}
}

func TestBandit_CountdownAfterTraining(t *testing.T) {
	a := mustNew(t, KindBandit, ModeBatch).(*Bandit)
	var history []models.Transition
	for i := 0; i < 8; i++ {
		history = append(history,
			models.Transition{State: homeState, Send: true, Reward: 1},
			models.Transition{State: workState, Send: true, Reward: -5},
		)
	}
	if err := a.FeedBatch(history); err != nil {
		t.Fatalf("FeedBatch() error = %v", err)
	}
	if a.Model() == nil {
		t.Fatal("Model() = nil after two-class batch")
	}
	if got := a.Countdown(); got != 4 {
		t.Errorf("Countdown() = %d, want 4", got)
	}
}

func TestBanditProb_ExpectedReward(t *testing.T) {
	a := mustNew(t, KindBanditProb, ModeBatch).(*BanditProb)
	if _, ok := a.ExpectedReward(homeState); ok {
		t.Error("ExpectedReward() ok before training")
	}
	var history []models.Transition
	for i := 0; i < 10; i++ {
		history = append(history,
			models.Transition{State: homeState, Send: true, Reward: 1},
			models.Transition{State: workState, Send: true, Reward: -5},
		)
	}
	if err := a.FeedBatch(history); err != nil {
		t.Fatalf("FeedBatch() error = %v", err)
	}
	home, ok := a.ExpectedReward(homeState)
	if !ok {
		t.Fatal("ExpectedReward() not ok after training")
	}
	work, _ := a.ExpectedReward(workState)
	if home <= 0 || work >= 0 {
		t.Errorf("ExpectedReward() home=%v work=%v, want positive and negative", home, work)
	}
}

func TestCollectorAndOffline(t *testing.T) {
	c := mustNew(t, KindCollector, ModeBatch).(*Collector)
	var history []models.Transition
	for i := 0; i < 6; i++ {
		history = append(history,
			models.Transition{State: homeState, Send: true, Reward: 1},
			models.Transition{State: workState, Send: true, Reward: -5},
			models.Transition{State: workState, Send: false, Reward: 0},
		)
	}
	if err := c.FeedBatch(history); err != nil {
		t.Fatalf("FeedBatch() error = %v", err)
	}
	if got := len(c.Samples()); got != 12 {
		t.Fatalf("len(Samples()) = %d, want 12", got)
	}

	path := filepath.Join(t.TempDir(), "history.csv")
	if err := SaveModel(c, path); err != nil {
		t.Fatalf("SaveModel() error = %v", err)
	}

	o := mustNew(t, KindOffline, ModeInteractive)
	if err := LoadModel(o, path); err != nil {
		t.Fatalf("LoadModel() error = %v", err)
	}
	for _, tt := range []struct {
		state models.State
		want  bool
	}{{homeState, true}, {workState, false}} {
		send, err := o.Action(tt.state)
		if err != nil {
			t.Fatalf("Action() error = %v", err)
		}
		if send != tt.want {
			t.Errorf("Action(%v) = %v, want %v", tt.state, send, tt.want)
		}
		if err := o.FeedReward(0); err != nil {
			t.Fatalf("FeedReward() error = %v", err)
		}
	}
}

func TestModelFiles_Unsupported(t *testing.T) {
	a := mustNew(t, KindAlways, ModeInteractive)
	if err := LoadModel(a, "x"); !errors.Is(err, errors.ErrUnsupported) {
		t.Errorf("LoadModel() error = %v, want ErrUnsupported", err)
	}
	if err := SaveModel(a, "x"); !errors.Is(err, errors.ErrUnsupported) {
		t.Errorf("SaveModel() error = %v, want ErrUnsupported", err)
	}
}

func TestHistory_RoundTrip(t *testing.T) {
	in := []Sample{{State: homeState, Reward: 1}, {State: workState, Reward: -5}}
	var buf bytes.Buffer
	if err := WriteHistory(&buf, in); err != nil {
		t.Fatalf("WriteHistory() error = %v", err)
	}
	out, err := ReadHistory(&buf)
	if err != nil {
		t.Fatalf("ReadHistory() error = %v", err)
	}
	if len(out) != len(in) || out[0] != in[0] || out[1] != in[1] {
		t.Errorf("ReadHistory() = %v, want %v", out, in)
	}

	if _, err := ReadHistory(bytes.NewBufferString("1,0,0,9,0,0\n")); !errors.Is(err, models.ErrValidation) {
		t.Errorf("ReadHistory(bad location) error = %v, want validation error", err)
	}
}

func TestSnapshot_RestoreContinuesIdentically(t *testing.T) {
	for _, kind := range []Kind{KindQLearning, KindQLearning2, KindBandit, KindBanditProb, KindCollector} {
		t.Run(string(kind), func(t *testing.T) {
			a := mustNew(t, kind, ModeInteractive)
			states := []models.State{homeState, workState}
			step := func(ag Agent, i int) bool {
				send, err := ag.Action(states[i%2])
				if err != nil {
					t.Fatalf("Action() error = %v", err)
				}
				reward := 0.0
				if send {
					reward = 1
					if i%2 == 1 {
						reward = -5
					}
				}
				if err := ag.FeedReward(reward); err != nil {
					t.Fatalf("FeedReward() error = %v", err)
				}
				return send
			}
			for i := 0; i < 30; i++ {
				step(a, i)
			}

			snap, err := a.Snapshot()
			if err != nil {
				t.Fatalf("Snapshot() error = %v", err)
			}
			data, err := json.Marshal(snap)
			if err != nil {
				t.Fatalf("json.Marshal() error = %v", err)
			}
			var decoded Snapshot
			if err := json.Unmarshal(data, &decoded); err != nil {
				t.Fatalf("json.Unmarshal() error = %v", err)
			}
			b, err := Restore(decoded)
			if err != nil {
				t.Fatalf("Restore() error = %v", err)
			}

			for i := 30; i < 60; i++ {
				if got, want := step(b, i), step(a, i); got != want {
					t.Fatalf("step %d: restored Action() = %v, original = %v", i, got, want)
				}
			}
		})
	}
}

func TestRestore_BadVersion(t *testing.T) {
	if _, err := Restore(Snapshot{Version: 99, Kind: KindAlways}); err == nil {
		t.Error("Restore(version 99) error = nil, want error")
	}
}
