package store

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nvandessel/nudge/internal/models"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "nudge.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func rec(day, hour int, send bool, reward *float64) models.EmulationRecord {
	c := models.Context{DaysPassed: day, Hour: hour, Minute: 10, Weekday: day % 7, Location: models.LocationWork, Activity: models.ActivityWalking, MinutesSinceLast: 30}
	return models.EmulationRecord{Context: c, State: c.State(), Send: send, Reward: reward}
}

func ptr(v float64) *float64 { return &v }

func TestCreateRunAndSteps(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	id, err := s.CreateRun(ctx, Run{Kind: KindSimulation, Agent: "qlearning", Environment: "stubborn", Behavior: "random", Config: json.RawMessage(`{"weeks":2}`)})
	if err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("CreateRun() id = %q, not a UUID: %v", id, err)
	}

	first := []models.EmulationRecord{rec(0, 9, true, ptr(1)), rec(0, 10, false, ptr(0))}
	second := []models.EmulationRecord{rec(1, 9, true, ptr(-5)), rec(1, 11, true, nil)}
	if err := s.AppendSteps(ctx, id, first); err != nil {
		t.Fatalf("AppendSteps() error = %v", err)
	}
	if err := s.AppendSteps(ctx, id, second); err != nil {
		t.Fatalf("second AppendSteps() error = %v", err)
	}

	got, err := s.Steps(ctx, id)
	if err != nil {
		t.Fatalf("Steps() error = %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("len(Steps()) = %d, want 4", len(got))
	}
	if got[0].Context != first[0].Context || got[0].State != first[0].State || !got[0].Send || got[0].RewardValue() != 1 {
		t.Errorf("Steps()[0] = %+v, want %+v", got[0], first[0])
	}
	if got[2].RewardValue() != -5 || got[2].Context.DaysPassed != 1 {
		t.Errorf("Steps()[2] = %+v, want day 1 reward -5", got[2])
	}
	if got[3].Reward != nil {
		t.Errorf("Steps()[3].Reward = %v, want nil", *got[3].Reward)
	}

	run, err := s.Run(ctx, id)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if run.Agent != "qlearning" || run.Kind != KindSimulation || string(run.Config) != `{"weeks":2}` {
		t.Errorf("Run() = %+v", run)
	}
}

func TestSummaries(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	older, _ := s.CreateRun(ctx, Run{Kind: KindSimulation, Agent: "always", CreatedAt: time.Now().Add(-time.Hour)})
	newer, _ := s.CreateRun(ctx, Run{Kind: KindEmulation, Agent: "bandit"})
	if err := s.AppendSteps(ctx, older, []models.EmulationRecord{
		rec(0, 9, true, ptr(1)),
		rec(0, 10, true, ptr(-5)),
		rec(0, 11, true, ptr(0)),
		rec(0, 12, false, ptr(0)),
	}); err != nil {
		t.Fatal(err)
	}

	sums, err := s.Summaries(ctx)
	if err != nil {
		t.Fatalf("Summaries() error = %v", err)
	}
	if len(sums) != 2 {
		t.Fatalf("len(Summaries()) = %d, want 2", len(sums))
	}
	if sums[0].ID != newer || sums[0].Steps != 0 {
		t.Errorf("Summaries()[0] = %+v, want empty newer run", sums[0])
	}
	want := RunSummary{Steps: 4, Notifications: 3, Accepted: 1, Dismissed: 1, TotalReward: -4}
	got := sums[1]
	if got.ID != older || got.Steps != want.Steps || got.Notifications != want.Notifications ||
		got.Accepted != want.Accepted || got.Dismissed != want.Dismissed || got.TotalReward != want.TotalReward {
		t.Errorf("Summaries()[1] = %+v, want counts %+v", got, want)
	}
}

func TestAppendSteps_UnknownRun(t *testing.T) {
	s := openStore(t)
	err := s.AppendSteps(context.Background(), "missing", []models.EmulationRecord{rec(0, 9, true, ptr(1))})
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("AppendSteps() error = %v, want ErrRunNotFound", err)
	}
	if _, err := s.Run(context.Background(), "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Run() error = %v, want ErrRunNotFound", err)
	}
}

func TestEmulationRunID(t *testing.T) {
	a := EmulationRunID("/data/emulations/q2")
	if a != EmulationRunID("/data/emulations/q2") {
		t.Error("EmulationRunID() is not stable")
	}
	if a == EmulationRunID("/data/emulations/bandit") {
		t.Error("EmulationRunID() collides for different folders")
	}

	s := openStore(t)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := s.CreateRun(ctx, Run{ID: a, Kind: KindEmulation, Agent: "qlearning2"}); err != nil {
			t.Fatalf("CreateRun() #%d error = %v", i, err)
		}
	}
	sums, _ := s.Summaries(ctx)
	if len(sums) != 1 {
		t.Errorf("len(Summaries()) = %d, want 1", len(sums))
	}
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nudge.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	id, _ := s.CreateRun(context.Background(), Run{Kind: KindSimulation, Agent: "always"})
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()
	if _, err := s.Run(context.Background(), id); err != nil {
		t.Errorf("Run() after reopen error = %v", err)
	}
}
