package clock

import (
	"errors"
	"testing"

	"github.com/nvandessel/nudge/internal/models"
)

func TestQuietHours_Skip(t *testing.T) {
	tests := []struct {
		name  string
		quiet QuietHours
		hour  int
		want  bool
	}{
		{"wrapping before start", DefaultQuietHours, 21, false},
		{"wrapping at start", DefaultQuietHours, 22, true},
		{"wrapping after midnight", DefaultQuietHours, 3, true},
		{"wrapping at end", DefaultQuietHours, 8, false},
		{"plain window inside", QuietHours{From: 12, To: 14}, 13, true},
		{"plain window outside", QuietHours{From: 12, To: 14}, 14, false},
		{"empty window", QuietHours{}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.quiet.Skip(tt.hour, 0, 0); got != tt.want {
				t.Errorf("Skip(%d) = %v, want %v", tt.hour, got, tt.want)
			}
		})
	}
}

func TestForward_SkipsQuietHours(t *testing.T) {
	c, err := New(0, DefaultQuietHours)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := c.SetTime(0, 23, 50); err != nil {
		t.Fatalf("SetTime() error = %v", err)
	}

	got, err := c.Forward(10)
	if err != nil {
		t.Fatalf("Forward() error = %v", err)
	}
	want := Time{Days: 1, Hour: 8, Minute: 0, Weekday: 1}
	if got != want {
		t.Errorf("Forward(10) = %v, want %v", got, want)
	}
	if c.Now() != want {
		t.Errorf("Now() = %v, want %v", c.Now(), want)
	}
}

func TestForward_FirstTick(t *testing.T) {
	c, _ := New(0, DefaultQuietHours)
	got, err := c.Forward(10)
	if err != nil {
		t.Fatalf("Forward() error = %v", err)
	}
	if got.Days != 0 || got.Hour != 8 || got.Minute != 0 {
		t.Errorf("Forward(10) from origin = %v, want day 0 08:00", got)
	}
}

func TestForward_NoSkip(t *testing.T) {
	c, _ := New(3, nil)
	got, err := c.Forward(1450)
	if err != nil {
		t.Fatalf("Forward() error = %v", err)
	}
	want := Time{Days: 1, Hour: 0, Minute: 10, Weekday: 4}
	if got != want {
		t.Errorf("Forward(1450) = %v, want %v", got, want)
	}
}

func TestForward_WeekdayWraps(t *testing.T) {
	c, _ := New(6, nil)
	if err := c.SetTime(0, 23, 0); err != nil {
		t.Fatal(err)
	}
	got, _ := c.Forward(60)
	if got.Weekday != 0 {
		t.Errorf("Weekday = %d, want 0", got.Weekday)
	}
}

func TestForward_AlwaysSkipping(t *testing.T) {
	c, _ := New(0, SkipFunc(func(_, _, _ int) bool { return true }))
	if err := c.SetTime(2, 9, 30); err != nil {
		t.Fatal(err)
	}
	before := c.Ticks()

	_, err := c.Forward(10)
	if !errors.Is(err, models.ErrConfiguration) {
		t.Fatalf("Forward() error = %v, want ErrConfiguration", err)
	}
	if c.Ticks() != before {
		t.Errorf("Ticks() = %d after failed Forward, want %d", c.Ticks(), before)
	}
}

func TestForward_InvalidDelta(t *testing.T) {
	c, _ := New(0, nil)
	for _, d := range []int{0, -10} {
		if _, err := c.Forward(d); !errors.Is(err, models.ErrConfiguration) {
			t.Errorf("Forward(%d) error = %v, want ErrConfiguration", d, err)
		}
	}
}

func TestNew_InvalidWeekday(t *testing.T) {
	for _, wd := range []int{-1, 7} {
		if _, err := New(wd, nil); !errors.Is(err, models.ErrConfiguration) {
			t.Errorf("New(%d) error = %v, want ErrConfiguration", wd, err)
		}
	}
}

func TestSetTimeAndReset(t *testing.T) {
	c, _ := New(0, nil)
	if err := c.SetTime(-1, 0, 0); err == nil {
		t.Error("SetTime(-1, 0, 0) error = nil, want error")
	}
	if err := c.SetTime(2, 10, 20); err != nil {
		t.Fatalf("SetTime() error = %v", err)
	}
	if got := c.Ticks(); got != 2*MinutesPerDay+10*60+20 {
		t.Errorf("Ticks() = %d", got)
	}
	c.Reset()
	if got := c.Now(); got != (Time{}) {
		t.Errorf("Now() after Reset = %v, want zero", got)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	c, _ := New(2, DefaultQuietHours)
	c.Forward(10)
	c.Forward(10)

	snap, err := c.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	restored, err := FromSnapshot(snap)
	if err != nil {
		t.Fatalf("FromSnapshot() error = %v", err)
	}
	if restored.Now() != c.Now() {
		t.Errorf("restored Now() = %v, want %v", restored.Now(), c.Now())
	}

	a, _ := c.Forward(10)
	b, _ := restored.Forward(10)
	if a != b {
		t.Errorf("restored clock diverged: %v vs %v", b, a)
	}
}

func TestSnapshot_FuncSkipper(t *testing.T) {
	c, _ := New(0, SkipFunc(func(_, _, _ int) bool { return false }))
	if _, err := c.Snapshot(); err == nil {
		t.Error("Snapshot() error = nil, want error for function skipper")
	}
}
