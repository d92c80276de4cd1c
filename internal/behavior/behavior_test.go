package behavior

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nvandessel/nudge/internal/models"
	"github.com/nvandessel/nudge/internal/rng"
)

func writeRoute(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRandom_Domain(t *testing.T) {
	r := NewRandom(rng.New(5))
	for i := 0; i < 500; i++ {
		loc, act, err := r.LocationActivity(9, 0, 1)
		if err != nil {
			t.Fatalf("LocationActivity() error = %v", err)
		}
		if !loc.Valid() {
			t.Fatalf("location %v out of domain", loc)
		}
		if !act.Valid() || act == models.ActivityCommuting {
			t.Fatalf("activity %v, want stationary/walking/running/driving", act)
		}
	}
}

func TestRandom_SnapshotResumes(t *testing.T) {
	a := NewRandom(rng.New(9))
	a.LocationActivity(0, 0, 0)
	snap, err := a.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	b, err := Restore(snap)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	for i := 0; i < 20; i++ {
		l1, a1, _ := a.LocationActivity(0, 0, 0)
		l2, a2, _ := b.LocationActivity(0, 0, 0)
		if l1 != l2 || a1 != a2 {
			t.Fatalf("draw %d: restored = (%v, %v), original = (%v, %v)", i, l2, a2, l1, a1)
		}
	}
}

func TestTrace(t *testing.T) {
	dir := t.TempDir()
	first := writeRoute(t, dir, "a.tsv",
		"stationary\thome\t60\t0\t0\t1\n"+
			"walking\twork\t32400\t1\t9\t0\n"+
			"nan\tnan\t36000\t1\t10\t0\n")
	second := writeRoute(t, dir, "b.tsv",
		"driving\tothers\t60\t0\t0\t1\n")

	tr, err := LoadTrace([]string{first, second})
	if err != nil {
		t.Fatalf("LoadTrace() error = %v", err)
	}

	tests := []struct {
		name                 string
		hour, minute, wd     int
		wantLoc              models.Location
		wantAct              models.Activity
		wantRoute, wantIndex int
	}{
		{"first record", 0, 0, 0, models.LocationHome, models.ActivityStationary, 0, 0},
		{"at or after", 8, 0, 1, models.LocationWork, models.ActivityWalking, 0, 1},
		{"nan defaults", 9, 30, 1, models.LocationOther, models.ActivityStationary, 0, 2},
		{"exhausted moves on", 23, 0, 6, models.LocationOther, models.ActivityDriving, 1, 0},
		{"rewind moves on", 0, 0, 0, models.LocationHome, models.ActivityStationary, 0, 0},
	}
	for _, tt := range tests {
		loc, act, err := tr.LocationActivity(tt.hour, tt.minute, tt.wd)
		if err != nil {
			t.Fatalf("%s: LocationActivity() error = %v", tt.name, err)
		}
		if loc != tt.wantLoc || act != tt.wantAct {
			t.Errorf("%s: LocationActivity() = (%v, %v), want (%v, %v)", tt.name, loc, act, tt.wantLoc, tt.wantAct)
		}
		if tr.route != tt.wantRoute || tr.cursor != tt.wantIndex {
			t.Errorf("%s: cursor = %d/%d, want %d/%d", tt.name, tr.route, tr.cursor, tt.wantRoute, tt.wantIndex)
		}
	}

	records, missingLoc, missingAct := tr.Summary()
	if records != 4 || missingLoc != 1 || missingAct != 1 {
		t.Errorf("Summary() = (%d, %d, %d), want (4, 1, 1)", records, missingLoc, missingAct)
	}
}

func TestTrace_SnapshotRestore(t *testing.T) {
	dir := t.TempDir()
	path := writeRoute(t, dir, "a.tsv",
		"stationary\thome\t60\t0\t0\t1\n"+
			"running\tothers\t32400\t1\t9\t0\n")
	tr, err := LoadTrace([]string{path})
	if err != nil {
		t.Fatalf("LoadTrace() error = %v", err)
	}
	tr.LocationActivity(8, 0, 1)

	snap, _ := tr.Snapshot()
	b, err := Restore(snap)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if got := b.(*Trace).cursor; got != 1 {
		t.Errorf("restored cursor = %d, want 1", got)
	}
}

func TestLoadTrace_Errors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
	}{
		{"empty", ""},
		{"short line", "walking\thome\t1\n"},
		{"bad activity", "flying\thome\t1\t0\t0\t0\n"},
		{"bad number", "walking\thome\t1\tx\t0\t0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeRoute(t, dir, tt.name+".tsv", tt.content)
			if _, err := LoadTrace([]string{path}); err == nil {
				t.Error("LoadTrace() error = nil, want error")
			}
		})
	}
	if _, err := LoadTrace(nil); err == nil {
		t.Error("LoadTrace(nil) error = nil, want error")
	}
}
