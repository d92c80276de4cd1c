package environment

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/nvandessel/nudge/internal/crowd"
	"github.com/nvandessel/nudge/internal/models"
	"github.com/nvandessel/nudge/internal/rng"
)

func TestAlwaysOK(t *testing.T) {
	a, i, d, err := AlwaysOK{}.ResponseDistribution(9, 0, 1, models.LocationHome, models.ActivityWalking, 100)
	if err != nil {
		t.Fatalf("ResponseDistribution() error = %v", err)
	}
	if a != 1 || i != 0 || d != 0 {
		t.Errorf("ResponseDistribution() = (%v, %v, %v), want (1, 0, 0)", a, i, d)
	}
}

func TestStubborn_Deterministic(t *testing.T) {
	u := NewStubborn(rng.New(1))
	for _, s := range models.AllStates() {
		hour := map[models.TimeOfDay]int{models.TimeMorning: 9, models.TimeAfternoon: 13, models.TimeEvening: 19, models.TimeSleeping: 3}[s.Time]
		weekday := 1
		if s.Day == models.DayWeekend {
			weekday = 0
		}
		since := 30
		if s.Recency == models.RecencyLong {
			since = 300
		}
		a, i, d, err := u.ResponseDistribution(hour, 0, weekday, s.Location, s.Activity, since)
		if err != nil {
			t.Fatalf("ResponseDistribution(%v) error = %v", s, err)
		}
		want := 0.0
		if u.Likes(s) {
			want = 1
		}
		if a != want || i != 0 || d != 1-want {
			t.Fatalf("ResponseDistribution(%v) = (%v, %v, %v), want (%v, 0, %v)", s, a, i, d, want, 1-want)
		}
	}
}

func TestLessStubborn(t *testing.T) {
	u, err := NewLessStubborn(rng.New(2), 0.1)
	if err != nil {
		t.Fatalf("NewLessStubborn() error = %v", err)
	}
	a, _, d, err := u.ResponseDistribution(9, 0, 1, models.LocationHome, models.ActivityWalking, 100)
	if err != nil {
		t.Fatalf("ResponseDistribution() error = %v", err)
	}
	if a != 0.9 && a != 0.1 {
		t.Errorf("accept = %v, want 0.9 or 0.1", a)
	}
	if math.Abs(a+d-1) > 1e-12 {
		t.Errorf("accept + dismiss = %v, want 1", a+d)
	}

	if _, err := NewLessStubborn(rng.New(2), 1.5); !errors.Is(err, models.ErrConfiguration) {
		t.Errorf("NewLessStubborn(1.5) error = %v, want configuration error", err)
	}
}

func TestStubborn_InvalidLocation(t *testing.T) {
	u := NewStubborn(rng.New(1))
	if _, _, _, err := u.ResponseDistribution(9, 0, 1, models.Location(8), models.ActivityWalking, 10); !errors.Is(err, models.ErrValidation) {
		t.Errorf("ResponseDistribution(bad location) error = %v, want validation error", err)
	}
}

func TestSurvey_EmptyBucket(t *testing.T) {
	s, err := NewSurvey(nil, rng.New(1))
	if err != nil {
		t.Fatalf("NewSurvey() error = %v", err)
	}
	a, i, d, err := s.ResponseDistribution(9, 0, 1, models.LocationHome, models.ActivityWalking, 100)
	if err != nil {
		t.Fatalf("ResponseDistribution() error = %v", err)
	}
	if a != 0.1 || i != 0.8 || d != 0.1 {
		t.Errorf("ResponseDistribution() = (%v, %v, %v), want (0.1, 0.8, 0.1)", a, i, d)
	}
	if got := s.EmptyBuckets(); got != 60 {
		t.Errorf("EmptyBuckets() = %d, want 60", got)
	}
}

func TestSurvey_PointDistribution(t *testing.T) {
	responses := []crowd.Response{
		{WorkerID: "W1", Hour: 9, Minute: 0, Weekday: 1, Motion: "walking", Location: "home", MinutesSinceLast: 100, Sentiment: "Dismiss"},
		{WorkerID: "W2", Hour: 9, Minute: 0, Weekday: 2, Motion: "walking", Location: "home", MinutesSinceLast: 200, Sentiment: "Invalid"},
		{WorkerID: "W3", Hour: 9, Minute: 0, Weekday: 0, Motion: "walking", Location: "home", MinutesSinceLast: 200, Sentiment: "Accept"},
	}
	s, err := NewSurvey(responses, rng.New(1))
	if err != nil {
		t.Fatalf("NewSurvey() error = %v", err)
	}
	if s.NumRecords() != 2 {
		t.Errorf("NumRecords() = %d, want 2", s.NumRecords())
	}

	for n := 0; n < 10; n++ {
		a, i, d, err := s.ResponseDistribution(15, 30, 3, models.LocationHome, models.ActivityWalking, 90)
		if err != nil {
			t.Fatalf("ResponseDistribution() error = %v", err)
		}
		if a != 0 || i != 0 || d != 1 {
			t.Fatalf("ResponseDistribution() = (%v, %v, %v), want (0, 0, 1)", a, i, d)
		}
	}
	accept, ignore, dismiss := s.AnswerCounts()
	if accept != 1 || ignore != 0 || dismiss != 1 {
		t.Errorf("AnswerCounts() = (%d, %d, %d), want (1, 0, 1)", accept, ignore, dismiss)
	}
}

func TestNew_Survey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "survey.csv")
	content := "WorkerId,WorkTimeInSeconds,Input.hour,Input.minute,Input.day,Input.motion,Input.location,Input.last_notification_time,Input.num_days_passed,Answer.sentiment\n" +
		"FLAGGED01,10,9,0,1,walking,home,100,0,Dismiss\n" +
		"GOODWORKER,20,9,0,1,walking,home,100,0,Accept\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	env, err := New(KindSurvey, Config{
		Seed:        3,
		SurveyFiles: []string{path},
		Filter:      func(r crowd.Response) bool { return r.WorkerID != "FLAGGED01" },
	})
	if err != nil {
		t.Fatalf("New(survey) error = %v", err)
	}
	a, _, _, err := env.ResponseDistribution(10, 0, 2, models.LocationHome, models.ActivityWalking, 120)
	if err != nil {
		t.Fatalf("ResponseDistribution() error = %v", err)
	}
	if a != 1 {
		t.Errorf("accept = %v, want 1 with the flagged dismissal filtered", a)
	}
	mean, _ := env.(*Survey).AverageWorkTime()
	if mean != 20 {
		t.Errorf("AverageWorkTime() mean = %v, want 20", mean)
	}
}

func TestNew_Errors(t *testing.T) {
	if _, err := New(KindSurvey, Config{}); !errors.Is(err, models.ErrConfiguration) {
		t.Errorf("New(survey, no files) error = %v, want configuration error", err)
	}
	if _, err := New("martian", Config{}); !errors.Is(err, models.ErrConfiguration) {
		t.Errorf("New(unknown) error = %v, want configuration error", err)
	}
	for _, k := range []Kind{KindAlwaysOK, KindStubborn, KindLessStubborn} {
		if _, err := New(k, Config{Seed: 1}); err != nil {
			t.Errorf("New(%s) error = %v", k, err)
		}
	}
}
