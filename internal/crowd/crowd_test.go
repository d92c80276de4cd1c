package crowd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/nvandessel/nudge/internal/models"
)

func TestActionWriter_RoundTrip(t *testing.T) {
	ctx := models.Context{
		DaysPassed:       3,
		Hour:             14,
		Minute:           30,
		Weekday:          2,
		Location:         models.LocationWork,
		Activity:         models.ActivityWalking,
		MinutesSinceLast: 95,
	}

	var buf bytes.Buffer
	w, err := NewActionWriter(&buf)
	if err != nil {
		t.Fatalf("NewActionWriter() error = %v", err)
	}
	if err := w.Write(NewAction(ctx)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if w.Count() != 1 {
		t.Errorf("Count() = %d, want 1", w.Count())
	}

	firstLine := strings.SplitN(buf.String(), "\n", 2)[0]
	if want := strings.Join(ActionHeader, ","); firstLine != want {
		t.Errorf("header = %q, want %q", firstLine, want)
	}

	actions, err := ReadActions(&buf)
	if err != nil {
		t.Fatalf("ReadActions() error = %v", err)
	}
	if len(actions) != 1 {
		t.Fatalf("len(ReadActions()) = %d, want 1", len(actions))
	}
	got, err := actions[0].Context()
	if err != nil {
		t.Fatalf("Context() error = %v", err)
	}
	if got != ctx {
		t.Errorf("Context() = %+v, want %+v", got, ctx)
	}
}

func TestDescribe(t *testing.T) {
	got := Describe(models.Context{Hour: 13, Minute: 5, Weekday: 0, Location: models.LocationHome, Activity: models.ActivityStationary, MinutesSinceLast: 20})
	want := "It is 1:05 PM on Sunday. You are stationary at home. Your last notification was 20 minutes ago."
	if got != want {
		t.Errorf("Describe() = %q, want %q", got, want)
	}
}

func TestReadResponses(t *testing.T) {
	in := "WorkerId,SubmitTime,Input.hour,Input.minute,Input.day,Input.motion,Input.location,Input.last_notification_time,Input.num_days_passed,Answer.sentiment\n" +
		"A1B2C3D4E5,Tue Jul 10 10:00:00 PDT 2018,9,10,1,bus,beach,30,2,Later\n" +
		"A1B2C3D4E6,,9,10,1,walking,home,30,2,Accept\n"

	rs, err := ReadResponses(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadResponses() error = %v", err)
	}
	if len(rs) != 2 {
		t.Fatalf("len(ReadResponses()) = %d, want 2", len(rs))
	}
	if key := rs[0].Key(); key != (models.TickKey{Day: 2, Hour: 9, Minute: 10}) {
		t.Errorf("Key() = %v, want day=2 09:10", key)
	}
	ans, err := rs[1].Answer()
	if err != nil || ans != models.AnswerAccept {
		t.Errorf("Answer() = %v, %v, want accept", ans, err)
	}
	ctx, err := rs[0].Context()
	if err != nil {
		t.Fatalf("Context() error = %v", err)
	}
	if ctx.Location != models.LocationOther || ctx.Activity != models.ActivityCommuting {
		t.Errorf("Context() location=%v activity=%v, want others/commuting", ctx.Location, ctx.Activity)
	}
	if rs[0].SubmitTime == "" || rs[0].WorkerID != "A1B2C3D4E5" {
		t.Errorf("optional columns not read: %+v", rs[0])
	}
}

func TestReadResponses_MissingColumn(t *testing.T) {
	_, err := ReadResponses(strings.NewReader("Input.hour,Input.minute,Answer.sentiment\n1,2,Accept\n"))
	if err == nil {
		t.Error("ReadResponses() without Input.num_days_passed error = nil, want error")
	}
}

func TestWriteResponses_ReadBack(t *testing.T) {
	in := []Response{{WorkerID: "W1", Hour: 8, Minute: 0, DaysPassed: 1, Motion: "walking", Location: "home", Sentiment: "Dismiss"}}
	var buf bytes.Buffer
	if err := WriteResponses(&buf, in); err != nil {
		t.Fatalf("WriteResponses() error = %v", err)
	}
	out, err := ReadResponses(&buf)
	if err != nil {
		t.Fatalf("ReadResponses() error = %v", err)
	}
	if len(out) != 1 || out[0] != in[0] {
		t.Errorf("ReadResponses() = %+v, want %+v", out, in)
	}
}
