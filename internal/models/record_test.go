package models

import (
	"errors"
	"testing"
)

func TestNormalize(t *testing.T) {
	d, err := Normalize(2, 1, 1)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if d.Accept != 0.5 || d.Ignore != 0.25 || d.Dismiss != 0.25 {
		t.Errorf("Normalize(2, 1, 1) = %+v, want {0.5 0.25 0.25}", d)
	}

	if _, err := Normalize(0, 0, 0); err == nil {
		t.Error("Normalize(0, 0, 0) error = nil, want error")
	}
	if _, err := Normalize(-1, 1, 1); err == nil {
		t.Error("Normalize(-1, 1, 1) error = nil, want error")
	}
}

func TestParseSentiment(t *testing.T) {
	tests := []struct {
		in   string
		want Answer
	}{
		{"Accept", AnswerAccept},
		{"Later", AnswerIgnore},
		{"Dismiss", AnswerDismiss},
	}
	for _, tt := range tests {
		got, err := ParseSentiment(tt.in)
		if err != nil {
			t.Fatalf("ParseSentiment(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseSentiment(%q) = %v, want %v", tt.in, got, tt.want)
		}
		if got.Sentiment() != tt.in {
			t.Errorf("%v.Sentiment() = %q, want %q", got, got.Sentiment(), tt.in)
		}
	}
	if _, err := ParseSentiment("Maybe"); err == nil {
		t.Error("ParseSentiment(Maybe) error = nil, want error")
	}
}

func TestRewardTable(t *testing.T) {
	table := DefaultRewardTable(-10)
	if got := table.Reward(AnswerAccept); got != 1 {
		t.Errorf("Reward(accept) = %v, want 1", got)
	}
	if got := table.Reward(AnswerIgnore); got != 0 {
		t.Errorf("Reward(ignore) = %v, want 0", got)
	}
	if got := table.Reward(AnswerDismiss); got != -10 {
		t.Errorf("Reward(dismiss) = %v, want -10", got)
	}
}

func TestEmulationRecord_ResolveOnce(t *testing.T) {
	r := &EmulationRecord{Send: true}
	if r.Resolved() {
		t.Fatal("new record should be unresolved")
	}
	if err := r.Resolve(-5); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !r.IsDismissed() || r.IsAccepted() || r.IsIgnored() {
		t.Errorf("record with reward -5 classified wrongly")
	}
	if err := r.Resolve(1); !errors.Is(err, ErrProtocol) {
		t.Errorf("second Resolve() error = %v, want ErrProtocol", err)
	}
	if got := r.RewardValue(); got != -5 {
		t.Errorf("RewardValue() = %v, want -5", got)
	}
}

func TestErrorTaxonomy(t *testing.T) {
	tests := []struct {
		err      error
		sentinel error
	}{
		{&ValidationError{Dimension: "time", Value: 9}, ErrValidation},
		{&ProtocolError{Op: "FeedReward", State: "awaiting action"}, ErrProtocol},
		{&IntegrityError{StartDay: 7, EndDay: 13, FileType: "response"}, ErrIntegrity},
		{&ConfigurationError{Detail: "skip predicate admits no time"}, ErrConfiguration},
	}
	for _, tt := range tests {
		if !errors.Is(tt.err, tt.sentinel) {
			t.Errorf("errors.Is(%v, %v) = false", tt.err, tt.sentinel)
		}
		if tt.err.Error() == "" {
			t.Errorf("%T.Error() is empty", tt.err)
		}
	}
	if errors.Is(&ProtocolError{}, ErrIntegrity) {
		t.Error("ProtocolError should not match ErrIntegrity")
	}
}
