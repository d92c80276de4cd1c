package rng

import (
	"math"
	"testing"
)

func TestNew_Deterministic(t *testing.T) {
	a, b := New(42), New(42)
	for i := 0; i < 100; i++ {
		if x, y := a.Float64(), b.Float64(); x != y {
			t.Fatalf("draw %d: %v != %v", i, x, y)
		}
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	s := New(7)
	for i := 0; i < 10; i++ {
		s.Float64()
	}
	state, err := s.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary() error = %v", err)
	}
	restored, err := FromState(state)
	if err != nil {
		t.Fatalf("FromState() error = %v", err)
	}
	for i := 0; i < 10; i++ {
		if x, y := s.IntN(1000), restored.IntN(1000); x != y {
			t.Fatalf("draw %d after restore: %d != %d", i, y, x)
		}
	}
}

func TestChoice(t *testing.T) {
	s := New(1)

	got, err := s.Choice([]float64{0, 1, 0})
	if err != nil || got != 1 {
		t.Errorf("Choice([0 1 0]) = %d, %v, want 1", got, err)
	}

	if _, err := s.Choice([]float64{0, 0}); err == nil {
		t.Error("Choice(all zero) error = nil, want error")
	}
	if _, err := s.Choice([]float64{1, -1}); err == nil {
		t.Error("Choice(negative) error = nil, want error")
	}

	counts := make([]int, 3)
	const n = 20000
	for i := 0; i < n; i++ {
		idx, _ := s.Choice([]float64{0.5, 0.3, 0.2})
		counts[idx]++
	}
	for i, want := range []float64{0.5, 0.3, 0.2} {
		if got := float64(counts[i]) / n; math.Abs(got-want) > 0.02 {
			t.Errorf("Choice frequency[%d] = %.3f, want about %.2f", i, got, want)
		}
	}
}

func TestBernoulli(t *testing.T) {
	s := New(3)
	for i := 0; i < 100; i++ {
		if s.Bernoulli(0) {
			t.Fatal("Bernoulli(0) returned true")
		}
		if !s.Bernoulli(1) {
			t.Fatal("Bernoulli(1) returned false")
		}
	}
}
