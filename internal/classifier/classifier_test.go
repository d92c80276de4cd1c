package classifier

import (
	"errors"
	"math"
	"testing"
)

// separable returns samples where the first feature decides the label.
func separable(n int) ([][]float64, []bool) {
	var x [][]float64
	var y []bool
	for i := 0; i < n; i++ {
		pos := i%2 == 0
		v := 0.0
		if pos {
			v = 1
		}
		x = append(x, []float64{v, float64(i % 3), 1})
		y = append(y, pos)
	}
	return x, y
}

func TestLogistic_Fit(t *testing.T) {
	x, y := separable(40)
	m, err := DefaultLogistic().Fit(x, y)
	if err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	if acc := m.Accuracy(x, y); acc != 1 {
		t.Errorf("Accuracy() = %v, want 1", acc)
	}
	if !m.Predict([]float64{1, 0, 1}) {
		t.Error("Predict(positive sample) = false, want true")
	}
	neg, pos := m.Probability([]float64{0, 1, 1})
	if math.Abs(neg+pos-1) > 1e-12 {
		t.Errorf("Probability() sums to %v, want 1", neg+pos)
	}
	if pos >= 0.5 {
		t.Errorf("P(positive) for negative sample = %v, want < 0.5", pos)
	}
}

func TestLogistic_InsufficientClasses(t *testing.T) {
	tests := []struct {
		name string
		x    [][]float64
		y    []bool
	}{
		{"empty", nil, nil},
		{"single sample", [][]float64{{1}}, []bool{true}},
		{"single class", [][]float64{{1}, {0}, {1}}, []bool{true, true, true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DefaultLogistic().Fit(tt.x, tt.y)
			if !errors.Is(err, ErrInsufficientClasses) {
				t.Errorf("Fit() error = %v, want ErrInsufficientClasses", err)
			}
		})
	}
}

func TestLogistic_MismatchedInput(t *testing.T) {
	if _, err := DefaultLogistic().Fit([][]float64{{1}, {0}}, []bool{true}); err == nil {
		t.Error("Fit() with mismatched labels error = nil, want error")
	}
	if _, err := DefaultLogistic().Fit([][]float64{{1}, {0, 1}}, []bool{true, false}); err == nil {
		t.Error("Fit() with ragged features error = nil, want error")
	}
}

func TestScaler(t *testing.T) {
	s := FitScaler([][]float64{{1, 5}, {3, 5}})
	got := s.Transform([]float64{2, 5})
	if got[0] != 0 {
		t.Errorf("Transform()[0] = %v, want 0", got[0])
	}
	if got[1] != 0 {
		t.Errorf("constant column Transform()[1] = %v, want 0", got[1])
	}
}

func TestGridSearch_Fit(t *testing.T) {
	x, y := separable(30)
	m, err := DefaultGridSearch().Fit(x, y)
	if err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	if acc := m.Accuracy(x, y); acc != 1 {
		t.Errorf("Accuracy() = %v, want 1", acc)
	}
	found := false
	for _, l := range DefaultGridSearch().Lambdas {
		if l == m.Lambda {
			found = true
		}
	}
	if !found {
		t.Errorf("Lambda = %v, not in grid", m.Lambda)
	}
}

func TestGridSearch_FewMinoritySamples(t *testing.T) {
	x := [][]float64{{1}, {0}, {0}, {0}}
	y := []bool{true, false, false, false}
	m, err := DefaultGridSearch().Fit(x, y)
	if err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	if m.Lambda != DefaultLogistic().Lambda {
		t.Errorf("Lambda = %v, want base %v", m.Lambda, DefaultLogistic().Lambda)
	}
}

func TestStratifiedFolds(t *testing.T) {
	y := []bool{true, false, true, false, true, false}
	folds := stratifiedFolds(y, 3)
	perFold := make(map[int][2]int)
	for i, f := range folds {
		c := perFold[f]
		if y[i] {
			c[0]++
		} else {
			c[1]++
		}
		perFold[f] = c
	}
	for f := 0; f < 3; f++ {
		if perFold[f] != [2]int{1, 1} {
			t.Errorf("fold %d class counts = %v, want [1 1]", f, perFold[f])
		}
	}
}
