// Package classifier provides the binary classifier used by the
// contextual-bandit and offline agents: L2-regularised logistic regression
// over standardised features, with an optional k-fold grid search over the
// regularisation strength.
package classifier

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrInsufficientClasses is returned when training data lacks one of the two
// classes or has fewer than two samples.
var ErrInsufficientClasses = errors.New("training data needs samples of both classes")

// Trainer fits a model to labelled feature vectors.
type Trainer interface {
	Fit(x [][]float64, y []bool) (*Model, error)
}

// Scaler standardises features to zero mean and unit variance.
type Scaler struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// FitScaler computes per-column statistics. Constant columns keep a unit
// scale so they transform to zero.
func FitScaler(x [][]float64) Scaler {
	if len(x) == 0 {
		return Scaler{}
	}
	d := len(x[0])
	s := Scaler{Mean: make([]float64, d), Std: make([]float64, d)}
	col := make([]float64, len(x))
	for j := 0; j < d; j++ {
		for i := range x {
			col[i] = x[i][j]
		}
		mean, std := stat.MeanStdDev(col, nil)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		s.Mean[j] = mean
		s.Std[j] = std
	}
	return s
}

// Transform returns a standardised copy of v.
func (s Scaler) Transform(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	if len(s.Mean) != len(v) {
		return out
	}
	floats.Sub(out, s.Mean)
	floats.Div(out, s.Std)
	return out
}

// Model is a trained logistic-regression classifier.
type Model struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
	Scaler  Scaler    `json:"scaler"`
	Lambda  float64   `json:"lambda"`
}

// Probability returns P(negative) and P(positive) for a raw feature vector.
func (m *Model) Probability(x []float64) (neg, pos float64) {
	z := floats.Dot(m.Weights, m.Scaler.Transform(x)) + m.Bias
	pos = sigmoid(z)
	return 1 - pos, pos
}

// Predict returns the positive label when P(positive) >= 0.5.
func (m *Model) Predict(x []float64) bool {
	_, pos := m.Probability(x)
	return pos >= 0.5
}

// Accuracy returns the share of samples classified correctly.
func (m *Model) Accuracy(x [][]float64, y []bool) float64 {
	if len(x) == 0 {
		return 0
	}
	correct := 0
	for i := range x {
		if m.Predict(x[i]) == y[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(x))
}

// Logistic trains by full-batch gradient descent.
type Logistic struct {
	Lambda       float64
	LearningRate float64
	Epochs       int
}

// DefaultLogistic returns the trainer settings used by the agents.
func DefaultLogistic() Logistic {
	return Logistic{Lambda: 0.01, LearningRate: 0.5, Epochs: 300}
}

// Fit trains a model.
func (l Logistic) Fit(x [][]float64, y []bool) (*Model, error) {
	if err := checkTrainingSet(x, y); err != nil {
		return nil, err
	}
	if l.Epochs <= 0 || l.LearningRate <= 0 {
		return nil, fmt.Errorf("invalid trainer settings: epochs=%d learning_rate=%g", l.Epochs, l.LearningRate)
	}

	scaler := FitScaler(x)
	xs := make([][]float64, len(x))
	for i := range x {
		xs[i] = scaler.Transform(x[i])
	}

	n := float64(len(xs))
	d := len(xs[0])
	w := make([]float64, d)
	grad := make([]float64, d)
	var b float64

	for epoch := 0; epoch < l.Epochs; epoch++ {
		for j := range grad {
			grad[j] = 0
		}
		var gradB float64
		for i := range xs {
			p := sigmoid(floats.Dot(w, xs[i]) + b)
			e := p - label(y[i])
			floats.AddScaled(grad, e, xs[i])
			gradB += e
		}
		floats.Scale(1/n, grad)
		floats.AddScaled(grad, l.Lambda, w)
		floats.AddScaled(w, -l.LearningRate, grad)
		b -= l.LearningRate * gradB / n
	}

	if floats.HasNaN(w) || math.IsNaN(b) {
		return nil, fmt.Errorf("training diverged")
	}
	return &Model{Weights: w, Bias: b, Scaler: scaler, Lambda: l.Lambda}, nil
}

func checkTrainingSet(x [][]float64, y []bool) error {
	if len(x) != len(y) {
		return fmt.Errorf("got %d samples but %d labels", len(x), len(y))
	}
	if len(x) < 2 {
		return ErrInsufficientClasses
	}
	pos, neg := countClasses(y)
	if pos == 0 || neg == 0 {
		return ErrInsufficientClasses
	}
	d := len(x[0])
	for i := range x {
		if len(x[i]) != d {
			return fmt.Errorf("sample %d has %d features, want %d", i, len(x[i]), d)
		}
	}
	return nil
}

func countClasses(y []bool) (pos, neg int) {
	for _, v := range y {
		if v {
			pos++
		} else {
			neg++
		}
	}
	return pos, neg
}

func label(v bool) float64 {
	if v {
		return 1
	}
	return 0
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
