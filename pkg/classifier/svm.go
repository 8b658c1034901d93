package classifier

import (
	"context"
	"fmt"
	"math"
)

const (
	KindLinearSVM = "linear_svm"

	DefaultMaxIterations = 100
	DefaultEpsilon       = 1e-6
	DefaultC             = 1.0
	DefaultLearningRate  = 0.5
)

// SVMOptions configures LinearSVMTrainer.
type SVMOptions struct {
	// C is the inverse regularization strength.
	C float64

	// MaxIterations bounds the number of full-batch subgradient steps.
	MaxIterations int

	// Epsilon stops training once a step moves the parameters less than it.
	Epsilon float64

	// LearningRate is the initial step size; step t uses LearningRate/sqrt(t).
	LearningRate float64

	// Balanced weights each class inversely to its frequency, which keeps
	// one-vs-rest problems from collapsing to the majority class.
	Balanced bool
}

func (o SVMOptions) withDefaults() SVMOptions {
	if o.C <= 0 {
		o.C = DefaultC
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	if o.Epsilon <= 0 {
		o.Epsilon = DefaultEpsilon
	}
	if o.LearningRate <= 0 {
		o.LearningRate = DefaultLearningRate
	}
	return o
}

// LinearSVMTrainer fits a soft-margin linear SVM by full-batch subgradient
// descent on the regularized hinge loss. Every step visits rows in order and
// accumulates in float64, so fitting is deterministic given row order.
type LinearSVMTrainer struct {
	opts SVMOptions
}

// NewLinearSVMTrainer creates a trainer with the given options.
func NewLinearSVMTrainer(opts SVMOptions) *LinearSVMTrainer {
	return &LinearSVMTrainer{opts: opts.withDefaults()}
}

// Fit implements Trainer.
func (t *LinearSVMTrainer) Fit(ctx context.Context, X [][]float32, y []int8) (Model, error) {
	dim, err := validate(X, y)
	if err != nil {
		return nil, err
	}

	n := len(X)
	weights := classWeights(y, t.opts.Balanced)
	lambda := 1 / (t.opts.C * float64(n))

	w := make([]float64, dim)
	grad := make([]float64, dim)
	var b float64

	m := &LinearSVM{}
	for iter := 1; iter <= t.opts.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m.Iterations = iter

		for j := range grad {
			grad[j] = lambda * w[j]
		}
		var gradB float64

		for i, row := range X {
			yi := float64(y[i])
			if yi*(dot(w, row)+b) >= 1 {
				continue
			}
			scale := weights[i] * yi / float64(n)
			for j, v := range row {
				grad[j] -= scale * float64(v)
			}
			gradB -= scale
		}

		eta := t.opts.LearningRate / math.Sqrt(float64(iter))
		var step float64
		for j := range w {
			d := eta * grad[j]
			w[j] -= d
			step += d * d
		}
		b -= eta * gradB
		step += eta * gradB * eta * gradB

		if math.Sqrt(step) < t.opts.Epsilon {
			m.Converged = true
			break
		}
	}

	m.Weights = w
	m.Bias = b
	return m, nil
}

func classWeights(y []int8, balanced bool) []float64 {
	out := make([]float64, len(y))
	var pos, neg int
	for _, v := range y {
		if v == Positive {
			pos++
		} else {
			neg++
		}
	}

	for i, v := range y {
		switch {
		case !balanced:
			out[i] = 1
		case v == Positive:
			out[i] = float64(len(y)) / (2 * float64(pos))
		default:
			out[i] = float64(len(y)) / (2 * float64(neg))
		}
	}
	return out
}

func dot(w []float64, x []float32) float64 {
	var s float64
	for j, v := range x {
		s += w[j] * float64(v)
	}
	return s
}

// LinearSVM is a fitted linear decision function w·x + b.
type LinearSVM struct {
	Weights    []float64
	Bias       float64
	Iterations int
	Converged  bool
}

// Kind implements Model.
func (m *LinearSVM) Kind() string {
	return KindLinearSVM
}

// Dim implements Model.
func (m *LinearSVM) Dim() int {
	return len(m.Weights)
}

// Score implements Model.
func (m *LinearSVM) Score(x []float32) (float64, error) {
	if len(x) != len(m.Weights) {
		return 0, fmt.Errorf("input dimension %d, model dimension %d", len(x), len(m.Weights))
	}
	return dot(m.Weights, x) + m.Bias, nil
}
