// Package classifier defines the binary classifier capability used for
// one-vs-rest training and ships a deterministic linear SVM.
package classifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/papercomputeco/hvision/pkg/errs"
)

// Target labels of a binary problem.
const (
	Positive int8 = 1
	Negative int8 = -1
)

// Model is a fitted binary classifier.
type Model interface {
	// Kind names the model family; it selects the decoder in Unmarshal.
	Kind() string

	// Dim returns the input dimension.
	Dim() int

	// Score returns the signed decision value; positive means the positive class.
	Score(x []float32) (float64, error)

	// Marshal serializes the fitted parameters. Identical parameters always
	// serialize to identical bytes.
	Marshal() ([]byte, error)
}

// Trainer fits a binary model to a design matrix X (one row per sample) and
// targets y in {Positive, Negative}. Implementations must be deterministic
// for identical (X, y).
type Trainer interface {
	Fit(ctx context.Context, X [][]float32, y []int8) (Model, error)
}

// ErrNoSamples is returned by Fit when X is empty.
var ErrNoSamples = errors.New("no training samples")

// Predict returns Positive when the model scores x above zero.
func Predict(m Model, x []float32) (int8, error) {
	s, err := m.Score(x)
	if err != nil {
		return 0, err
	}
	if s > 0 {
		return Positive, nil
	}
	return Negative, nil
}

func validate(X [][]float32, y []int8) (int, error) {
	if len(X) == 0 {
		return 0, ErrNoSamples
	}
	if len(X) != len(y) {
		return 0, fmt.Errorf("%w: %d rows, %d targets", errs.ErrConfiguration, len(X), len(y))
	}

	dim := len(X[0])
	for i, row := range X {
		if len(row) != dim {
			return 0, fmt.Errorf("%w: row %d has dimension %d, want %d", errs.ErrConfiguration, i, len(row), dim)
		}
		if y[i] != Positive && y[i] != Negative {
			return 0, fmt.Errorf("%w: target %d of row %d is not +1/-1", errs.ErrConfiguration, y[i], i)
		}
	}
	return dim, nil
}
