// Package similarity provides the closed set of image distance methods used to
// rank a collection against a query image.
package similarity

import (
	"fmt"
	"image"
	"strings"

	"github.com/papercomputeco/hvision/pkg/errs"
	"github.com/papercomputeco/hvision/pkg/features"
)

// Kind names a similarity method.
type Kind string

const (
	// KindHistogram compares global color histograms.
	KindHistogram Kind = "hist"

	// KindMatch counts ratio-test matches between local descriptors.
	KindMatch Kind = "surf"

	// KindBOW compares Bag-of-Words descriptors over a vocabulary.
	KindBOW Kind = "bow"
)

// Kinds lists every supported method.
var Kinds = []Kind{KindHistogram, KindMatch, KindBOW}

// ParseKind maps a method name to its Kind. The empty string selects
// KindHistogram.
func ParseKind(name string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(name))); k {
	case "":
		return KindHistogram, nil
	case KindHistogram, KindMatch, KindBOW:
		return k, nil
	default:
		return "", fmt.Errorf("%w: unknown similarity method %q (want one of %v)", errs.ErrConfiguration, name, Kinds)
	}
}

// Signature is an image described for one method. Only the fields the method
// uses are set.
type Signature struct {
	Histogram   []float32
	Descriptors []features.Descriptor
}

// Comparer describes images and measures the distance between descriptions.
// Lower distances mean more similar. A Comparer belongs to one worker and is
// not safe for concurrent use.
type Comparer interface {
	Describe(img image.Image) (Signature, error)
	Distance(query, candidate Signature) float64
}

// Method is a configured similarity method. The set of methods is closed:
// only this package implements Method.
type Method interface {
	Kind() Kind

	// NewComparer returns a fresh Comparer for one worker.
	NewComparer() (Comparer, error)

	method()
}
