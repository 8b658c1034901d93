package features

import (
	"math"

	"github.com/papercomputeco/hvision/pkg/distance"
)

// DefaultRatio is the nearest/second-nearest distance ratio below which a
// match is considered distinctive.
const DefaultRatio = 0.75

// Matcher counts distinctive correspondences between two descriptor sets with
// a brute-force nearest-neighbour search and a ratio test.
type Matcher struct {
	Ratio float64
}

// NewMatcher returns a Matcher using DefaultRatio when ratio is not in (0, 1].
func NewMatcher(ratio float64) *Matcher {
	if ratio <= 0 || ratio > 1 {
		ratio = DefaultRatio
	}
	return &Matcher{Ratio: ratio}
}

// CountMatches returns how many query descriptors have a distinctive nearest
// neighbour among train.
func (m *Matcher) CountMatches(query, train []Descriptor) int {
	if len(train) == 0 {
		return 0
	}

	good := 0
	for _, q := range query {
		best, second := math.Inf(1), math.Inf(1)
		for _, t := range train {
			d := distance.L2(q, t)
			switch {
			case d < best:
				best, second = d, best
			case d < second:
				second = d
			}
		}

		// A single candidate has no competitor and always passes.
		if math.IsInf(second, 1) || best < m.Ratio*second {
			good++
		}
	}
	return good
}
