// Package distance provides the vector and histogram distance functions used
// by descriptor encoding, clustering and similarity ranking.
package distance

import (
	"fmt"
	"math"
	"strings"
)

// Metric identifies a distance function. Lower values always mean "more similar".
type Metric int

const (
	MetricL2 Metric = iota
	MetricSquaredL2
	MetricChiSquare
	MetricBhattacharyya
)

func (m Metric) String() string {
	switch m {
	case MetricL2:
		return "l2"
	case MetricSquaredL2:
		return "squared_l2"
	case MetricChiSquare:
		return "chi_square"
	case MetricBhattacharyya:
		return "bhattacharyya"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// ParseMetric maps a metric name to its Metric.
func ParseMetric(name string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "l2", "euclidean", "":
		return MetricL2, nil
	case "squared_l2", "sql2":
		return MetricSquaredL2, nil
	case "chi_square", "chisqr":
		return MetricChiSquare, nil
	case "bhattacharyya", "hellinger":
		return MetricBhattacharyya, nil
	default:
		return 0, fmt.Errorf("unknown metric: %q", name)
	}
}

// Func computes the distance between two vectors of equal length.
type Func func(a, b []float32) float64

// Provider returns the distance function for the given metric.
func Provider(m Metric) (Func, error) {
	switch m {
	case MetricL2:
		return L2, nil
	case MetricSquaredL2:
		return SquaredL2, nil
	case MetricChiSquare:
		return ChiSquare, nil
	case MetricBhattacharyya:
		return Bhattacharyya, nil
	default:
		return nil, fmt.Errorf("unsupported metric: %v", m)
	}
}

// SquaredL2 returns the squared Euclidean distance.
// Assumes len(a) == len(b) (caller's responsibility).
func SquaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// L2 returns the Euclidean distance.
func L2(a, b []float32) float64 {
	return math.Sqrt(SquaredL2(a, b))
}

// ChiSquare returns sum((a-b)^2 / a) over bins where a > 0, matching the
// asymmetric chi-square histogram comparison.
func ChiSquare(a, b []float32) float64 {
	var sum float64
	for i := range a {
		if a[i] <= 0 {
			continue
		}
		d := float64(a[i]) - float64(b[i])
		sum += d * d / float64(a[i])
	}
	return sum
}

// Bhattacharyya returns the Hellinger form of the Bhattacharyya distance
// between two non-negative histograms. Identical histograms yield 0, disjoint
// ones 1. Two empty histograms are identical.
func Bhattacharyya(a, b []float32) float64 {
	var sumA, sumB, bc float64
	for i := range a {
		sumA += float64(a[i])
		sumB += float64(b[i])
		bc += math.Sqrt(float64(a[i]) * float64(b[i]))
	}

	if sumA == 0 && sumB == 0 {
		return 0
	}
	if sumA == 0 || sumB == 0 {
		return 1
	}

	v := 1 - bc/math.Sqrt(sumA*sumB)
	if v < 0 {
		v = 0
	}
	return math.Sqrt(v)
}

// Normalize scales v in place so its components sum to 1.
// Returns false if the sum is zero.
func Normalize(v []float32) bool {
	var sum float64
	for _, x := range v {
		sum += float64(x)
	}
	if sum == 0 {
		return false
	}
	inv := 1 / sum
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
	return true
}
