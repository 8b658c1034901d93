// Package features defines the local feature extraction capability and ships
// a pure-Go dense gradient-orientation extractor.
package features

import (
	"image"
)

// Descriptor is the numeric vector describing one local image region.
type Descriptor []float32

// Keypoint is the location and scale of a described region, in source image
// pixel coordinates.
type Keypoint struct {
	X    float32
	Y    float32
	Size float32
}

// Feature pairs a keypoint with its descriptor.
type Feature struct {
	Keypoint   Keypoint
	Descriptor Descriptor
}

// Extractor turns an image into zero or more local descriptors of a fixed
// dimension. Implementations must be deterministic: the same image always
// yields the same descriptors in the same order. An Extractor is not required
// to be safe for concurrent use; each worker owns its own instance.
type Extractor interface {
	// Dim returns the descriptor dimension D.
	Dim() int

	// Extract detects keypoints and describes them. Images without distinctive
	// regions yield an empty slice and no error.
	Extract(img image.Image) ([]Feature, error)
}

// Descriptors drops keypoints and returns the descriptor of each feature.
func Descriptors(fs []Feature) []Descriptor {
	out := make([]Descriptor, len(fs))
	for i, f := range fs {
		out[i] = f.Descriptor
	}
	return out
}
