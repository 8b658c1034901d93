// Package detection finds faces in images with a pixel-intensity-comparison
// cascade (pigo).
package detection

import (
	"errors"
	"fmt"
	"image"

	pigo "github.com/esimov/pigo/core"

	"github.com/papercomputeco/hvision/pkg/errs"
	"github.com/papercomputeco/hvision/pkg/imaging"
)

const (
	DefaultMinSize      = 20
	DefaultMaxSize      = 1000
	DefaultShiftFactor  = 0.1
	DefaultScaleFactor  = 1.1
	DefaultIoUThreshold = 0.2
	DefaultMinQuality   = 5.0
)

// Face is one detected face.
type Face struct {
	Bounds image.Rectangle
	Score  float32
}

// Detector finds faces. A Detector belongs to one worker.
type Detector interface {
	Detect(img image.Image) ([]Face, error)
}

// DetectorFunc adapts a function to Detector.
type DetectorFunc func(img image.Image) ([]Face, error)

// Detect implements Detector.
func (f DetectorFunc) Detect(img image.Image) ([]Face, error) {
	return f(img)
}

// Options tunes the cascade scan.
type Options struct {
	MinSize      int
	MaxSize      int
	ShiftFactor  float64
	ScaleFactor  float64
	IoUThreshold float64
	MinQuality   float32
}

func (o Options) withDefaults() Options {
	if o.MinSize <= 0 {
		o.MinSize = DefaultMinSize
	}
	if o.MaxSize <= 0 {
		o.MaxSize = DefaultMaxSize
	}
	if o.ShiftFactor <= 0 {
		o.ShiftFactor = DefaultShiftFactor
	}
	if o.ScaleFactor <= 1 {
		o.ScaleFactor = DefaultScaleFactor
	}
	if o.IoUThreshold <= 0 {
		o.IoUThreshold = DefaultIoUThreshold
	}
	if o.MinQuality <= 0 {
		o.MinQuality = DefaultMinQuality
	}
	return o
}

// Cascade is a Detector backed by an unpacked pigo cascade.
type Cascade struct {
	classifier *pigo.Pigo
	opts       Options
}

// NewCascade unpacks a pigo face cascade model. Invalid models wrap
// errs.ErrResourceUnavailable.
func NewCascade(model []byte, opts Options) (c *Cascade, err error) {
	if len(model) == 0 {
		return nil, fmt.Errorf("%w: empty cascade model", errs.ErrResourceUnavailable)
	}

	// Unpack indexes the packet without bounds checks.
	defer func() {
		if r := recover(); r != nil {
			c, err = nil, fmt.Errorf("%w: corrupt cascade model: %v", errs.ErrResourceUnavailable, r)
		}
	}()

	classifier, err := pigo.NewPigo().Unpack(model)
	if err != nil {
		return nil, fmt.Errorf("%w: unpacking cascade model: %w", errs.ErrResourceUnavailable, err)
	}
	if classifier == nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrResourceUnavailable, errors.New("cascade model unpacked to nothing"))
	}
	return &Cascade{classifier: classifier, opts: opts.withDefaults()}, nil
}

// Detect implements Detector.
func (c *Cascade) Detect(img image.Image) ([]Face, error) {
	gray := imaging.Gray(img)
	cols, rows := gray.Rect.Dx(), gray.Rect.Dy()

	pixels := gray.Pix
	if gray.Stride != cols {
		pixels = make([]uint8, cols*rows)
		for y := range rows {
			copy(pixels[y*cols:(y+1)*cols], gray.Pix[y*gray.Stride:])
		}
	}

	params := pigo.CascadeParams{
		MinSize:     c.opts.MinSize,
		MaxSize:     min(c.opts.MaxSize, max(cols, rows)),
		ShiftFactor: c.opts.ShiftFactor,
		ScaleFactor: c.opts.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pixels,
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := c.classifier.RunCascade(params, 0.0)
	dets = c.classifier.ClusterDetections(dets, c.opts.IoUThreshold)

	faces := make([]Face, 0, len(dets))
	for _, d := range dets {
		if d.Q < c.opts.MinQuality {
			continue
		}
		faces = append(faces, Face{Bounds: bounds(d), Score: d.Q})
	}
	return faces, nil
}

// bounds converts a center/scale detection to a rectangle.
func bounds(d pigo.Detection) image.Rectangle {
	half := d.Scale / 2
	return image.Rect(d.Col-half, d.Row-half, d.Col+half, d.Row+half)
}
