package features

import (
	"image"
	"math"

	"github.com/papercomputeco/hvision/pkg/imaging"
)

const (
	spatialCells = 4
	orientBins   = 8

	// DenseDim is the dimension of descriptors produced by Dense.
	DenseDim = spatialCells * spatialCells * orientBins

	defaultStep      = 8
	defaultPatchSize = 16
	defaultMaxSide   = 320
	defaultContrast  = 6.0

	// clipValue caps descriptor components before renormalizing, which damps
	// the influence of a few very strong gradients.
	clipValue = 0.2
)

// DenseOptions configures the Dense extractor.
type DenseOptions struct {
	// Step is the grid spacing between patch origins, in working pixels.
	Step int

	// PatchSize is the side of the square patch described at each grid point.
	// It must be a multiple of 4.
	PatchSize int

	// MaxSide downsamples images whose longest side exceeds it.
	MaxSide int

	// ContrastThreshold is the minimum mean gradient magnitude for a patch to
	// count as a keypoint. Flat regions are skipped.
	ContrastThreshold float64
}

// Dense samples square patches on a regular grid, keeps those with enough
// gradient energy and describes each with a 4x4 grid of 8-bin gradient
// orientation histograms (128 dimensions).
type Dense struct {
	opts DenseOptions

	// scratch buffers reused between calls
	mag []float32
	ori []float32
}

// NewDense returns a Dense extractor, filling zero options with defaults.
func NewDense(opts DenseOptions) *Dense {
	if opts.Step <= 0 {
		opts.Step = defaultStep
	}
	if opts.PatchSize <= 0 || opts.PatchSize%spatialCells != 0 {
		opts.PatchSize = defaultPatchSize
	}
	if opts.MaxSide <= 0 {
		opts.MaxSide = defaultMaxSide
	}
	if opts.ContrastThreshold <= 0 {
		opts.ContrastThreshold = defaultContrast
	}
	return &Dense{opts: opts}
}

// Dim implements Extractor.
func (d *Dense) Dim() int {
	return DenseDim
}

// Extract implements Extractor.
func (d *Dense) Extract(img image.Image) ([]Feature, error) {
	gray := imaging.Gray(img)
	work, scale := downsample(gray, d.opts.MaxSide)

	w, h := work.Rect.Dx(), work.Rect.Dy()
	p := d.opts.PatchSize
	if w < p || h < p {
		return []Feature{}, nil
	}

	d.gradients(work)

	var out []Feature
	for y := 0; y+p <= h; y += d.opts.Step {
		for x := 0; x+p <= w; x += d.opts.Step {
			desc, ok := d.describe(x, y, w)
			if !ok {
				continue
			}
			out = append(out, Feature{
				Keypoint: Keypoint{
					X:    (float32(x) + float32(p)/2) * scale,
					Y:    (float32(y) + float32(p)/2) * scale,
					Size: float32(p) * scale,
				},
				Descriptor: desc,
			})
		}
	}

	if out == nil {
		out = []Feature{}
	}
	return out, nil
}

// gradients fills the magnitude and orientation planes with central
// differences (one-sided at the border).
func (d *Dense) gradients(g *image.Gray) {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	n := w * h
	if cap(d.mag) < n {
		d.mag = make([]float32, n)
		d.ori = make([]float32, n)
	}
	d.mag, d.ori = d.mag[:n], d.ori[:n]

	at := func(x, y int) float64 {
		return float64(g.Pix[y*g.Stride+x])
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			x0, x1 := max(x-1, 0), min(x+1, w-1)
			y0, y1 := max(y-1, 0), min(y+1, h-1)

			dx := (at(x1, y) - at(x0, y)) / float64(max(x1-x0, 1))
			dy := (at(x, y1) - at(x, y0)) / float64(max(y1-y0, 1))

			i := y*w + x
			d.mag[i] = float32(math.Hypot(dx, dy))
			theta := math.Atan2(dy, dx)
			if theta < 0 {
				theta += 2 * math.Pi
			}
			d.ori[i] = float32(theta)
		}
	}
}

// describe builds the descriptor of the patch at (x0, y0). It reports false
// for low-contrast patches.
func (d *Dense) describe(x0, y0, w int) (Descriptor, bool) {
	p := d.opts.PatchSize
	cell := p / spatialCells

	var energy float64
	desc := make(Descriptor, DenseDim)

	for py := 0; py < p; py++ {
		for px := 0; px < p; px++ {
			i := (y0+py)*w + (x0 + px)
			m := d.mag[i]
			if m == 0 {
				continue
			}
			energy += float64(m)

			bin := int(float64(d.ori[i]) / (2 * math.Pi) * orientBins)
			if bin >= orientBins {
				bin = orientBins - 1
			}
			cx, cy := px/cell, py/cell
			desc[(cy*spatialCells+cx)*orientBins+bin] += m
		}
	}

	if energy/float64(p*p) < d.opts.ContrastThreshold {
		return nil, false
	}

	if !normalizeL2(desc) {
		return nil, false
	}
	for i, v := range desc {
		if v > clipValue {
			desc[i] = clipValue
		}
	}
	normalizeL2(desc)

	return desc, true
}

func normalizeL2(v []float32) bool {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return false
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
	return true
}

// downsample shrinks g by an integer box filter so its longest side is at most
// maxSide. It returns the working image and the factor mapping working
// coordinates back to source coordinates.
func downsample(g *image.Gray, maxSide int) (*image.Gray, float32) {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	longest := max(w, h)
	if longest <= maxSide {
		return g, 1
	}

	f := (longest + maxSide - 1) / maxSide
	nw, nh := w/f, h/f
	out := image.NewGray(image.Rect(0, 0, nw, nh))

	for y := 0; y < nh; y++ {
		for x := 0; x < nw; x++ {
			var sum int
			for dy := 0; dy < f; dy++ {
				row := (y*f + dy) * g.Stride
				for dx := 0; dx < f; dx++ {
					sum += int(g.Pix[row+x*f+dx])
				}
			}
			out.Pix[y*out.Stride+x] = uint8(sum / (f * f))
		}
	}
	return out, float32(f)
}
