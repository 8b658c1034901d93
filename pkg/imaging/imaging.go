// Package imaging decodes record payloads into images and converts them to the
// grayscale planes feature extraction works on.
package imaging

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp" // register webp decoder

	"github.com/papercomputeco/hvision/pkg/errs"
)

// RawLayout describes an uncompressed, interleaved pixel buffer.
// Channel order follows the producer's BGR(A) convention.
type RawLayout struct {
	Width    int
	Height   int
	Channels int
	// Depth is the number of bits per channel sample: 8 or 16 (little endian).
	Depth int
}

// Validate checks the layout against the payload size.
func (l RawLayout) Validate(payloadLen int) error {
	if l.Width <= 0 || l.Height <= 0 {
		return fmt.Errorf("invalid raw dimensions %dx%d", l.Width, l.Height)
	}
	switch l.Channels {
	case 1, 3, 4:
	default:
		return fmt.Errorf("unsupported raw channel count %d", l.Channels)
	}
	if l.Depth != 8 && l.Depth != 16 {
		return fmt.Errorf("unsupported raw depth %d", l.Depth)
	}

	// Compare by division: a crafted header must not overflow the product.
	bpp := l.Channels * (l.Depth / 8)
	pixels := payloadLen / bpp
	if l.Width > pixels || l.Height > pixels/l.Width {
		return fmt.Errorf("raw payload has %d bytes, too small for %dx%d at %d bytes per pixel",
			payloadLen, l.Width, l.Height, bpp)
	}
	return nil
}

// Decode turns a record payload into an image. A nil layout means the payload
// is a standard encoded image (png, jpeg, gif, bmp, tiff, webp).
// Every failure wraps errs.ErrRecordDecode.
func Decode(payload []byte, layout *RawLayout) (image.Image, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", errs.ErrRecordDecode)
	}

	if layout != nil {
		img, err := decodeRaw(payload, *layout)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errs.ErrRecordDecode, err)
		}
		return img, nil
	}

	img, _, err := image.Decode(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrRecordDecode, err)
	}
	return img, nil
}

func decodeRaw(payload []byte, l RawLayout) (image.Image, error) {
	if err := l.Validate(len(payload)); err != nil {
		return nil, err
	}

	bytesPerSample := l.Depth / 8
	sample := func(i int) uint8 {
		if bytesPerSample == 1 {
			return payload[i]
		}
		v := binary.LittleEndian.Uint16(payload[i*2 : i*2+2])
		return uint8(v >> 8)
	}

	rect := image.Rect(0, 0, l.Width, l.Height)
	if l.Channels == 1 {
		gray := image.NewGray(rect)
		for i := 0; i < l.Width*l.Height; i++ {
			gray.Pix[i] = sample(i)
		}
		return gray, nil
	}

	rgba := image.NewNRGBA(rect)
	for p := 0; p < l.Width*l.Height; p++ {
		base := p * l.Channels
		b, g, r := sample(base), sample(base+1), sample(base+2)
		a := uint8(0xff)
		if l.Channels == 4 {
			a = sample(base + 3)
		}
		rgba.Pix[p*4+0] = r
		rgba.Pix[p*4+1] = g
		rgba.Pix[p*4+2] = b
		rgba.Pix[p*4+3] = a
	}
	return rgba, nil
}

// Gray converts img to an 8-bit grayscale plane with origin (0,0).
func Gray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return g
	}

	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Rect, img, b.Min, draw.Src)
	return gray
}

// NRGBA converts img to an NRGBA image with origin (0,0).
func NRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}

	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Rect, img, b.Min, draw.Src)
	return out
}

// DrawRect draws a one pixel wide rectangle outline onto img.
func DrawRect(img draw.Image, r image.Rectangle, c color.Color) {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return
	}
	for x := r.Min.X; x < r.Max.X; x++ {
		img.Set(x, r.Min.Y, c)
		img.Set(x, r.Max.Y-1, c)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		img.Set(r.Min.X, y, c)
		img.Set(r.Max.X-1, y, c)
	}
}

// Encode writes img in the format named by ext ("png", ".jpg", ...).
// Unknown or empty extensions fall back to png.
func Encode(w io.Writer, img image.Image, ext string) error {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "jpg", "jpeg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 95})
	case "gif":
		return gif.Encode(w, img, nil)
	case "bmp":
		return bmp.Encode(w, img)
	case "tif", "tiff":
		return tiff.Encode(w, img, nil)
	default:
		return png.Encode(w, img)
	}
}
