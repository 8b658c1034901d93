package vocabulary

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/papercomputeco/hvision/pkg/artifact"
	"github.com/papercomputeco/hvision/pkg/errs"
)

const (
	magic   = "HVOC"
	version = uint16(1)

	headerSize = len(magic) + 2 + 4 + 4
)

// Marshal encodes the vocabulary as magic, version, K, D and the centroid
// float32 bit patterns, all little endian.
func (v *Vocabulary) Marshal() ([]byte, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}

	buf := make([]byte, headerSize+4*len(v.Centroids))
	copy(buf, magic)
	binary.LittleEndian.PutUint16(buf[4:], version)
	binary.LittleEndian.PutUint32(buf[6:], uint32(v.K))
	binary.LittleEndian.PutUint32(buf[10:], uint32(v.D))

	off := headerSize
	for _, f := range v.Centroids {
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(f))
		off += 4
	}
	return buf, nil
}

// Unmarshal decodes a vocabulary produced by Marshal.
func Unmarshal(data []byte) (*Vocabulary, error) {
	if len(data) < headerSize || !bytes.Equal(data[:4], []byte(magic)) {
		return nil, errors.New("not an hvision vocabulary")
	}
	if v := binary.LittleEndian.Uint16(data[4:]); v != version {
		return nil, fmt.Errorf("unsupported vocabulary version %d", v)
	}

	k := int(binary.LittleEndian.Uint32(data[6:]))
	d := int(binary.LittleEndian.Uint32(data[10:]))
	body := data[headerSize:]
	// The shape is checked against the body by division so a corrupt header
	// cannot overflow k*d.
	n := len(body) / 4
	if k <= 0 || d <= 0 || len(body)%4 != 0 || n%d != 0 || n/d != k {
		return nil, fmt.Errorf("vocabulary body has %d bytes for shape %dx%d", len(body), k, d)
	}

	centroids := make([]float32, n)
	for i := range centroids {
		f := math.Float32frombits(binary.LittleEndian.Uint32(body[4*i:]))
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return nil, fmt.Errorf("centroid %d has non-finite value %v", i/d, f)
		}
		centroids[i] = f
	}
	return New(k, d, centroids)
}

// Persist writes the vocabulary to store under name.
func Persist(ctx context.Context, store artifact.Store, name string, v *Vocabulary) error {
	data, err := v.Marshal()
	if err != nil {
		return err
	}
	if err := store.Put(ctx, name, data); err != nil {
		return fmt.Errorf("persisting vocabulary %s: %w", name, err)
	}
	return nil
}

// Load reads a vocabulary from store. Missing or unreadable artifacts wrap
// errs.ErrResourceUnavailable.
func Load(ctx context.Context, store artifact.Store, name string) (*Vocabulary, error) {
	data, err := store.Get(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: loading vocabulary %s: %w", errs.ErrResourceUnavailable, name, err)
	}
	v, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding vocabulary %s: %w", errs.ErrResourceUnavailable, name, err)
	}
	return v, nil
}
