// Package dataset reads and writes hvision record files: ordered sequences of
// (key, value) pairs where the key is a metadata string and the value is an
// image payload.
package dataset

import (
	"image"

	"github.com/papercomputeco/hvision/pkg/imaging"
)

// Record is one dataset entry. Records are read-only to jobs.
type Record struct {
	Key   string
	Value []byte
}

// Metadata parses the record key.
func (r Record) Metadata() (Metadata, error) {
	return ParseMetadata(r.Key)
}

// Image parses the key and decodes the payload accordingly. Metadata errors
// wrap errs.ErrConfiguration, payload errors wrap errs.ErrRecordDecode.
func (r Record) Image() (image.Image, Metadata, error) {
	md, err := r.Metadata()
	if err != nil {
		return nil, Metadata{}, err
	}

	layout, err := md.RawLayout()
	if err != nil {
		return nil, md, err
	}

	img, err := imaging.Decode(r.Value, layout)
	if err != nil {
		return nil, md, err
	}
	return img, md, nil
}
