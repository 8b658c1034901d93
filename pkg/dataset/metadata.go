package dataset

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/papercomputeco/hvision/pkg/errs"
	"github.com/papercomputeco/hvision/pkg/imaging"
)

// Well-known metadata keys.
const (
	KeyLabelID      = "labelid"
	KeyLabelCount   = "label_count"
	KeyType         = "type"
	KeyWidth        = "width"
	KeyHeight       = "height"
	KeyChannelCount = "channel_count"
	KeyDepth        = "depth"
	KeyExt          = "ext"
	KeyFaceCount    = "facecount"
	KeyName         = "name"

	// TypeRaw marks a payload as raw interleaved pixels.
	TypeRaw = "raw"

	pairSep = ";"
	kvSep   = "="
)

// Metadata is the parsed form of a record key: "k=v" pairs joined by ";".
// Key order is preserved so a re-rendered key matches the original.
type Metadata struct {
	keys   []string
	values map[string]string
}

// ParseMetadata parses a record key. Empty segments are ignored; a segment
// without "=" or with an empty name is an errs.ErrConfiguration.
func ParseMetadata(s string) (Metadata, error) {
	md := Metadata{values: make(map[string]string)}

	for _, seg := range strings.Split(s, pairSep) {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}

		k, v, ok := strings.Cut(seg, kvSep)
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return Metadata{}, fmt.Errorf("%w: malformed metadata segment %q", errs.ErrConfiguration, seg)
		}

		if _, dup := md.values[k]; !dup {
			md.keys = append(md.keys, k)
		}
		md.values[k] = strings.TrimSpace(v)
	}

	return md, nil
}

// Has reports whether key is present.
func (m Metadata) Has(key string) bool {
	_, ok := m.values[key]
	return ok
}

// Get returns the value for key.
func (m Metadata) Get(key string) (string, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Int returns key parsed as an integer.
func (m Metadata) Int(key string) (int, error) {
	v, ok := m.values[key]
	if !ok {
		return 0, fmt.Errorf("%w: metadata key %q missing", errs.ErrConfiguration, key)
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: metadata key %q: %w", errs.ErrConfiguration, key, err)
	}
	return n, nil
}

// With returns a copy of m with key set to value, appended if new.
func (m Metadata) With(key, value string) Metadata {
	out := Metadata{
		keys:   append([]string(nil), m.keys...),
		values: make(map[string]string, len(m.values)+1),
	}
	for k, v := range m.values {
		out.values[k] = v
	}
	if _, ok := out.values[key]; !ok {
		out.keys = append(out.keys, key)
	}
	out.values[key] = value
	return out
}

// String renders the metadata back into key form.
func (m Metadata) String() string {
	parts := make([]string, 0, len(m.keys))
	for _, k := range m.keys {
		parts = append(parts, k+kvSep+m.values[k])
	}
	return strings.Join(parts, pairSep)
}

// Label returns the label id and label count. The id must lie in [0, count).
func (m Metadata) Label() (id, count int, err error) {
	id, err = m.Int(KeyLabelID)
	if err != nil {
		return 0, 0, err
	}
	count, err = m.Int(KeyLabelCount)
	if err != nil {
		return 0, 0, err
	}
	if count <= 0 || id < 0 || id >= count {
		return 0, 0, fmt.Errorf("%w: label id %d outside [0, %d)", errs.ErrConfiguration, id, count)
	}
	return id, count, nil
}

// IsRaw reports whether the payload holds raw pixels.
func (m Metadata) IsRaw() bool {
	return m.values[KeyType] == TypeRaw
}

// RawLayout returns the pixel layout for raw payloads and nil for standard
// encoded ones. A raw payload missing a dimension key is errs.ErrConfiguration.
func (m Metadata) RawLayout() (*imaging.RawLayout, error) {
	if !m.IsRaw() {
		return nil, nil
	}

	var l imaging.RawLayout
	var err error
	if l.Width, err = m.Int(KeyWidth); err != nil {
		return nil, err
	}
	if l.Height, err = m.Int(KeyHeight); err != nil {
		return nil, err
	}
	if l.Channels, err = m.Int(KeyChannelCount); err != nil {
		return nil, err
	}
	if l.Depth, err = m.Int(KeyDepth); err != nil {
		return nil, err
	}
	return &l, nil
}

// Ext returns the encoded image extension, if any.
func (m Metadata) Ext() string {
	return m.values[KeyExt]
}
