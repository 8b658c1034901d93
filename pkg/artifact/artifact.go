// Package artifact stores the write-once, path-addressable artifacts shared by
// every worker of a job: vocabularies, query images and detector models.
package artifact

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
)

// ErrNotFound is returned when an artifact does not exist.
//
// Implementations should return an error that satisfies errors.Is(err, ErrNotFound).
var ErrNotFound = os.ErrNotExist

// Store reads and writes whole artifacts by name.
type Store interface {
	// Get returns the artifact's bytes.
	Get(ctx context.Context, name string) ([]byte, error)

	// Put writes the artifact, replacing any previous content.
	Put(ctx context.Context, name string, data []byte) error
}

// Scheme identifies the backend a location lives on.
type Scheme string

const (
	SchemeFile  Scheme = "file"
	SchemeS3    Scheme = "s3"
	SchemeMinIO Scheme = "minio"
)

// Location is a parsed artifact address. For object stores Bucket names the
// bucket and Key the object; for local files Key is the file path.
type Location struct {
	Scheme Scheme
	Bucket string
	Key    string
}

func (l Location) String() string {
	if l.Scheme == SchemeFile {
		return l.Key
	}
	return string(l.Scheme) + "://" + l.Bucket + "/" + l.Key
}

// ParseLocation accepts plain paths, file:// URLs, s3://bucket/key and
// minio://bucket/key.
func ParseLocation(raw string) (Location, error) {
	if raw == "" {
		return Location{}, fmt.Errorf("empty artifact location")
	}

	if !strings.Contains(raw, "://") {
		return Location{Scheme: SchemeFile, Key: raw}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("parsing artifact location %q: %w", raw, err)
	}

	switch Scheme(u.Scheme) {
	case SchemeFile:
		return Location{Scheme: SchemeFile, Key: u.Path}, nil
	case SchemeS3, SchemeMinIO:
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return Location{}, fmt.Errorf("artifact location %q needs a bucket and a key", raw)
		}
		return Location{Scheme: Scheme(u.Scheme), Bucket: u.Host, Key: key}, nil
	default:
		return Location{}, fmt.Errorf("unsupported artifact scheme %q", u.Scheme)
	}
}
