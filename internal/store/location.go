package store

import (
	"fmt"
	"net/url"
	"strings"
)

// Location schemes.
const (
	SchemeDisk = "file"
	SchemeS3   = "s3"
	SchemeGCS  = "gs"
)

// Location addresses a snapshot: a local directory, or a bucket and key
// prefix in S3 or GCS.
type Location struct {
	Scheme string
	Bucket string
	Path   string // directory for disk, key prefix for buckets
}

// ParseLocation parses "dir", "s3://bucket/prefix" or "gs://bucket/prefix".
func ParseLocation(s string) (Location, error) {
	if s == "" {
		return Location{}, fmt.Errorf("store: empty location")
	}
	if !strings.Contains(s, "://") {
		return Location{Scheme: SchemeDisk, Path: s}, nil
	}
	u, err := url.Parse(s)
	if err != nil {
		return Location{}, fmt.Errorf("store: parsing location: %w", err)
	}
	switch u.Scheme {
	case SchemeS3, SchemeGCS:
		if u.Host == "" {
			return Location{}, fmt.Errorf("store: location %q has no bucket", s)
		}
		return Location{Scheme: u.Scheme, Bucket: u.Host, Path: strings.Trim(u.Path, "/")}, nil
	case SchemeDisk:
		return Location{Scheme: SchemeDisk, Path: u.Path}, nil
	}
	return Location{}, fmt.Errorf("store: unsupported scheme %q", u.Scheme)
}
