// Package artifact fetches, verifies and decodes the trained artifacts the
// inference commands run on.
package artifact

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Source reads artifact files by name from one location.
type Source interface {
	// Open returns the named file. Missing files yield an error wrapping
	// fs.ErrNotExist.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Location describes where the files come from.
	Location() string
	Close() error
}

// SourceOptions carries the credentials remote sources need.
type SourceOptions struct {
	AWSRegion          string
	AWSProfile         string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSSessionToken    string
	GCPCredentialsFile string
}

// NewSource picks a Source from a location: a directory path or file:// URL,
// an s3://bucket/prefix URL or a gs://bucket/prefix URL.
func NewSource(ctx context.Context, location string, opts SourceOptions) (Source, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, fmt.Errorf("artifact location is empty")
	}

	scheme, rest := splitScheme(location)
	switch scheme {
	case "", "file":
		return NewLocalSource(rest), nil
	case "s3":
		bucket, prefix, err := splitBucket(rest)
		if err != nil {
			return nil, fmt.Errorf("invalid S3 location %q: %w", location, err)
		}
		return NewS3Source(ctx, bucket, prefix, opts)
	case "gs":
		bucket, prefix, err := splitBucket(rest)
		if err != nil {
			return nil, fmt.Errorf("invalid GCS location %q: %w", location, err)
		}
		return NewGCSSource(ctx, bucket, prefix, opts)
	default:
		return nil, fmt.Errorf("unsupported artifact location scheme %q", scheme)
	}
}

func splitScheme(location string) (string, string) {
	i := strings.Index(location, "://")
	if i < 0 {
		return "", location
	}
	return strings.ToLower(location[:i]), location[i+3:]
}

func splitBucket(rest string) (string, string, error) {
	bucket, prefix, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("missing bucket name")
	}
	return bucket, strings.Trim(prefix, "/"), nil
}

// objectKey joins a prefix and a file name with a single slash.
func objectKey(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// LocalSource reads artifacts from a directory.
type LocalSource struct {
	Dir string
}

func NewLocalSource(dir string) *LocalSource {
	return &LocalSource{Dir: dir}
}

func (s *LocalSource) Open(_ context.Context, name string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.Dir, name))
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *LocalSource) Location() string {
	return s.Dir
}

func (s *LocalSource) Close() error {
	return nil
}

// notExist wraps a store-specific missing-object error so callers can test it
// with errors.Is(err, fs.ErrNotExist).
func notExist(location, name string, cause error) error {
	return fmt.Errorf("%s/%s: %w (%v)", location, name, fs.ErrNotExist, cause)
}
