package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// gcsOpener opens one object. It is a function so tests can stand in for the
// storage client.
type gcsOpener func(ctx context.Context, bucket, object string) (io.ReadCloser, error)

// GCSSource reads artifacts from gs://Bucket/Prefix.
type GCSSource struct {
	open   gcsOpener
	close  func() error
	bucket string
	prefix string
}

// NewGCSSource builds a storage client from application default credentials
// or an explicit service account file.
func NewGCSSource(ctx context.Context, bucket, prefix string, opts SourceOptions) (*GCSSource, error) {
	var clientOpts []option.ClientOption
	if opts.GCPCredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.GCPCredentialsFile))
	}

	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	open := func(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
		return client.Bucket(bucket).Object(object).NewReader(ctx)
	}
	src := newGCSSourceWithOpener(open, bucket, prefix)
	src.close = client.Close
	return src, nil
}

func newGCSSourceWithOpener(open gcsOpener, bucket, prefix string) *GCSSource {
	return &GCSSource{
		open:   open,
		close:  func() error { return nil },
		bucket: bucket,
		prefix: prefix,
	}
}

func (s *GCSSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	r, err := s.open(ctx, s.bucket, objectKey(s.prefix, name))
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, notExist(s.Location(), name, err)
		}
		return nil, fmt.Errorf("failed to read gcs object %s: %w", objectKey(s.prefix, name), err)
	}
	return r, nil
}

func (s *GCSSource) Location() string {
	return "gs://" + objectKey(s.bucket, s.prefix)
}

func (s *GCSSource) Close() error {
	return s.close()
}
