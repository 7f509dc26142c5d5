package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// s3GetObjectAPI is the slice of the S3 client the source uses.
type s3GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads artifacts from s3://Bucket/Prefix.
type S3Source struct {
	client s3GetObjectAPI
	bucket string
	prefix string
}

// NewS3Source builds an S3 client from the default credential chain, an
// optional shared profile, or static keys when both are configured.
func NewS3Source(ctx context.Context, bucket, prefix string, opts SourceOptions) (*S3Source, error) {
	var loadOpts []func(*config.LoadOptions) error
	if opts.AWSRegion != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.AWSRegion))
	}
	if opts.AWSAccessKeyID != "" && opts.AWSSecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.AWSAccessKeyID,
			opts.AWSSecretAccessKey,
			opts.AWSSessionToken,
		)))
	} else if opts.AWSProfile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(opts.AWSProfile))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}

	return newS3SourceWithClient(s3.NewFromConfig(cfg), bucket, prefix), nil
}

func newS3SourceWithClient(client s3GetObjectAPI, bucket, prefix string) *S3Source {
	return &S3Source{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3Source) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(s.prefix, name)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, notExist(s.Location(), name, err)
		}
		return nil, fmt.Errorf("failed to get s3 object %s: %w", objectKey(s.prefix, name), err)
	}
	return out.Body, nil
}

func (s *S3Source) Location() string {
	return "s3://" + objectKey(s.bucket, s.prefix)
}

func (s *S3Source) Close() error {
	return nil
}
