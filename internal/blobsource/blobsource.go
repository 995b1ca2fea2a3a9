// Package blobsource fetches archive ZIPs from blob storage (S3 or a
// compatible endpoint) ahead of Prepare. Grounded in the S3
// GetObject-with-retry pattern used for bulk CSV ingestion in the
// other examples' marketdata pipeline, adapted to fetch a whole-archive
// payload instead of streaming rows.
package blobsource

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/time/rate"

	"github.com/kbo-data/importer/internal/retry"
)

// fetchBurst and fetchRate bound how fast retries of a stuck GetObject
// call hammer the bucket: at most a handful of attempts per second,
// since archive fetch is the one call in this engine that crosses a
// real network boundary.
const (
	fetchRate  = 2 // requests per second
	fetchBurst = 2
)

// Source fetches archive bytes from an S3-compatible bucket.
type Source struct {
	client  *s3.Client
	bucket  string
	limiter *rate.Limiter
}

// New builds a Source using the default AWS credential chain. endpoint
// may be empty to use AWS S3 directly, or set to point at an
// S3-compatible endpoint.
func New(ctx context.Context, bucket, region, endpoint string) (*Source, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = endpoint != ""
	})

	return &Source{client: client, bucket: bucket, limiter: rate.NewLimiter(fetchRate, fetchBurst)}, nil
}

// Fetch downloads the object at key and returns its full contents,
// retrying transient failures (throttling, 5xx, connection resets)
// while rate-limiting how often those retries hit the bucket.
func (s *Source) Fetch(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := retry.Do(ctx, retry.DefaultConfig(), func() error {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}

		out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return fmt.Errorf("failed to get object %s/%s: %w", s.bucket, key, err)
		}
		defer out.Body.Close()

		body, err := io.ReadAll(out.Body)
		if err != nil {
			return fmt.Errorf("failed to read object %s/%s: %w", s.bucket, key, err)
		}
		data = body
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}
