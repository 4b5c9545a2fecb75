// Package archive mirrors metrics and performance report snapshots to S3
// when a bucket is configured, grounded in the corpus's S3 uploader
// pattern. Local filesystem writes always happen regardless; this is an
// optional, additive mirror.
package archive

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Archiver uploads JSON blobs to a configured bucket/prefix using the
// managed uploader, which picks single-PUT vs. multipart automatically.
type S3Archiver struct {
	client *s3.Client
	bucket string
	prefix string
	up     *manager.Uploader
}

// NewS3Archiver builds an archiver using the default AWS credential chain.
func NewS3Archiver(ctx context.Context, bucket, region, prefix string) (*S3Archiver, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return &S3Archiver{
		client: client,
		bucket: bucket,
		prefix: prefix,
		up:     manager.NewUploader(client),
	}, nil
}

// PutJSON uploads data under prefix/key.
func (a *S3Archiver) PutJSON(ctx context.Context, key string, data []byte) error {
	objectKey := key
	if a.prefix != "" {
		objectKey = a.prefix + "/" + key
	}
	_, err := a.up.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("upload %s to s3://%s: %w", objectKey, a.bucket, err)
	}
	return nil
}
