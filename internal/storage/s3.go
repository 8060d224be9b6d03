package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Backend wraps an aws-sdk-go-v2 client (AWS S3, Cloudflare R2, MinIO).
type S3Backend struct {
	client    *s3.Client
	bucket    string
	publicURL string
}

// NewS3Backend creates an S3-compatible backend. An empty endpoint uses AWS.
// publicURL is prefixed to keys when building photo references; when empty
// the reference is s3://bucket/key.
func NewS3Backend(ctx context.Context, endpoint, accessKey, secretKey, bucket, region, publicURL string) (*S3Backend, error) {
	if region == "" {
		region = "auto"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if accessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("configure S3 client: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true // required for MinIO and R2
		}
	})

	return &S3Backend{
		client:    client,
		bucket:    bucket,
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}, nil
}

func (b *S3Backend) Name() string { return "s3" }

func (b *S3Backend) Upload(ctx context.Context, key string, reader io.Reader, size int64) error {
	if err := validKey(key); err != nil {
		return err
	}
	input := &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        reader,
		ContentType: aws.String("image/jpeg"),
	}
	if size > 0 {
		input.ContentLength = aws.Int64(size)
	}
	if _, err := b.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("upload %s to s3: %w", key, err)
	}
	return nil
}

func (b *S3Backend) Delete(ctx context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete %s from s3: %w", key, err)
	}
	return nil
}

func (b *S3Backend) URL(key string) string {
	if b.publicURL == "" {
		return "s3://" + b.bucket + "/" + key
	}
	return b.publicURL + "/" + key
}
