// Package s3 provides an S3/MinIO storage backend.
package s3

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/Kamii-Samaa/Product-Images/internal/logging"
	"github.com/Kamii-Samaa/Product-Images/internal/metrics"
)

// Config holds S3 backend settings. Endpoint is optional; when set (MinIO,
// self-hosted gateways) the client switches to path-style addressing.
type Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
}

// Backend implements storage.Backend using S3/MinIO.
type Backend struct {
	client *s3.Client
	bucket string
}

// New creates an S3 backend and verifies the bucket exists, creating it
// when possible.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	if cfg.Endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{
					URL:               cfg.Endpoint,
					HostnameImmutable: true,
				}, nil
			},
		)
		opts = append(opts, config.WithEndpointResolverWithOptions(resolver))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.Endpoint != ""
	})

	backend := &Backend{
		client: client,
		bucket: cfg.Bucket,
	}

	if err := backend.ensureBucket(ctx); err != nil {
		logging.Error("bucket check failed", zap.Error(err))
	}

	return backend, nil
}

func (b *Backend) ensureBucket(ctx context.Context) error {
	start := time.Now()
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.bucket),
	})
	if err != nil {
		_, createErr := b.client.CreateBucket(ctx, &s3.CreateBucketInput{
			Bucket: aws.String(b.bucket),
		})
		if createErr != nil {
			metrics.RecordStorageOp("s3", "create_bucket", time.Since(start), false)
			return fmt.Errorf("bucket %s does not exist and cannot create: %w", b.bucket, createErr)
		}
		metrics.RecordStorageOp("s3", "create_bucket", time.Since(start), true)
		logging.Info("created S3 bucket", zap.String("bucket", b.bucket))
	}
	return nil
}

// GetObject retrieves an object from S3.
func (b *Backend) GetObject(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	start := time.Now()

	result, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		metrics.RecordStorageOp("s3", "get_object", time.Since(start), false)
		return nil, 0, fmt.Errorf("get object %s: %w", key, err)
	}

	metrics.RecordStorageOp("s3", "get_object", time.Since(start), true)

	size := int64(0)
	if result.ContentLength != nil {
		size = *result.ContentLength
	}

	return result.Body, size, nil
}

// PutObject uploads content to S3.
func (b *Backend) PutObject(ctx context.Context, key string, body io.Reader, size int64) error {
	start := time.Now()

	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		metrics.RecordStorageOp("s3", "put_object", time.Since(start), false)
		return fmt.Errorf("put object %s: %w", key, err)
	}

	metrics.RecordStorageOp("s3", "put_object", time.Since(start), true)
	logging.Debug("S3 put object", zap.String("key", key), zap.Int64("size", size))
	return nil
}

// DeleteObject removes an object from S3.
func (b *Backend) DeleteObject(ctx context.Context, key string) error {
	start := time.Now()

	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		metrics.RecordStorageOp("s3", "delete_object", time.Since(start), false)
		return err
	}

	metrics.RecordStorageOp("s3", "delete_object", time.Since(start), true)
	logging.Debug("S3 delete object", zap.String("key", key))
	return nil
}

// ObjectExists checks if an object exists in S3.
func (b *Backend) ObjectExists(ctx context.Context, key string) (bool, error) {
	start := time.Now()

	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		metrics.RecordStorageOp("s3", "head_object", time.Since(start), false)
		return false, nil
	}

	metrics.RecordStorageOp("s3", "head_object", time.Since(start), true)
	return true, nil
}

// Type returns "s3".
func (b *Backend) Type() string { return "s3" }

// Close is a no-op for S3 backends.
func (b *Backend) Close() error { return nil }
