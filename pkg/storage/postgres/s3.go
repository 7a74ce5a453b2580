package postgres

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/bukget/pkg/catalog"
	"github.com/platinummonkey/bukget/pkg/storage"
)

// Mirror keeps copies of plugin files in an S3 bucket and hands out presigned
// download URLs for them
type Mirror struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	prefix  string
	ttl     time.Duration
}

// NewMirror creates an S3 mirror from the storage configuration
func NewMirror(ctx context.Context, cfg storage.Config) (*Mirror, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.S3Region)}
	if cfg.S3AccessKey != "" && cfg.S3SecretKey != "" {
		// static credentials for MinIO or explicit keys
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
		o.UsePathStyle = cfg.S3UsePathStyle
	})

	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	return &Mirror{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.S3Bucket,
		prefix:  strings.Trim(cfg.S3Prefix, "/"),
		ttl:     ttl,
	}, nil
}

// Key returns the object key of a plugin version file
func (m *Mirror) Key(server, slug string, v catalog.Version) string {
	filename := v.Filename
	if filename == "" {
		filename = slug + ".jar"
	}
	return objectKey(m.prefix, server, slug, v.Version, filename)
}

func objectKey(prefix, server, slug, version, filename string) string {
	parts := []string{server, slug, version, path.Base(filename)}
	if prefix != "" {
		parts = append([]string{prefix}, parts...)
	}
	return path.Join(parts...)
}

// DownloadURL returns a presigned URL for the mirrored file of v. The boolean is
// false when the file has not been mirrored.
func (m *Mirror) DownloadURL(ctx context.Context, server, slug string, v catalog.Version) (string, bool, error) {
	key := m.Key(server, slug, v)
	ctx, span := tracer.Start(ctx, "S3.DownloadURL",
		trace.WithAttributes(
			attribute.String("s3.bucket", m.bucket),
			attribute.String("s3.key", key),
		),
	)
	defer span.End()

	exists, err := m.ObjectExists(ctx, key)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to check object")
		return "", false, err
	}
	span.SetAttributes(attribute.Bool("s3.mirrored", exists))
	if !exists {
		return "", false, nil
	}

	url, err := m.presignURL(ctx, key)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to presign")
		return "", false, err
	}
	return url, true, nil
}

// presignURL signs a GET for key without contacting S3
func (m *Mirror) presignURL(ctx context.Context, key string) (string, error) {
	req, err := m.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(m.ttl))
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", key, err)
	}
	return req.URL, nil
}

// Upload stores the file of v. The version's MD5 is kept as object metadata.
func (m *Mirror) Upload(ctx context.Context, server, slug string, v catalog.Version, body io.Reader) error {
	key := m.Key(server, slug, v)
	ctx, span := tracer.Start(ctx, "S3.Upload",
		trace.WithAttributes(
			attribute.String("s3.bucket", m.bucket),
			attribute.String("s3.key", key),
		),
	)
	defer span.End()

	input := &s3.PutObjectInput{
		Bucket:      aws.String(m.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String("application/java-archive"),
	}
	if v.MD5 != "" {
		input.Metadata = map[string]string{"md5": v.MD5}
	}

	if _, err := m.client.PutObject(ctx, input); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to upload")
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

// Has reports whether the file of v has been mirrored
func (m *Mirror) Has(ctx context.Context, server, slug string, v catalog.Version) (bool, error) {
	return m.ObjectExists(ctx, m.Key(server, slug, v))
}

// ObjectExists checks if an object exists
func (m *Mirror) ObjectExists(ctx context.Context, key string) (bool, error) {
	_, err := m.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check object existence: %w", err)
	}
	return true, nil
}

// EnsureBucket creates the bucket when it does not exist, for local MinIO setups
func (m *Mirror) EnsureBucket(ctx context.Context) error {
	if _, err := m.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(m.bucket)}); err == nil {
		return nil
	}

	_, err := m.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(m.bucket)})
	if err != nil && !isBucketAlreadyExistsError(err) {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// HealthCheck verifies S3 connectivity
func (m *Mirror) HealthCheck(ctx context.Context) error {
	if _, err := m.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(m.bucket)}); err != nil {
		return fmt.Errorf("s3 health check failed: %w", err)
	}
	return nil
}

func isNotFoundError(err error) bool {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	return errors.As(err, &notFound) || errors.As(err, &noSuchKey)
}

func isBucketAlreadyExistsError(err error) bool {
	var exists *types.BucketAlreadyExists
	var owned *types.BucketAlreadyOwnedByYou
	return errors.As(err, &exists) || errors.As(err, &owned)
}
