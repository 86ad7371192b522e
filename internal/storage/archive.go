package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/handwriting-extractor/internal/common"
)

// Archiver keeps a copy of uploaded originals. Archival is best-effort: callers log
// errors and carry on.
type Archiver interface {
	Archive(ctx context.Context, filename string, data []byte, contentType string) (string, error)
	Enabled() bool
}

// NewArchiver returns an S3 archiver when a bucket is configured and a no-op otherwise.
func NewArchiver(ctx context.Context, cfg common.ArchiveConfig, logger *slog.Logger) (Archiver, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Bucket == "" {
		logger.Info("storage.archive.disabled")
		return Noop{}, nil
	}
	return NewS3Archiver(ctx, cfg, logger)
}

type Noop struct{}

func (Noop) Archive(context.Context, string, []byte, string) (string, error) { return "", nil }
func (Noop) Enabled() bool                                                   { return false }

// S3Archiver writes to any S3-compatible bucket (AWS, R2, MinIO).
type S3Archiver struct {
	client *s3.Client
	bucket string
	logger *slog.Logger
	now    func() time.Time
}

func NewS3Archiver(ctx context.Context, cfg common.ArchiveConfig, logger *slog.Logger) (*S3Archiver, error) {
	if logger == nil {
		logger = slog.Default()
	}
	region := cfg.Region
	if region == "" {
		region = "auto"
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Info("storage.archive.enabled", "bucket", cfg.Bucket, "endpoint", cfg.Endpoint)
	return &S3Archiver{
		client: client,
		bucket: cfg.Bucket,
		logger: logger,
		now:    time.Now,
	}, nil
}

func (a *S3Archiver) Enabled() bool { return true }

// Archive uploads data under uploads/<yyyy>/<mm>/<uuid><ext> and returns the key.
func (a *S3Archiver) Archive(ctx context.Context, filename string, data []byte, contentType string) (string, error) {
	start := time.Now()
	key := ObjectKey(a.now(), uuid.New(), filename)
	in := &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
		Metadata: map[string]string{
			"original-filename": filepath.Base(filename),
		},
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	if _, err := a.client.PutObject(ctx, in); err != nil {
		a.logger.Warn("storage.archive.error", "key", key, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	a.logger.Info("storage.archive.ok", "key", key, "bytes", len(data), "elapsed_ms", time.Since(start).Milliseconds())
	return key, nil
}

func ObjectKey(now time.Time, id uuid.UUID, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return fmt.Sprintf("uploads/%04d/%02d/%s%s", now.Year(), int(now.Month()), id.String(), ext)
}
