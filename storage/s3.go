package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/draftdesk/scriptstore/interfaces"
	"github.com/draftdesk/scriptstore/keycodec"
)

// S3Store implements interfaces.BlobStore against Amazon S3 or a
// compatible object store.
type S3Store struct {
	client   *s3.S3
	bucket   string
	region   string
	endpoint string
	log      *slog.Logger
}

// NewS3Store creates a durable object store backend from the given
// configuration. It builds the client but performs no connectivity check;
// failures surface on first use.
func NewS3Store(cfg Config, log *slog.Logger) (*S3Store, error) {
	awsCfg := aws.Config{
		Region:      aws.String(cfg.S3Region),
		Credentials: credentials.NewStaticCredentials(cfg.S3AccessKey, cfg.S3SecretKey, ""),
	}

	if cfg.S3Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.S3Endpoint)
		// Custom endpoints (MinIO and friends) generally require
		// path-style addressing.
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(&awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &S3Store{
		client:   s3.New(sess),
		bucket:   cfg.S3Bucket,
		region:   cfg.S3Region,
		endpoint: strings.TrimSuffix(cfg.S3Endpoint, "/"),
		log:      log,
	}, nil
}

// Upload stores data under a freshly derived key.
func (s *S3Store) Upload(ctx context.Context, data []byte, namespace, originalName, contentType string) (interfaces.StorageKey, string, error) {
	start := time.Now()
	key := keycodec.DeriveKey(namespace, originalName)

	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key.String()),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to upload object to S3: %w", err)
	}

	s.log.Debug("Stored object in S3",
		slog.String("bucket", s.bucket),
		slog.String("key", key.String()),
		slog.Int("size", len(data)),
		slog.Duration("duration", time.Since(start)))

	return key, s.PublicURL(key), nil
}

// Exists issues a metadata-only HeadObject probe. A 404-equivalent is the
// only condition reported as definitively absent; every other failure is
// unknown and wrapped in ErrBackendUnavailable so callers cannot mistake
// it for a missing object.
func (s *S3Store) Exists(ctx context.Context, key interfaces.StorageKey) (bool, error) {
	start := time.Now()

	_, err := s.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key.String()),
	})
	if err == nil {
		return true, nil
	}

	if isNotFound(err) {
		s.log.Debug("Object not found in S3",
			slog.String("bucket", s.bucket),
			slog.String("key", key.String()),
			slog.Duration("duration", time.Since(start)))
		return false, nil
	}

	s.log.Warn("Inconclusive S3 existence probe",
		slog.String("bucket", s.bucket),
		slog.String("key", key.String()),
		"err", err,
		slog.Duration("duration", time.Since(start)))
	return false, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
}

// Delete removes the object for key. S3 DeleteObject succeeds for absent
// keys, so delete is naturally idempotent.
func (s *S3Store) Delete(ctx context.Context, key interfaces.StorageKey) error {
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key.String()),
	})
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to delete object from S3: %w", err)
	}

	s.log.Debug("Deleted object from S3",
		slog.String("bucket", s.bucket),
		slog.String("key", key.String()))
	return nil
}

// Fetch retrieves the object bytes. Returns ErrObjectNotFound if absent.
func (s *S3Store) Fetch(ctx context.Context, key interfaces.StorageKey) ([]byte, error) {
	result, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key.String()),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, interfaces.ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}
	return data, nil
}

// PublicURL returns the object URL: virtual-hosted AWS style by default,
// path-style under a custom endpoint.
func (s *S3Store) PublicURL(key interfaces.StorageKey) string {
	escaped := escapeKey(key)
	if s.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucket, escaped)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, escaped)
}

// Name returns a unique identifier for this storage backend.
func (s *S3Store) Name() string {
	return fmt.Sprintf("s3-%s", s.bucket)
}

// escapeKey percent-encodes each key segment, keeping the slashes.
func escapeKey(key interfaces.StorageKey) string {
	segments := strings.Split(key.String(), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}

// isNotFound reports whether err is a 404-equivalent from the object
// store: the only evidence that may classify an object as absent.
func isNotFound(err error) bool {
	var reqErr awserr.RequestFailure
	if errors.As(err, &reqErr) && reqErr.StatusCode() == 404 {
		return true
	}

	var awsErr awserr.Error
	if errors.As(err, &awsErr) {
		switch awsErr.Code() {
		case s3.ErrCodeNoSuchKey, s3.ErrCodeNoSuchBucket, "NotFound":
			return true
		}
	}
	return false
}
