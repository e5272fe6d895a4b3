// Package s3 implements the media store for AWS S3 and S3-compatible services.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gabriel-vasile/mimetype"

	"github.com/fjmerc/reactshare/internal/models"
	"github.com/fjmerc/reactshare/internal/storage"
)

// multipartUploadPartSize is the size for S3 multipart upload parts (5MB minimum)
const multipartUploadPartSize = 5 * 1024 * 1024

// S3Config holds configuration for S3 storage.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // Custom endpoint for MinIO or other S3-compatible services
	AccessKeyID     string
	SecretAccessKey string
	PathStyle       bool // Use path-style addressing (required for MinIO)
}

// objectAPI is the subset of *s3.Client the store calls.
type objectAPI interface {
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

type uploaderAPI interface {
	Upload(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Storage implements storage.MediaStore on an S3 bucket.
type S3Storage struct {
	client   objectAPI
	uploader uploaderAPI
	bucket   string
}

// NewS3Storage creates a new S3Storage with the given configuration and verifies bucket access.
func NewS3Storage(ctx context.Context, cfg S3Config) (*S3Storage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket name is required")
	}

	var optFuncs []func(*config.LoadOptions) error
	if cfg.Region != "" {
		optFuncs = append(optFuncs, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		optFuncs = append(optFuncs, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, optFuncs...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.PathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = multipartUploadPartSize
	})

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(cfg.Bucket)}); err != nil {
		return nil, fmt.Errorf("failed to access S3 bucket %q: %w", cfg.Bucket, err)
	}

	slog.Info("S3 media store initialized",
		"bucket", cfg.Bucket,
		"region", cfg.Region,
		"endpoint", cfg.Endpoint,
		"path_style", cfg.PathStyle,
	)

	return newS3Storage(client, uploader, cfg.Bucket), nil
}

func newS3Storage(client objectAPI, uploader uploaderAPI, bucket string) *S3Storage {
	return &S3Storage{client: client, uploader: uploader, bucket: bucket}
}

// validateKey ensures the S3 key doesn't contain path traversal attacks or dangerous characters.
func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("empty key not allowed")
	}

	// Reject null bytes which can cause truncation issues
	if strings.ContainsRune(key, '\x00') {
		return fmt.Errorf("null bytes not allowed in key")
	}

	// Reject keys that look URL-encoded to prevent double-encoding attacks
	if strings.Contains(key, "%") {
		return fmt.Errorf("encoded characters not allowed in key")
	}

	if strings.Contains(key, "..") {
		return fmt.Errorf("path traversal not allowed: %s", key)
	}

	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == "/" {
		return fmt.Errorf("invalid key: %s", key)
	}

	return nil
}

// Name implements storage.MediaStore.
func (s *S3Storage) Name() string {
	return "s3"
}

// Upload streams data to the bucket through the multipart uploader.
func (s *S3Storage) Upload(ctx context.Context, data []byte, fallback models.MediaKind) (models.MediaReference, error) {
	ref, err := storage.PrepareUpload(data, fallback)
	if err != nil {
		return models.MediaReference{}, err
	}

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(ref.Key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(mimetype.Detect(data).String()),
	})
	if err != nil {
		return models.MediaReference{}, storage.UploadError(storage.NewStorageError("Upload", ref.Key, err))
	}

	slog.Debug("media stored in S3", "key", ref.Key, "kind", ref.Kind, "size", len(data))
	return ref, nil
}

// Delete removes an object from the bucket.
func (s *S3Storage) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return storage.NewStorageErrorWithMessage("Delete", key, err, "key validation failed")
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		// S3 doesn't error on delete of non-existent objects by default
		return storage.NewStorageError("Delete", key, err)
	}

	slog.Debug("media deleted from S3", "key", key)
	return nil
}

// DeleteBatch removes keys with DeleteObjects in requests of at most storage.MaxBatchSize.
// Invalid keys are reported without being sent.
func (s *S3Storage) DeleteBatch(ctx context.Context, keys []string) []storage.DeleteFailure {
	var failures []storage.DeleteFailure
	objects := make([]types.ObjectIdentifier, 0, len(keys))
	for _, key := range keys {
		if err := validateKey(key); err != nil {
			failures = append(failures, storage.DeleteFailure{
				Key: key,
				Err: storage.NewStorageErrorWithMessage("DeleteBatch", key, err, "key validation failed"),
			})
			continue
		}
		objects = append(objects, types.ObjectIdentifier{Key: aws.String(key)})
	}

	for i := 0; i < len(objects); i += storage.MaxBatchSize {
		end := i + storage.MaxBatchSize
		if end > len(objects) {
			end = len(objects)
		}
		batch := objects[i:end]

		out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{
				Objects: batch,
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			for _, obj := range batch {
				key := aws.ToString(obj.Key)
				failures = append(failures, storage.DeleteFailure{Key: key, Err: storage.NewStorageError("DeleteBatch", key, err)})
			}
			continue
		}

		// Quiet mode only reports the objects that failed
		for _, e := range out.Errors {
			key := aws.ToString(e.Key)
			cause := errors.New(aws.ToString(e.Code) + ": " + aws.ToString(e.Message))
			failures = append(failures, storage.DeleteFailure{Key: key, Err: storage.NewStorageError("DeleteBatch", key, cause)})
		}
	}

	slog.Debug("media batch deleted from S3", "requested", len(keys), "failed", len(failures))
	return failures
}

// HealthCheck verifies that the bucket is accessible with a HEAD request.
// A 5-second timeout keeps it from blocking on network issues.
func (s *S3Storage) HealthCheck(ctx context.Context) error {
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := s.client.HeadBucket(checkCtx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return storage.NewStorageErrorWithMessage("HealthCheck", s.bucket, err, "S3 bucket not accessible")
	}
	return nil
}

var _ storage.MediaStore = (*S3Storage)(nil)
