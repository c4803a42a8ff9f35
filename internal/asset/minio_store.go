package asset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/abduss/assetgate/internal/config"
	"github.com/minio/minio-go/v7"
)

// minioAPI is the part of minio.Client the store needs.
type minioAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// MinIOStore keeps assets in a MinIO bucket. The object ETag is the revision token.
// MinIO has no conditional put here, so the ETag check before a write is best effort and
// relies on the service's per-path lock.
type MinIOStore struct {
	client  minioAPI
	bucket  string
	hasCred bool
}

// NewMinIOStore constructs an adapter.
func NewMinIOStore(client minioAPI, cfg config.MinIOConfig) *MinIOStore {
	return &MinIOStore{
		client:  client,
		bucket:  cfg.Bucket,
		hasCred: cfg.AccessKeyID != "" && cfg.SecretAccessKey != "",
	}
}

func (s *MinIOStore) Backend() string { return config.BackendMinIO }

func (s *MinIOStore) Ready() error {
	if !s.hasCred || s.client == nil {
		return ErrMissingCredential
	}
	return nil
}

func (s *MinIOStore) Ping(ctx context.Context) error {
	if err := s.Ready(); err != nil {
		return err
	}
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return classifyMinIO(err)
	}
	if !ok {
		return fmt.Errorf("%w: bucket %s does not exist", ErrRejected, s.bucket)
	}
	return nil
}

func (s *MinIOStore) Revision(ctx context.Context, path string) (string, error) {
	if err := s.Ready(); err != nil {
		return "", err
	}
	info, err := s.client.StatObject(ctx, s.bucket, path, minio.StatObjectOptions{})
	if err != nil {
		return "", classifyMinIO(err)
	}
	return info.ETag, nil
}

func (s *MinIOStore) Put(ctx context.Context, obj StoredAsset) (WriteResult, error) {
	current, err := s.Revision(ctx, obj.Path)
	switch {
	case errors.Is(err, ErrObjectNotFound):
		current = ""
	case err != nil:
		return WriteResult{}, err
	}

	if obj.Revision == "" && current != "" {
		return WriteResult{}, fmt.Errorf("%w: %s", ErrAlreadyExists, obj.Path)
	}
	if obj.Revision != "" && obj.Revision != current {
		return WriteResult{}, fmt.Errorf("%w: %s changed from %s to %q", ErrConflict, obj.Path, obj.Revision, current)
	}

	info, err := s.client.PutObject(ctx, s.bucket, obj.Path, bytes.NewReader(obj.Content), int64(len(obj.Content)), minio.PutObjectOptions{
		ContentType:  obj.ContentType,
		UserMetadata: map[string]string{"commit-message": obj.Message},
	})
	if err != nil {
		return WriteResult{}, fmt.Errorf("put %s: %w", obj.Path, classifyMinIO(err))
	}
	return WriteResult{Revision: info.ETag, CommitID: info.VersionID}, nil
}

func classifyMinIO(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}

	resp := minio.ToErrorResponse(err)
	switch {
	case resp.Code == "NoSuchBucket":
		return fmt.Errorf("%w: %v", ErrRejected, err)
	case resp.Code == "NoSuchKey" || resp.Code == "NoSuchObject":
		return ErrObjectNotFound
	case resp.Code == "SlowDown" || resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable:
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	case resp.Code == "AccessDenied" || resp.Code == "InvalidAccessKeyId" || resp.Code == "SignatureDoesNotMatch":
		return fmt.Errorf("%w: %s", ErrUnauthorized, resp.Code)
	case resp.Code == "PreconditionFailed":
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	case resp.StatusCode == http.StatusNotFound:
		return ErrObjectNotFound
	case resp.StatusCode == 0:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	default:
		return fmt.Errorf("%w: %v", ErrRejected, err)
	}
}
