package asset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/abduss/assetgate/internal/config"
	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

type s3API interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store keeps assets in an S3 bucket using conditional writes: creates send
// If-None-Match: * and updates send If-Match with the ETag read by Revision.
type S3Store struct {
	client s3API
	bucket string
}

// NewS3Store constructs an adapter. Credentials come from the client's provider chain.
func NewS3Store(client s3API, cfg config.S3Config) *S3Store {
	return &S3Store{client: client, bucket: cfg.Bucket}
}

func (s *S3Store) Backend() string { return config.BackendS3 }

func (s *S3Store) Ready() error {
	if s.client == nil || s.bucket == "" {
		return ErrMissingCredential
	}
	return nil
}

func (s *S3Store) Ping(ctx context.Context) error {
	if err := s.Ready(); err != nil {
		return err
	}
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return classifyS3(err, false)
	}
	return nil
}

func (s *S3Store) Revision(ctx context.Context, path string) (string, error) {
	if err := s.Ready(); err != nil {
		return "", err
	}
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		return "", classifyS3(err, false)
	}
	return aws.ToString(out.ETag), nil
}

func (s *S3Store) Put(ctx context.Context, obj StoredAsset) (WriteResult, error) {
	if err := s.Ready(); err != nil {
		return WriteResult{}, err
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(obj.Path),
		Body:          bytes.NewReader(obj.Content),
		ContentLength: aws.Int64(int64(len(obj.Content))),
		ContentType:   aws.String(obj.ContentType),
		Metadata:      map[string]string{"commit-message": obj.Message},
	}
	if obj.Revision == "" {
		input.IfNoneMatch = aws.String("*")
	} else {
		input.IfMatch = aws.String(obj.Revision)
	}

	out, err := s.client.PutObject(ctx, input)
	if err != nil {
		return WriteResult{}, fmt.Errorf("put %s: %w", obj.Path, classifyS3(err, obj.Revision == ""))
	}
	return WriteResult{Revision: aws.ToString(out.ETag), CommitID: aws.ToString(out.VersionId)}, nil
}

func classifyS3(err error, creating bool) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return ErrObjectNotFound
		case "PreconditionFailed":
			if creating {
				return fmt.Errorf("%w: %s", ErrAlreadyExists, apiErr.ErrorMessage())
			}
			return fmt.Errorf("%w: %s", ErrConflict, apiErr.ErrorMessage())
		case "ConditionalRequestConflict":
			return fmt.Errorf("%w: %s", ErrConflict, apiErr.ErrorMessage())
		case "SlowDown", "Throttling", "ThrottlingException", "RequestLimitExceeded":
			return fmt.Errorf("%w: %s", ErrRateLimited, apiErr.ErrorCode())
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken":
			return fmt.Errorf("%w: %s", ErrUnauthorized, apiErr.ErrorCode())
		case "NoSuchBucket":
			return fmt.Errorf("%w: %s", ErrRejected, apiErr.ErrorCode())
		}
	}

	var respErr *awshttp.ResponseError
	if !errors.As(err, &respErr) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	switch code := respErr.HTTPStatusCode(); {
	case code == http.StatusNotFound:
		return ErrObjectNotFound
	case code == http.StatusPreconditionFailed && creating:
		return fmt.Errorf("%w: status %d", ErrAlreadyExists, code)
	case code == http.StatusPreconditionFailed, code == http.StatusConflict:
		return fmt.Errorf("%w: status %d", ErrConflict, code)
	case code == http.StatusTooManyRequests, code == http.StatusServiceUnavailable:
		return fmt.Errorf("%w: status %d", ErrRateLimited, code)
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrUnauthorized, code)
	case code >= 500:
		return fmt.Errorf("%w: status %d", ErrUnavailable, code)
	default:
		return fmt.Errorf("%w: status %d", ErrRejected, code)
	}
}
