package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/kamal-hamza/tagbox/internal/core/domain"
	"github.com/kamal-hamza/tagbox/internal/core/ports"
	"github.com/kamal-hamza/tagbox/pkg/config"
)

// PresignExpiry is how long a presigned GET URL stays valid
const PresignExpiry = 7 * 24 * time.Hour

type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type getPresigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Store keeps blobs in an S3-compatible bucket (AWS, MinIO)
type S3Store struct {
	api       objectAPI
	presign   getPresigner
	bucket    string
	publicURL string
}

var _ ports.BlobStore = (*S3Store)(nil)

// NewS3Store builds a client from the storage settings. Static keys are used
// when configured; otherwise the default AWS credential chain applies.
func NewS3Store(ctx context.Context, cfg config.StorageConfig) (*S3Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Store(client, s3.NewPresignClient(client), cfg.Bucket, cfg.PublicURL), nil
}

func newS3Store(api objectAPI, presign getPresigner, bucket, publicURL string) *S3Store {
	return &S3Store{
		api:       api,
		presign:   presign,
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

// Put uploads the image unless an object with the same content key exists
func (s *S3Store) Put(ctx context.Context, img *domain.NormalizedImage) (*domain.Asset, []string, error) {
	if img == nil || len(img.Bytes) == 0 {
		return nil, nil, fmt.Errorf("no image bytes to store")
	}

	key, hash := contentKey(img)

	_, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	var notFound *types.NotFound
	if err != nil && !errors.As(err, &notFound) {
		return nil, nil, fmt.Errorf("failed to check object %s: %w", key, err)
	}
	if err != nil {
		_, err = s.api.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(s.bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(img.Bytes),
			ContentType:   aws.String(img.MIMEType),
			ContentLength: aws.Int64(int64(len(img.Bytes))),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to upload object %s: %w", key, err)
		}
	}

	url, err := s.objectURL(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	return newAsset(img, key, hash), []string{url}, nil
}

// Delete removes a stored object
func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

// objectURL prefers the configured public base URL and falls back to a presigned GET
func (s *S3Store) objectURL(ctx context.Context, key string) (string, error) {
	if s.publicURL != "" {
		return s.publicURL + "/" + key, nil
	}
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(PresignExpiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", key, err)
	}
	return req.URL, nil
}
