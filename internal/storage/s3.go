// Package storage keeps activity images in S3-compatible object storage.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/rafaelmorch/platform-sports/internal/config"
	"github.com/rafaelmorch/platform-sports/internal/domain"
)

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

type objectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3ImageStore implements domain.ImageStore. References are public URLs when a base URL is
// configured and bare object keys otherwise.
type S3ImageStore struct {
	client  objectAPI
	bucket  string
	prefix  string
	baseURL string
}

// NewS3Client builds an S3 client with static credentials and an optional custom endpoint.
func NewS3Client(cfg config.S3) *s3.Client {
	return s3.New(s3.Options{
		Region:       cfg.Region,
		Credentials:  aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretAccessKey, "")),
		BaseEndpoint: endpoint(cfg.Endpoint),
		UsePathStyle: cfg.UsePathStyle,
	})
}

// NewS3ImageStore constructs an S3ImageStore.
func NewS3ImageStore(client objectAPI, cfg config.S3) *S3ImageStore {
	base := strings.TrimRight(cfg.BaseURL, "/")
	return &S3ImageStore{
		client:  client,
		bucket:  cfg.Bucket,
		prefix:  strings.Trim(cfg.Prefix, "/"),
		baseURL: base,
	}
}

// Put uploads the image under the owner's prefix and returns its reference.
func (s *S3ImageStore) Put(ctx context.Context, ownerID, contentType string, body io.Reader, size int64) (string, error) {
	ext, ok := extensions[strings.ToLower(strings.TrimSpace(contentType))]
	if !ok {
		return "", &domain.ValidationError{Field: "content_type", Reason: fmt.Sprintf("unsupported image type %q", contentType)}
	}

	// Buffer so the SDK can sign a seekable payload.
	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if size > 0 && int64(len(data)) != size {
		return "", &domain.ValidationError{Field: "body", Reason: "image size does not match content length"}
	}
	if len(data) == 0 {
		return "", &domain.ValidationError{Field: "body", Reason: "image is empty"}
	}

	key := strings.TrimLeft(path.Join(s.prefix, ownerID, uuid.NewString()+ext), "/")
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return s.refFor(key), nil
}

// Delete removes the object behind ref.
func (s *S3ImageStore) Delete(ctx context.Context, ref string) error {
	key := s.keyFor(ref)
	if key == "" {
		return nil
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

func (s *S3ImageStore) refFor(key string) string {
	if s.baseURL == "" {
		return key
	}
	return s.baseURL + "/" + key
}

func (s *S3ImageStore) keyFor(ref string) string {
	ref = strings.TrimSpace(ref)
	if s.baseURL != "" {
		ref = strings.TrimPrefix(ref, s.baseURL+"/")
	}
	return strings.TrimLeft(ref, "/")
}

func endpoint(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return aws.String(value)
}
