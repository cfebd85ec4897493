package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"

	"github.com/rafaelmorch/platform-sports/internal/config"
	"github.com/rafaelmorch/platform-sports/internal/domain"
)

type fakeS3 struct {
	objects map[string][]byte
	types   map[string]string
	putErr  error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	key := aws.ToString(in.Key)
	f.objects[key] = data
	f.types[key] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestPutAndDeleteWithBaseURL(t *testing.T) {
	ctx := context.Background()
	client := newFakeS3()
	store := NewS3ImageStore(client, config.S3{Bucket: "images", Prefix: "/activities/", BaseURL: "https://cdn.example.com/"})

	ref, err := store.Put(ctx, "owner-1", "image/png", strings.NewReader("png-bytes"), 9)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(ref, "https://cdn.example.com/activities/owner-1/"))
	require.True(t, strings.HasSuffix(ref, ".png"))
	require.Len(t, client.objects, 1)

	key := strings.TrimPrefix(ref, "https://cdn.example.com/")
	require.Equal(t, "image/png", client.types[key])

	require.NoError(t, store.Delete(ctx, ref))
	require.Empty(t, client.objects)
}

func TestPutRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	store := NewS3ImageStore(newFakeS3(), config.S3{Bucket: "images"})

	_, err := store.Put(ctx, "owner-1", "application/pdf", strings.NewReader("%PDF"), 4)
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = store.Put(ctx, "owner-1", "image/jpeg", strings.NewReader(""), 0)
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = store.Put(ctx, "owner-1", "image/jpeg", strings.NewReader("abc"), 10)
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestPutPropagatesStorageErrors(t *testing.T) {
	client := newFakeS3()
	client.putErr = errors.New("access denied")
	store := NewS3ImageStore(client, config.S3{Bucket: "images"})

	_, err := store.Put(context.Background(), "owner-1", "image/jpeg", strings.NewReader("jpg"), 3)
	require.Error(t, err)
	require.NotErrorIs(t, err, domain.ErrValidation)
}

func TestBareKeysWithoutBaseURL(t *testing.T) {
	ctx := context.Background()
	client := newFakeS3()
	store := NewS3ImageStore(client, config.S3{Bucket: "images", Prefix: "activities"})

	ref, err := store.Put(ctx, "owner-2", "image/webp", strings.NewReader("webp"), 4)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(ref, "activities/owner-2/"))
	require.Contains(t, client.objects, ref)

	require.NoError(t, store.Delete(ctx, ref))
	require.NotContains(t, client.objects, ref)
	require.NoError(t, store.Delete(ctx, ""))
}
