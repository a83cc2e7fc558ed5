// Package assets stores profile images in an S3-compatible object store.
package assets

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
)

// api is the minio surface the store needs, narrowed so tests can fake it.
type api interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucket, object string, opts minio.RemoveObjectOptions) error
	StatObject(ctx context.Context, bucket, object string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
}

type clientWrapper struct{ c *minio.Client }

func (w clientWrapper) BucketExists(ctx context.Context, bucket string) (bool, error) {
	return w.c.BucketExists(ctx, bucket)
}

func (w clientWrapper) MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error {
	return w.c.MakeBucket(ctx, bucket, opts)
}

func (w clientWrapper) PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	return w.c.PutObject(ctx, bucket, object, reader, size, opts)
}

func (w clientWrapper) RemoveObject(ctx context.Context, bucket, object string, opts minio.RemoveObjectOptions) error {
	return w.c.RemoveObject(ctx, bucket, object, opts)
}

func (w clientWrapper) StatObject(ctx context.Context, bucket, object string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	return w.c.StatObject(ctx, bucket, object, opts)
}

// Store uploads and removes binary assets in a single bucket.
type Store struct {
	api    api
	bucket string
}

// NewStore builds a store over a real minio client, creating the bucket when missing.
func NewStore(ctx context.Context, client *minio.Client, bucket string) (*Store, error) {
	return newStoreWithAPI(ctx, clientWrapper{c: client}, bucket)
}

func newStoreWithAPI(ctx context.Context, a api, bucket string) (*Store, error) {
	s := &Store{api: a, bucket: bucket}
	exists, err := s.api.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := s.api.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}
	return s, nil
}

// Upload stores the object under key.
func (s *Store) Upload(ctx context.Context, key string, reader io.Reader, size int64) error {
	if _, err := s.api.PutObject(ctx, s.bucket, key, reader, size, minio.PutObjectOptions{}); err != nil {
		return fmt.Errorf("upload object: %w", err)
	}
	return nil
}

// Delete removes the object under key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.api.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// Exists reports whether an object is stored under key.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	if _, err := s.api.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("stat object: %w", err)
	}
	return true, nil
}
