package assets

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	bucketExists bool
	madeBucket   bool

	putKeys    []string
	putErr     error
	removeKeys []string
	removeErr  error
	statErr    error
}

func (f *fakeAPI) BucketExists(context.Context, string) (bool, error) {
	return f.bucketExists, nil
}

func (f *fakeAPI) MakeBucket(context.Context, string, minio.MakeBucketOptions) error {
	f.madeBucket = true
	return nil
}

func (f *fakeAPI) PutObject(_ context.Context, _ string, object string, _ io.Reader, _ int64, _ minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.putErr != nil {
		return minio.UploadInfo{}, f.putErr
	}
	f.putKeys = append(f.putKeys, object)
	return minio.UploadInfo{Key: object}, nil
}

func (f *fakeAPI) RemoveObject(_ context.Context, _ string, object string, _ minio.RemoveObjectOptions) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	f.removeKeys = append(f.removeKeys, object)
	return nil
}

func (f *fakeAPI) StatObject(context.Context, string, string, minio.StatObjectOptions) (minio.ObjectInfo, error) {
	return minio.ObjectInfo{}, f.statErr
}

func TestNewStoreCreatesMissingBucket(t *testing.T) {
	api := &fakeAPI{bucketExists: false}
	_, err := newStoreWithAPI(context.Background(), api, "profile-images")
	require.NoError(t, err)
	assert.True(t, api.madeBucket)

	api = &fakeAPI{bucketExists: true}
	_, err = newStoreWithAPI(context.Background(), api, "profile-images")
	require.NoError(t, err)
	assert.False(t, api.madeBucket)
}

func TestStoreUploadAndDelete(t *testing.T) {
	api := &fakeAPI{bucketExists: true}
	store, err := newStoreWithAPI(context.Background(), api, "profile-images")
	require.NoError(t, err)

	err = store.Upload(context.Background(), "k1.jpg", strings.NewReader("jpeg"), 4)
	require.NoError(t, err)
	assert.Equal(t, []string{"k1.jpg"}, api.putKeys)

	err = store.Delete(context.Background(), "k1.jpg")
	require.NoError(t, err)
	assert.Equal(t, []string{"k1.jpg"}, api.removeKeys)
}

func TestStoreUploadError(t *testing.T) {
	api := &fakeAPI{bucketExists: true, putErr: errors.New("boom")}
	store, err := newStoreWithAPI(context.Background(), api, "profile-images")
	require.NoError(t, err)

	err = store.Upload(context.Background(), "k1.jpg", strings.NewReader("jpeg"), 4)
	assert.Error(t, err)
}

func TestStoreExists(t *testing.T) {
	api := &fakeAPI{bucketExists: true}
	store, err := newStoreWithAPI(context.Background(), api, "profile-images")
	require.NoError(t, err)

	ok, err := store.Exists(context.Background(), "k1.jpg")
	require.NoError(t, err)
	assert.True(t, ok)

	api.statErr = minio.ErrorResponse{Code: "NoSuchKey"}
	ok, err = store.Exists(context.Background(), "k1.jpg")
	require.NoError(t, err)
	assert.False(t, ok)
}
