package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"pipeline-acceptance/internal/urlpath"
)

// MinioStore addresses objects by s3://bucket/key URLs so one store serves every
// bucket the acceptance config points at.
type MinioStore struct {
	client *minio.Client
}

func NewMinioStore(endpoint, accessKey, secretKey string, useSSL bool) (*MinioStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, err
	}
	return &MinioStore{client: client}, nil
}

func (m *MinioStore) Client() *minio.Client {
	return m.client
}

func (m *MinioStore) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := m.client.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}
	if !exists {
		if err := m.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return err
		}
	}
	return nil
}

func (m *MinioStore) PutFile(ctx context.Context, localPath, dest string) error {
	bucket, key, err := urlpath.SplitS3(dest)
	if err != nil {
		return err
	}
	_, err = m.client.FPutObject(ctx, bucket, key, localPath, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return fmt.Errorf("upload %s to %s: %w", localPath, dest, err)
	}
	return nil
}

func (m *MinioStore) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	bucket, key, err := urlpath.SplitS3(location)
	if err != nil {
		return nil, err
	}
	obj, err := m.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, fmt.Errorf("stat %s: %w", location, err)
	}
	return obj, nil
}

// List returns the keys under dir, relative to it.
func (m *MinioStore) List(ctx context.Context, dir string) ([]string, error) {
	bucket, key, err := urlpath.SplitS3(dir)
	if err != nil {
		return nil, err
	}
	prefix := dirPrefix(key)

	names := make([]string, 0)
	for obj := range m.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list %s: %w", dir, obj.Err)
		}
		names = append(names, strings.TrimPrefix(obj.Key, prefix))
	}
	return names, nil
}

// RemoveRecursive deletes location and everything beneath it. Removing a whole
// bucket is refused.
func (m *MinioStore) RemoveRecursive(ctx context.Context, location string) error {
	bucket, key, err := urlpath.SplitS3(location)
	if err != nil {
		return err
	}
	key = strings.Trim(key, "/")
	if key == "" {
		return fmt.Errorf("refusing to remove bucket root %s", location)
	}

	listErr := make(chan error, 1)
	objectsCh := make(chan minio.ObjectInfo)
	go func() {
		defer close(objectsCh)
		for obj := range m.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: dirPrefix(key), Recursive: true}) {
			if obj.Err != nil {
				listErr <- obj.Err
				return
			}
			objectsCh <- obj
		}
	}()

	var removeErr error
	for rErr := range m.client.RemoveObjects(ctx, bucket, objectsCh, minio.RemoveObjectsOptions{}) {
		if removeErr == nil {
			removeErr = fmt.Errorf("remove %s: %w", rErr.ObjectName, rErr.Err)
		}
	}
	select {
	case err := <-listErr:
		return fmt.Errorf("list %s: %w", location, err)
	default:
	}
	if removeErr != nil {
		return removeErr
	}

	err = m.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{})
	if err != nil && minio.ToErrorResponse(err).Code != "NoSuchKey" {
		return fmt.Errorf("remove %s: %w", location, err)
	}
	return nil
}

func dirPrefix(key string) string {
	key = strings.Trim(key, "/")
	if key == "" {
		return ""
	}
	return key + "/"
}
