package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"pipeline-acceptance/internal/urlpath"
)

// LocalStore reads a pipeline output tree that was copied to local disk.
type LocalStore struct{}

func (LocalStore) List(ctx context.Context, dir string) ([]string, error) {
	names := make([]string, 0)
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return names, nil
	}
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

func (LocalStore) Open(_ context.Context, location string) (io.ReadCloser, error) {
	return os.Open(strings.TrimPrefix(location, "file://"))
}

// Objects routes s3 URLs to the object store and everything else to local disk.
type Objects struct {
	S3    *MinioStore
	Local LocalStore
}

func (o Objects) List(ctx context.Context, dir string) ([]string, error) {
	if urlpath.IsS3(dir) {
		if o.S3 == nil {
			return nil, errors.New("no object store configured for " + dir)
		}
		return o.S3.List(ctx, dir)
	}
	return o.Local.List(ctx, strings.TrimPrefix(dir, "file://"))
}

func (o Objects) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	if urlpath.IsS3(location) {
		if o.S3 == nil {
			return nil, errors.New("no object store configured for " + location)
		}
		return o.S3.Open(ctx, location)
	}
	return o.Local.Open(ctx, location)
}

func (o Objects) ReadAll(ctx context.Context, location string) ([]byte, error) {
	rc, err := o.Open(ctx, location)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
