package objectstore

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds the parallel object transfers.
var DefaultConcurrency = runtime.NumCPU() * 5

// ListKeys returns every object key in the bucket, following pagination.
func (s *ObjectStore) ListKeys(ctx context.Context, bucketName string) ([]string, error) {
	var keys []string

	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(bucketName),
	}

	err := s.client.ListObjectsV2PagesWithContext(ctx, input, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, object := range page.Contents {
			keys = append(keys, aws.StringValue(object.Key))
		}
		return true
	})
	if err != nil {
		return nil, errors.Wrap(err, "listing objects failed")
	}

	return keys, nil
}

// UploadDirectory uploads every regular file under dir into the bucket,
// keyed by its slash-separated path relative to dir.
func (s *ObjectStore) UploadDirectory(ctx context.Context, dir, bucketName string) (int, error) {
	uploaded := 0

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		file, err := os.Open(path)
		if err != nil {
			return errors.Wrapf(err, "could not open %s", path)
		}
		defer file.Close()

		_, err = s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
			Bucket: aws.String(bucketName),
			Key:    aws.String(filepath.ToSlash(rel)),
			Body:   file,
		})
		if err != nil {
			return errors.Wrapf(err, "uploading %s failed", rel)
		}

		uploaded++
		return nil
	})
	if err != nil {
		return uploaded, errors.Wrap(err, "directory upload failed")
	}

	return uploaded, nil
}

// CopyBucket copies every object from one bucket to another server-side.
func (s *ObjectStore) CopyBucket(ctx context.Context, from, to string) (int, error) {
	keys, err := s.ListKeys(ctx, from)
	if err != nil {
		return 0, err
	}

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(DefaultConcurrency)

	for _, key := range keys {
		group.Go(func() error {
			_, err := s.client.CopyObjectWithContext(ctx, &s3.CopyObjectInput{
				Bucket:     aws.String(to),
				Key:        aws.String(key),
				CopySource: aws.String(from + "/" + key),
			})
			return errors.Wrapf(err, "copying %s failed", key)
		})
	}

	if err := group.Wait(); err != nil {
		return 0, err
	}
	return len(keys), nil
}

// DownloadAll downloads every object in the bucket into dir, creating parent
// directories per key. Transfers run concurrently.
func (s *ObjectStore) DownloadAll(ctx context.Context, bucketName, dir string) (int, error) {
	keys, err := s.ListKeys(ctx, bucketName)
	if err != nil {
		return 0, err
	}

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(DefaultConcurrency)

	for _, key := range keys {
		group.Go(func() error {
			return s.downloadOne(ctx, bucketName, key, dir)
		})
	}

	if err := group.Wait(); err != nil {
		return 0, err
	}
	return len(keys), nil
}

func (s *ObjectStore) downloadOne(ctx context.Context, bucketName, key, dir string) error {
	target := filepath.Join(dir, filepath.FromSlash(key))
	// a key with ".." segments must not write outside dir
	if rel, err := filepath.Rel(dir, target); err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return errors.Errorf("key %q escapes the download directory", key)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errors.Wrapf(err, "could not create directory for %s", key)
	}

	file, err := os.Create(target)
	if err != nil {
		return errors.Wrapf(err, "could not create %s", target)
	}
	defer file.Close()

	_, err = s.downloader.DownloadWithContext(ctx, file, &s3.GetObjectInput{
		Bucket: aws.String(bucketName),
		Key:    aws.String(key),
	})
	return errors.Wrapf(err, "downloading %s failed", key)
}
