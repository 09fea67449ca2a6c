package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/kozaktomas/photo-library/internal/config"
)

// MinIO stores objects in an S3 bucket under "photos/" and "thumbs/".
type MinIO struct {
	client *minio.Client
	bucket string
}

// NewMinIO connects to the endpoint and creates the bucket if it does
// not exist.
func NewMinIO(ctx context.Context, cfg config.MinIOConfig) (*MinIO, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	s := &MinIO{client: client, bucket: cfg.Bucket}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MinIO) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
	}
	return nil
}

// ObjectKey maps a tree-relative path to its bucket key.
func ObjectKey(tree Tree, name string) (string, error) {
	if tree != Photos && tree != Thumbs {
		return "", fmt.Errorf("unknown %s", tree)
	}
	clean, err := CleanPath(name)
	if err != nil {
		return "", err
	}
	return path.Join(tree.String(), clean), nil
}

// EnsureDir only validates the path; buckets have no directories.
func (s *MinIO) EnsureDir(ctx context.Context, tree Tree, dir string) error {
	_, err := ObjectKey(tree, dir)
	return err
}

// Put uploads data under the object key.
func (s *MinIO) Put(ctx context.Context, tree Tree, name string, data []byte) error {
	key, err := ObjectKey(tree, name)
	if err != nil {
		return err
	}
	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

// Open returns the object. minio.Object is lazy, so it is stat'ed first
// to report missing keys.
func (s *MinIO) Open(ctx context.Context, tree Tree, name string) (io.ReadSeekCloser, Info, error) {
	key, err := ObjectKey(tree, name)
	if err != nil {
		return nil, Info{}, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, Info{}, fmt.Errorf("get object %s: %w", key, err)
	}
	st, err := obj.Stat()
	if err != nil {
		obj.Close()
		if isNotFound(err) {
			return nil, Info{}, fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return nil, Info{}, fmt.Errorf("stat object %s: %w", key, err)
	}
	return obj, Info{Size: st.Size, ModTime: st.LastModified}, nil
}

func isNotFound(err error) bool {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
	}
	return false
}

// Ping checks MinIO connectivity.
func (s *MinIO) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucket)
	return err
}
