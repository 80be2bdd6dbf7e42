// Package storage keeps uploaded documents in an object store: S3, MinIO or
// Google Cloud Storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	DriverS3    = "s3"
	DriverMinIO = "minio"
	DriverGCS   = "gcs"
)

var (
	ErrUnknownDriver  = errors.New("storage: unknown driver")
	ErrObjectNotFound = errors.New("storage: object not found")
)

// Storage is the subset of object store operations the application uses.
type Storage interface {
	io.Closer
	PutObject(ctx context.Context, bucket, key string, r io.Reader, opts PutOptions) (ObjectInfo, error)
	StatObject(ctx context.Context, bucket, key string) (ObjectInfo, error)
	DeleteObject(ctx context.Context, bucket, key string) error
	// PresignGet returns a time limited download URL.
	PresignGet(ctx context.Context, bucket, key string, expiry time.Duration) (string, error)
}

type PutOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

type ObjectInfo struct {
	Bucket      string
	Key         string
	Size        int64
	ETag        string
	ContentType string
	UpdatedAt   time.Time
}

// FactoryOptions carries settings for every driver; only the selected one is read.
type FactoryOptions struct {
	S3    S3Options
	MinIO MinIOOptions
	GCS   GCSOptions
}

func NewFromDriver(ctx context.Context, driver string, opts FactoryOptions) (Storage, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverS3:
		return NewS3(ctx, opts.S3)
	case DriverMinIO:
		return NewMinIO(opts.MinIO)
	case DriverGCS:
		return NewGCS(ctx, opts.GCS)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}
