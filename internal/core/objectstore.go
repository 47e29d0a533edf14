package core

import (
	"context"
	"io"
)

// ObjectClient stores original upload bytes in object storage so documents can
// be re-processed later. Abstract so S3 can be swapped for MinIO, GCS, etc.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string) (url string, err error)
	DeleteFile(ctx context.Context, bucket, key string) error
	GetFile(ctx context.Context, bucket, key string) ([]byte, error)
	GetObjectReader(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}
