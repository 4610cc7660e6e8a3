package storage

import (
	"context"
	"io"
)

// ObjectInfo carries the metadata the download paths need without tying
// callers to a particular backend's stat type.
type ObjectInfo struct {
	Size        int64
	ContentType string
}

// ObjectStore is the blob backend the hierarchy, upload and archive code
// talk to. MinIOClient is the production implementation; tests substitute
// an in-memory fake.
type ObjectStore interface {
	Upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error
	Download(ctx context.Context, objectName string) (io.ReadCloser, ObjectInfo, error)
	Delete(ctx context.Context, objectName string) error
}
