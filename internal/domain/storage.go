package domain

import "context"

// ObjectStore persists binary blobs under a key. Implementations talk to an
// S3-compatible backend; the bridge only depends on this boundary.
type ObjectStore interface {
	Put(ctx context.Context, bucket, key string, data []byte, contentType string, metadata map[string]string) error
}
