package attachments

import (
	"context"
	"fmt"
)

const (
	BackendFS = "fs"
	BackendS3 = "s3"
)

// Open builds the store named by backend ("fs" is the default).
func Open(ctx context.Context, backend, dir string, s3cfg S3Config) (Store, error) {
	switch backend {
	case "", BackendFS:
		return NewFSStore(dir)
	case BackendS3:
		return NewS3Store(ctx, s3cfg)
	default:
		return nil, fmt.Errorf("unknown attachment store %q", backend)
	}
}
