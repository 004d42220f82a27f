package storage

import (
	"context"
	"fmt"

	"storybook/internal/infra"
)

// FromConfig builds the blob store selected by STORAGE_DRIVER.
func FromConfig(ctx context.Context, cfg *infra.Config) (BlobStore, error) {
	switch cfg.StorageDriver {
	case infra.StorageDriverS3:
		return NewS3Store(ctx, S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			PublicBaseURL:   cfg.S3PublicBaseURL,
			PathStyle:       cfg.S3PathStyle,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretKey,
		})
	case infra.StorageDriverFilesystem, "":
		return NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
	default:
		return nil, fmt.Errorf("storage: unsupported driver %q", cfg.StorageDriver)
	}
}
