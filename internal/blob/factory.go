package blob

import (
	"context"
	"fmt"

	"schoolcoord/internal/config"
)

// Open selects a blob.Store implementation from configuration.
//
//	SCHOOLCOORD_BLOB_DRIVER: fs|s3|memory (default fs)
//	SCHOOLCOORD_BLOB_FS_ROOT: directory root when driver=fs (default ./blobdata)
//	SCHOOLCOORD_BLOB_S3_*: bucket, region, endpoint, path style when driver=s3
func Open(ctx context.Context, cfg config.BlobConfig) (Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		return NewFilesystem(cfg.FSRoot)
	case DriverS3:
		return OpenS3(ctx, cfg)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}

// OpenS3 builds an S3 store regardless of cfg.Driver; the s3 remote driver
// uses it next to a different local blob driver.
func OpenS3(ctx context.Context, cfg config.BlobConfig) (Store, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("%sBLOB_S3_BUCKET required for s3 driver", config.Prefix)
	}
	return NewS3(ctx, S3Config{
		Bucket:    cfg.S3Bucket,
		Region:    cfg.S3Region,
		Endpoint:  cfg.S3Endpoint,
		PathStyle: cfg.S3PathStyle,
	})
}
