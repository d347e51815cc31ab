// Package blobtest provides blob stores for tests in other packages.
package blobtest

import (
	"schoolcoord/internal/blob"
	infraS3 "schoolcoord/internal/infra/blob/s3"
)

// NewMockS3 returns an S3 store backed by an in-process fake endpoint.
func NewMockS3() blob.Store { return infraS3.NewMockForTests() }
