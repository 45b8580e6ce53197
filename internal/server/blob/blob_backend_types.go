package blob

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	ErrInvalidKey     = errors.New("invalid key")
	ErrUploadNotFound = errors.New("multipart upload not found")
	ErrInvalidPart    = errors.New("invalid part")
)

// IBlobBackend is the object store used for transfers. Every file is written with a
// multipart upload: created once, filled part by part, then completed or aborted.
type IBlobBackend interface {
	// CreateMultipartUpload opens a multipart upload for key and returns its upload id
	CreateMultipartUpload(ctx context.Context, params *CreateMultipartUploadParams) (string, error)

	// UploadPart stores one part. Uploading a part number again overwrites it.
	UploadPart(ctx context.Context, params *UploadPartParams) (*UploadPartResponse, error)

	// CompleteMultipartUpload assembles the parts, which must be sorted by part number
	CompleteMultipartUpload(ctx context.Context, params *CompleteMultipartUploadParams) (*PutObjectResponse, error)

	// AbortMultipartUpload discards an unfinished upload and its parts
	AbortMultipartUpload(ctx context.Context, key string, uploadID string) error

	// GetObjectPresigned returns a time limited download URL. filename is used for the
	// content disposition when not empty.
	GetObjectPresigned(ctx context.Context, key string, filename string) (string, error)

	// DeleteObject removes a stored object
	DeleteObject(ctx context.Context, key string) (bool, error)
}

// ===================================================================================================

type CreateMultipartUploadParams struct {
	Key         string
	ContentType string
}

type UploadPartParams struct {
	Key        string
	UploadID   string
	PartNumber int
	Size       int64
	Body       io.Reader
}

type UploadPartResponse struct {
	PartNumber int
	ETag       string
}

// ===================================================================================================

type CompletedPart struct {
	PartNumber int    `json:"partNumber"`
	ETag       string `json:"etag"`
}

type CompleteMultipartUploadParams struct {
	Key      string
	UploadID string
	Parts    []*CompletedPart
}

type PutObjectResponse struct {
	Key          string
	Version      string
	ETag         string
	Size         int64
	LastModified time.Time
}
