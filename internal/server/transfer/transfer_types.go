package transfer

import (
	"errors"
	"time"

	"github.com/openmined/syftdrop/internal/server/blob"
)

var (
	ErrTransferNotFound  = errors.New("transfer not found")
	ErrTransferExpired   = errors.New("transfer expired")
	ErrTransferClosed    = errors.New("transfer is complete or cancelled")
	ErrFileNotFound      = errors.New("file not found in transfer")
	ErrFileClosed        = errors.New("file is no longer accepting parts")
	ErrNoFiles           = errors.New("at least one file is required")
	ErrTooManyFiles      = errors.New("too many files")
	ErrFileTooLarge      = errors.New("file exceeds the size limit")
	ErrEmptyFile         = errors.New("file is empty")
	ErrInvalidFilename   = errors.New("invalid filename")
	ErrDuplicateFilename = errors.New("duplicate filename")
	ErrInvalidRecipient  = errors.New("invalid recipient email")
	ErrNoParts           = errors.New("no parts to complete")
	ErrPartsNotSorted    = errors.New("parts must be sorted ascending by part number")
	ErrPartTooLarge      = errors.New("part is larger than the file")
)

type TransferStatus string

const (
	TransferOpen      TransferStatus = "open"
	TransferComplete  TransferStatus = "complete"
	TransferExpired   TransferStatus = "expired"
	TransferCancelled TransferStatus = "cancelled"
)

type FileStatus string

const (
	FileUploading FileStatus = "uploading"
	FileCompleted FileStatus = "completed"
	FileAborted   FileStatus = "aborted"
)

type Transfer struct {
	ID          string
	Status      TransferStatus
	Recipient   string
	Message     string
	DeviceID    string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	CompletedAt time.Time
}

// Usable reports why parts can no longer be accepted, or nil
func (t *Transfer) Usable(now time.Time) error {
	switch {
	case t.Status == TransferExpired:
		return ErrTransferExpired
	case t.Status != TransferOpen:
		return ErrTransferClosed
	case !now.Before(t.ExpiresAt):
		return ErrTransferExpired
	}
	return nil
}

type File struct {
	ID          string
	TransferID  string
	Filename    string
	Size        int64
	ContentType string
	Key         string
	UploadID    string
	Status      FileStatus
	ETag        string
	CompletedAt time.Time
}

// ===================================================================================================

type FileSpec struct {
	Filename    string
	Size        int64
	ContentType string
}

type CreateParams struct {
	Files     []*FileSpec
	Recipient string
	Message   string
	DeviceID  string
}

type CreateResult struct {
	Transfer    *Transfer
	Files       []*File
	UploadToken string
	DownloadURL string
}

type CompleteParams struct {
	Key      string
	UploadID string
	Parts    []*blob.CompletedPart
}

type Validation struct {
	Valid  bool
	Reason string
}

type FileInfo struct {
	*File
	DownloadURL string
}

type TransferInfo struct {
	*Transfer
	DownloadURL string
	Files       []*FileInfo
}
