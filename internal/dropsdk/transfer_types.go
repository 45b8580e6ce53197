package dropsdk

import (
	"io"
	"time"
)

// FileSpec describes one file announced to createTransfer
type FileSpec struct {
	Filename    string `json:"filename"`
	Filesize    int64  `json:"filesize"`
	ContentType string `json:"contentType,omitempty"`
}

// CreateTransferRequest represents the parameters for creating a transfer
type CreateTransferRequest struct {
	Files     []*FileSpec `json:"files"`
	Recipient string      `json:"recipient,omitempty"`
	Message   string      `json:"message,omitempty"`
}

// FileSession is the multipart session the server opened for one file
type FileSession struct {
	FileID   string `json:"fileId"`
	Filename string `json:"filename"`
	UploadID string `json:"uploadId"`
	Key      string `json:"key"`
}

// CreateTransferResponse represents the response from createTransfer
type CreateTransferResponse struct {
	TransferID  string         `json:"transferId"`
	ExpiresAt   time.Time      `json:"expiresAt"`
	UploadToken string         `json:"uploadToken"`
	DownloadURL string         `json:"downloadUrl"`
	Files       []*FileSession `json:"files"`
}

// ===================================================================================================

// UploadPartParams represents the parameters for uploading one part
type UploadPartParams struct {
	Token      string
	Key        string
	UploadID   string
	PartNumber int
	Body       io.Reader
	Size       int64
	Callback   ProgressCallback
}

func (p *UploadPartParams) Validate() error {
	if p.Token == "" {
		return ErrNoUploadToken
	}
	if p.Key == "" || p.UploadID == "" {
		return ErrInvalidSession
	}
	if p.PartNumber < 1 || p.Body == nil || p.Size <= 0 {
		return ErrInvalidPart
	}
	return nil
}

// UploadPartResponse represents the response from uploadPart
type UploadPartResponse struct {
	PartNumber int    `json:"partNumber"`
	ETag       string `json:"etag"`
}

// ===================================================================================================

// CompletedPart is one uploaded part handed to completeTransfer
type CompletedPart struct {
	PartNumber int    `json:"partNumber"`
	ETag       string `json:"etag"`
}

// CompleteTransferRequest represents the parameters for completing one file of a transfer.
// Parts must be sorted ascending by part number.
type CompleteTransferRequest struct {
	Token      string           `json:"-"`
	TransferID string           `json:"transferId"`
	Key        string           `json:"key"`
	UploadID   string           `json:"uploadId"`
	Parts      []*CompletedPart `json:"parts"`
}

// ObjectInfo describes the stored object
type ObjectInfo struct {
	Key          string `json:"key"`
	ETag         string `json:"etag"`
	Size         int64  `json:"size"`
	LastModified string `json:"lastModified"`
}

// CompleteTransferResponse represents the response from completeTransfer
type CompleteTransferResponse struct {
	Success bool        `json:"success"`
	Object  *ObjectInfo `json:"object"`
}

// ===================================================================================================

// ValidateTransferResponse represents the response from validateTransfer
type ValidateTransferResponse struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// AbortTransferRequest represents the parameters for aborting a transfer
type AbortTransferRequest struct {
	Token      string `json:"-"`
	TransferID string `json:"transferId"`
}

// AbortTransferResponse represents the response from abortTransfer
type AbortTransferResponse struct {
	TransferID string   `json:"transferId"`
	Aborted    []string `json:"aborted"`
}

// ===================================================================================================

// TransferInfo represents the server view of a transfer
type TransferInfo struct {
	TransferID  string              `json:"transferId"`
	Status      string              `json:"status"`
	CreatedAt   time.Time           `json:"createdAt"`
	ExpiresAt   time.Time           `json:"expiresAt"`
	DownloadURL string              `json:"downloadUrl,omitempty"`
	Files       []*TransferFileInfo `json:"files"`
}

// TransferFileInfo represents the server view of one file in a transfer
type TransferFileInfo struct {
	FileID      string `json:"fileId"`
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	Status      string `json:"status"`
	DownloadURL string `json:"downloadUrl,omitempty"`
}
