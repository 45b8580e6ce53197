package transfer

import (
	"time"

	"github.com/openmined/syftdrop/internal/server/blob"
)

type FileSpec struct {
	Filename    string `json:"filename" binding:"required"`
	Filesize    int64  `json:"filesize" binding:"required"`
	ContentType string `json:"contentType"`
}

type CreateTransferRequest struct {
	Files     []*FileSpec `json:"files" binding:"required,min=1,dive"`
	Recipient string      `json:"recipient"`
	Message   string      `json:"message" binding:"max=2000"`
}

type FileSession struct {
	FileID   string `json:"fileId"`
	Filename string `json:"filename"`
	UploadID string `json:"uploadId"`
	Key      string `json:"key"`
}

type CreateTransferResponse struct {
	TransferID  string         `json:"transferId"`
	ExpiresAt   time.Time      `json:"expiresAt"`
	UploadToken string         `json:"uploadToken"`
	DownloadURL string         `json:"downloadUrl"`
	Files       []*FileSession `json:"files"`
}

type UploadPartRequest struct {
	Key        string `form:"key" binding:"required"`
	UploadID   string `form:"uploadId" binding:"required"`
	PartNumber int    `form:"partNumber" binding:"required"`
}

type UploadPartResponse struct {
	PartNumber int    `json:"partNumber"`
	ETag       string `json:"etag"`
}

type CompleteTransferRequest struct {
	TransferID string                `json:"transferId" binding:"required"`
	Key        string                `json:"key" binding:"required"`
	UploadID   string                `json:"uploadId" binding:"required"`
	Parts      []*blob.CompletedPart `json:"parts" binding:"required"`
}

type ObjectInfo struct {
	Key          string `json:"key"`
	ETag         string `json:"etag"`
	Size         int64  `json:"size"`
	LastModified string `json:"lastModified"`
}

type CompleteTransferResponse struct {
	Success bool        `json:"success"`
	Object  *ObjectInfo `json:"object"`
}

type ValidateTransferResponse struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

type AbortTransferRequest struct {
	TransferID string `json:"transferId" binding:"required"`
}

type AbortTransferResponse struct {
	TransferID string   `json:"transferId"`
	Aborted    []string `json:"aborted"`
}

type TransferFileInfo struct {
	FileID      string `json:"fileId"`
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	Status      string `json:"status"`
	DownloadURL string `json:"downloadUrl,omitempty"`
}

type TransferInfo struct {
	TransferID  string              `json:"transferId"`
	Status      string              `json:"status"`
	CreatedAt   time.Time           `json:"createdAt"`
	ExpiresAt   time.Time           `json:"expiresAt"`
	DownloadURL string              `json:"downloadUrl,omitempty"`
	Files       []*TransferFileInfo `json:"files"`
}
