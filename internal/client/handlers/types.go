package handlers

import (
	"context"
	"errors"
	"io/fs"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/openmined/syftdrop/internal/client/sources"
	"github.com/openmined/syftdrop/internal/dropsdk"
	"github.com/openmined/syftdrop/internal/transfer"
)

const (
	CodeOk                    string = "OK"
	ErrCodeBadRequest         string = "ERR_BAD_REQUEST"
	ErrCodeUnknownError       string = "ERR_UNKNOWN_ERROR"
	ErrCodeTransferNotFound   string = "ERR_TRANSFER_NOT_FOUND"
	ErrCodeFileNotFound       string = "ERR_FILE_NOT_FOUND"
	ErrCodeInvalidState       string = "ERR_INVALID_STATE"
	ErrCodeContentUnavailable string = "ERR_CONTENT_UNAVAILABLE"
	ErrCodeContentMismatch    string = "ERR_CONTENT_MISMATCH"
	ErrCodeServerError        string = "ERR_SERVER_ERROR"
)

// TransferManager is what the control plane drives
type TransferManager interface {
	Transfers() []transfer.TransferView
	Transfer(id string) (transfer.TransferView, error)
	Files() []transfer.FileView
	File(id string) (transfer.FileView, error)
	Send(ctx context.Context, paths []string, opts transfer.SubmitOptions) (transfer.TransferView, error)
	Cancel(ctx context.Context, transferID string) error
	PauseTransfer(transferID string) error
	ResumeTransfer(transferID string) error
	Pause(fileID string) error
	Resume(fileID string) error
	Discard(fileID string) error
	Restart(ctx context.Context, fileID string) (transfer.TransferView, error)
	Reattach(fileID, path string) (transfer.FileView, error)
	Subscribe() (<-chan transfer.FileView, func())
}

type ControlPlaneResponse struct {
	Code string `json:"code"`
}

type ControlPlaneError struct {
	ErrorCode string `json:"code"`
	Error     string `json:"error"`
}

func AbortWithError(c *gin.Context, status int, code string, err error) {
	c.Abort()
	c.Error(err)
	c.PureJSON(status, ControlPlaneError{
		ErrorCode: code,
		Error:     err.Error(),
	})
}

// abortWithTransferError maps orchestrator errors to control plane responses
func abortWithTransferError(c *gin.Context, err error) {
	var apiErr *dropsdk.APIError

	switch {
	case errors.Is(err, transfer.ErrTransferNotFound):
		AbortWithError(c, http.StatusNotFound, ErrCodeTransferNotFound, err)
	case errors.Is(err, transfer.ErrFileNotFound):
		AbortWithError(c, http.StatusNotFound, ErrCodeFileNotFound, err)
	case errors.Is(err, transfer.ErrInvalidTransition), errors.Is(err, transfer.ErrUploadActive):
		AbortWithError(c, http.StatusConflict, ErrCodeInvalidState, err)
	case errors.Is(err, transfer.ErrContentUnavailable):
		AbortWithError(c, http.StatusUnprocessableEntity, ErrCodeContentUnavailable, err)
	case errors.Is(err, transfer.ErrContentMismatch):
		AbortWithError(c, http.StatusUnprocessableEntity, ErrCodeContentMismatch, err)
	case errors.Is(err, transfer.ErrNoFiles),
		errors.Is(err, transfer.ErrEmptyFile),
		errors.Is(err, transfer.ErrFileTooLarge),
		errors.Is(err, sources.ErrNoMatches),
		errors.Is(err, sources.ErrDuplicateFilename),
		errors.Is(err, fs.ErrNotExist):
		AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, err)
	case errors.As(err, &apiErr):
		AbortWithError(c, http.StatusBadGateway, ErrCodeServerError, err)
	default:
		AbortWithError(c, http.StatusInternalServerError, ErrCodeUnknownError, err)
	}
}
