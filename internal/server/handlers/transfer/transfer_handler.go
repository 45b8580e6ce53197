package transfer

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/openmined/syftdrop/internal/server/auth"
	"github.com/openmined/syftdrop/internal/server/blob"
	"github.com/openmined/syftdrop/internal/server/handlers/api"
	"github.com/openmined/syftdrop/internal/server/middlewares"
	"github.com/openmined/syftdrop/internal/server/transfer"
)

const headerDeviceID = "X-Syftdrop-Device-Id"

type TransferHandler struct {
	svc *transfer.TransferService
}

func New(svc *transfer.TransferService) *TransferHandler {
	return &TransferHandler{svc: svc}
}

// Create opens a transfer and one multipart session per file
func (h *TransferHandler) Create(ctx *gin.Context) {
	var req CreateTransferRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("failed to bind json: %w", err))
		return
	}

	params := &transfer.CreateParams{
		Files:     make([]*transfer.FileSpec, 0, len(req.Files)),
		Recipient: req.Recipient,
		Message:   req.Message,
		DeviceID:  ctx.GetHeader(headerDeviceID),
	}
	for _, f := range req.Files {
		params.Files = append(params.Files, &transfer.FileSpec{
			Filename:    f.Filename,
			Size:        f.Filesize,
			ContentType: f.ContentType,
		})
	}

	res, err := h.svc.Create(ctx.Request.Context(), params)
	if err != nil {
		abortWithTransferError(ctx, err, api.CodeTransferCreateFailed)
		return
	}

	files := make([]*FileSession, 0, len(res.Files))
	for _, f := range res.Files {
		files = append(files, &FileSession{
			FileID:   f.ID,
			Filename: f.Filename,
			UploadID: f.UploadID,
			Key:      f.Key,
		})
	}

	ctx.PureJSON(http.StatusCreated, &CreateTransferResponse{
		TransferID:  res.Transfer.ID,
		ExpiresAt:   res.Transfer.ExpiresAt,
		UploadToken: res.UploadToken,
		DownloadURL: res.DownloadURL,
		Files:       files,
	})
}

// UploadPart streams the request body into one part of a multipart session
func (h *TransferHandler) UploadPart(ctx *gin.Context) {
	var req UploadPartRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("failed to bind query: %w", err))
		return
	}

	if ctx.Request.ContentLength <= 0 {
		api.AbortWithError(ctx, http.StatusLengthRequired, api.CodeInvalidRequest, fmt.Errorf("content length is required"))
		return
	}

	resp, err := h.svc.UploadPart(ctx.Request.Context(), ctx.GetString(middlewares.TransferContextKey), &blob.UploadPartParams{
		Key:        req.Key,
		UploadID:   req.UploadID,
		PartNumber: req.PartNumber,
		Size:       ctx.Request.ContentLength,
		Body:       ctx.Request.Body,
	})
	if err != nil {
		abortWithTransferError(ctx, err, api.CodeBlobPutFailed)
		return
	}

	ctx.PureJSON(http.StatusOK, &UploadPartResponse{
		PartNumber: resp.PartNumber,
		ETag:       resp.ETag,
	})
}

// Complete commits the sorted parts of one file
func (h *TransferHandler) Complete(ctx *gin.Context) {
	var req CompleteTransferRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("failed to bind json: %w", err))
		return
	}

	if req.TransferID != ctx.GetString(middlewares.TransferContextKey) {
		api.AbortWithError(ctx, http.StatusForbidden, api.CodeAccessDenied, auth.ErrTransferMismatch)
		return
	}

	obj, err := h.svc.Complete(ctx.Request.Context(), req.TransferID, &transfer.CompleteParams{
		Key:      req.Key,
		UploadID: req.UploadID,
		Parts:    req.Parts,
	})
	if err != nil {
		abortWithTransferError(ctx, err, api.CodeBlobCompleteFailed)
		return
	}

	ctx.PureJSON(http.StatusOK, &CompleteTransferResponse{
		Success: true,
		Object: &ObjectInfo{
			Key:          obj.Key,
			ETag:         obj.ETag,
			Size:         obj.Size,
			LastModified: obj.LastModified.Format(time.RFC3339),
		},
	})
}

// Validate reports whether the transfer still accepts parts
func (h *TransferHandler) Validate(ctx *gin.Context) {
	v, err := h.svc.Validate(ctx.Request.Context(), ctx.Param("transferId"))
	if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
		return
	}

	ctx.PureJSON(http.StatusOK, &ValidateTransferResponse{
		Valid:  v.Valid,
		Reason: v.Reason,
	})
}

func (h *TransferHandler) Get(ctx *gin.Context) {
	info, err := h.svc.Get(ctx.Request.Context(), ctx.Param("transferId"))
	if err != nil {
		abortWithTransferError(ctx, err, api.CodeInternalError)
		return
	}

	ctx.PureJSON(http.StatusOK, toTransferInfo(info))
}

func (h *TransferHandler) Abort(ctx *gin.Context) {
	var req AbortTransferRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("failed to bind json: %w", err))
		return
	}

	if req.TransferID != ctx.GetString(middlewares.TransferContextKey) {
		api.AbortWithError(ctx, http.StatusForbidden, api.CodeAccessDenied, auth.ErrTransferMismatch)
		return
	}

	aborted, err := h.svc.Abort(ctx.Request.Context(), req.TransferID)
	if err != nil {
		abortWithTransferError(ctx, err, api.CodeBlobAbortFailed)
		return
	}

	ctx.PureJSON(http.StatusOK, &AbortTransferResponse{
		TransferID: req.TransferID,
		Aborted:    aborted,
	})
}

func toTransferInfo(info *transfer.TransferInfo) *TransferInfo {
	out := &TransferInfo{
		TransferID:  info.ID,
		Status:      string(info.Status),
		CreatedAt:   info.CreatedAt,
		ExpiresAt:   info.ExpiresAt,
		DownloadURL: info.DownloadURL,
		Files:       make([]*TransferFileInfo, 0, len(info.Files)),
	}
	for _, f := range info.Files {
		out.Files = append(out.Files, &TransferFileInfo{
			FileID:      f.ID,
			Filename:    f.Filename,
			Size:        f.Size,
			Status:      string(f.Status),
			DownloadURL: f.DownloadURL,
		})
	}
	return out
}

// abortWithTransferError maps service errors to status codes. Unknown errors use fallback.
func abortWithTransferError(ctx *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, transfer.ErrTransferNotFound):
		api.AbortWithError(ctx, http.StatusNotFound, api.CodeTransferNotFound, err)
	case errors.Is(err, transfer.ErrFileNotFound), errors.Is(err, blob.ErrUploadNotFound):
		api.AbortWithError(ctx, http.StatusNotFound, api.CodeTransferFileNotFound, err)
	case errors.Is(err, transfer.ErrTransferExpired):
		api.AbortWithError(ctx, http.StatusGone, api.CodeTransferExpired, err)
	case errors.Is(err, transfer.ErrTransferClosed), errors.Is(err, transfer.ErrFileClosed):
		api.AbortWithError(ctx, http.StatusConflict, api.CodeTransferClosed, err)
	case errors.Is(err, auth.ErrTransferMismatch):
		api.AbortWithError(ctx, http.StatusForbidden, api.CodeAccessDenied, err)
	case errors.Is(err, transfer.ErrFileTooLarge), errors.Is(err, transfer.ErrPartTooLarge):
		api.AbortWithError(ctx, http.StatusRequestEntityTooLarge, api.CodeTransferTooLarge, err)
	case errors.Is(err, transfer.ErrNoFiles),
		errors.Is(err, transfer.ErrTooManyFiles),
		errors.Is(err, transfer.ErrEmptyFile),
		errors.Is(err, transfer.ErrInvalidFilename),
		errors.Is(err, transfer.ErrDuplicateFilename),
		errors.Is(err, transfer.ErrInvalidRecipient),
		errors.Is(err, transfer.ErrNoParts),
		errors.Is(err, transfer.ErrPartsNotSorted),
		errors.Is(err, blob.ErrInvalidPart),
		errors.Is(err, blob.ErrInvalidKey):
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, err)
	default:
		api.AbortWithError(ctx, http.StatusInternalServerError, fallback, err)
	}
}
