package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/openmined/syftdrop/internal/transfer"
)

type TransferHandler struct {
	mgr TransferManager
}

func NewTransferHandler(mgr TransferManager) *TransferHandler {
	return &TransferHandler{mgr: mgr}
}

// List returns every transfer known to the daemon, restored ones included
func (h *TransferHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, TransferListResponse{Transfers: h.mgr.Transfers()})
}

// Create collects the requested paths into a transfer and starts uploading it in the background
func (h *TransferHandler) Create(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, err)
		return
	}

	view, err := h.mgr.Send(c.Request.Context(), req.Paths, transfer.SubmitOptions{
		Recipient: req.Recipient,
		Message:   req.Message,
	})
	if err != nil {
		abortWithTransferError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, view)
}

func (h *TransferHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, errors.New("transfer id is required"))
		return
	}

	view, err := h.mgr.Transfer(id)
	if err != nil {
		abortWithTransferError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// Cancel aborts the transfer locally and on the server
func (h *TransferHandler) Cancel(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, errors.New("transfer id is required"))
		return
	}

	if err := h.mgr.Cancel(c.Request.Context(), id); err != nil {
		abortWithTransferError(c, err)
		return
	}

	c.JSON(http.StatusOK, ControlPlaneResponse{Code: CodeOk})
}

func (h *TransferHandler) Pause(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, errors.New("transfer id is required"))
		return
	}

	if err := h.mgr.PauseTransfer(id); err != nil {
		abortWithTransferError(c, err)
		return
	}
	h.respond(c, http.StatusOK, id)
}

// Resume continues every paused or failed file of the transfer in the background
func (h *TransferHandler) Resume(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, errors.New("transfer id is required"))
		return
	}

	if err := h.mgr.ResumeTransfer(id); err != nil {
		abortWithTransferError(c, err)
		return
	}
	h.respond(c, http.StatusAccepted, id)
}

func (h *TransferHandler) respond(c *gin.Context, status int, id string) {
	view, err := h.mgr.Transfer(id)
	if err != nil {
		abortWithTransferError(c, err)
		return
	}
	c.JSON(status, view)
}
