package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

type FileHandler struct {
	mgr TransferManager
}

func NewFileHandler(mgr TransferManager) *FileHandler {
	return &FileHandler{mgr: mgr}
}

func (h *FileHandler) Get(c *gin.Context) {
	id, ok := fileID(c)
	if !ok {
		return
	}

	view, err := h.mgr.File(id)
	if err != nil {
		abortWithTransferError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *FileHandler) Pause(c *gin.Context) {
	id, ok := fileID(c)
	if !ok {
		return
	}

	if err := h.mgr.Pause(id); err != nil {
		abortWithTransferError(c, err)
		return
	}
	h.respond(c, http.StatusOK, id)
}

// Resume validates the session in the background; poll the file or watch events for the outcome
func (h *FileHandler) Resume(c *gin.Context) {
	id, ok := fileID(c)
	if !ok {
		return
	}

	if err := h.mgr.Resume(id); err != nil {
		abortWithTransferError(c, err)
		return
	}
	h.respond(c, http.StatusAccepted, id)
}

// Discard forgets a file and its snapshot
func (h *FileHandler) Discard(c *gin.Context) {
	id, ok := fileID(c)
	if !ok {
		return
	}

	if err := h.mgr.Discard(id); err != nil {
		abortWithTransferError(c, err)
		return
	}
	c.JSON(http.StatusOK, ControlPlaneResponse{Code: CodeOk})
}

// Restart uploads the file again as a new transfer
func (h *FileHandler) Restart(c *gin.Context) {
	id, ok := fileID(c)
	if !ok {
		return
	}

	view, err := h.mgr.Restart(c.Request.Context(), id)
	if err != nil {
		abortWithTransferError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, view)
}

// Reattach gives a restored file its content back from a local path
func (h *FileHandler) Reattach(c *gin.Context) {
	id, ok := fileID(c)
	if !ok {
		return
	}

	var req ReattachRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, err)
		return
	}

	view, err := h.mgr.Reattach(id, req.Path)
	if err != nil {
		abortWithTransferError(c, err)
		return
	}
	c.JSON(http.StatusOK, FileActionResponse{Code: CodeOk, File: view})
}

func (h *FileHandler) respond(c *gin.Context, status int, id string) {
	view, err := h.mgr.File(id)
	if err != nil {
		abortWithTransferError(c, err)
		return
	}
	c.JSON(status, FileActionResponse{Code: CodeOk, File: view})
}

func fileID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if id == "" {
		AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, errors.New("file id is required"))
		return "", false
	}
	return id, true
}
