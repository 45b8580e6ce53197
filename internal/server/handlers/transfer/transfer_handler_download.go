package transfer

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/openmined/syftdrop/internal/server/handlers/api"
	"github.com/openmined/syftdrop/internal/server/transfer"
)

// DownloadList lists the downloadable files of a transfer
func (h *TransferHandler) DownloadList(ctx *gin.Context) {
	info, err := h.svc.Get(ctx.Request.Context(), ctx.Param("transferId"))
	if err != nil {
		abortWithTransferError(ctx, err, api.CodeInternalError)
		return
	}

	if info.Status == transfer.TransferExpired {
		abortWithTransferError(ctx, transfer.ErrTransferExpired, api.CodeInternalError)
		return
	}

	out := toTransferInfo(info)
	files := out.Files[:0]
	for _, f := range out.Files {
		if f.DownloadURL != "" {
			files = append(files, f)
		}
	}
	out.Files = files

	ctx.PureJSON(http.StatusOK, out)
}

// Download redirects to a presigned url of a completed file
func (h *TransferHandler) Download(ctx *gin.Context) {
	u, err := h.svc.DownloadURL(ctx.Request.Context(), ctx.Param("transferId"), ctx.Param("fileId"))
	if err != nil {
		abortWithTransferError(ctx, err, api.CodeBlobGetFailed)
		return
	}

	ctx.Redirect(http.StatusTemporaryRedirect, u)
}
