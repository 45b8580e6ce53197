package handlers

import "github.com/openmined/syftdrop/internal/transfer"

type SendRequest struct {
	Paths     []string `json:"paths" binding:"required,min=1"`
	Recipient string   `json:"recipient" binding:"omitempty,email"`
	Message   string   `json:"message" binding:"max=2000"`
}

type TransferListResponse struct {
	Transfers []transfer.TransferView `json:"transfers"`
}

type ReattachRequest struct {
	Path string `json:"path" binding:"required"`
}

type FileActionResponse struct {
	Code string            `json:"code"`
	File transfer.FileView `json:"file"`
}
