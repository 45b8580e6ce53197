package transfer

import (
	"cmp"
	"slices"
)

// UploadPart is a part acknowledged by the server
type UploadPart struct {
	PartNumber int    `json:"partNumber"`
	ETag       string `json:"etag"`
}

// SortParts orders parts ascending by part number
func SortParts(parts []UploadPart) {
	slices.SortFunc(parts, func(a, b UploadPart) int {
		return cmp.Compare(a.PartNumber, b.PartNumber)
	})
}
