package utils

import (
	"mime"
	"path/filepath"
	"strings"
)

// DetectContentType guesses a content type from the extension of an object key
func DetectContentType(key string) string {
	if isTextLike(key) {
		return "text/plain; charset=utf-8"
	} else if mimeType := mime.TypeByExtension(filepath.Ext(key)); mimeType != "" {
		return mimeType
	}
	return "application/octet-stream"
}

func isTextLike(key string) bool {
	switch strings.ToLower(filepath.Ext(key)) {
	case ".yaml", ".yml", ".toml", ".md", ".csv", ".log":
		return true
	}
	return false
}
