package utils

import "testing"

func TestDetectContentType(t *testing.T) {
	tests := map[string]string{
		"tr-1/notes.md":   "text/plain; charset=utf-8",
		"tr-1/data.CSV":   "text/plain; charset=utf-8",
		"tr-1/page.html":  "text/html; charset=utf-8",
		"tr-1/blob":       "application/octet-stream",
		"tr-1/photo.jpeg": "image/jpeg",
	}
	for key, want := range tests {
		if got := DetectContentType(key); got != want {
			t.Errorf("DetectContentType(%q) = %q, want %q", key, got, want)
		}
	}
}
