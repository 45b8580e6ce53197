package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidURL(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"https://drop.syftbox.net", true},
		{"http://localhost:8080", true},
		{"http://127.0.0.1:9000/bucket", true},
		{"ftp://example.com", false},
		{"localhost:8080", false},
		{"not a url", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidURL(tt.in))
		})
	}
}

func TestJoinURL(t *testing.T) {
	assert.Equal(t, "https://x.io/d/abc", JoinURL("https://x.io/", "/d/", "abc"))
	assert.Equal(t, "https://x.io/d/a%20b", JoinURL("https://x.io", "d", "a b"))
	assert.Equal(t, "https://x.io", JoinURL("https://x.io/"))
}
