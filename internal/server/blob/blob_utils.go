package blob

import (
	"path"
	"regexp"
	"unicode/utf8"
)

// S3 limits
const (
	MinPartNumber = 1
	MaxPartNumber = 10000
)

// Match: starts with one or more / OR contains \ OR contains ..
var regexForbiddenPatterns = regexp.MustCompile(`^/+|\\+|\.\.`)

// Validate a key for S3 and local file system compatibility
func ValidateKey(key string) bool {
	// S3 keys must be between 1 and 1024 bytes long
	if len(key) == 0 || len(key) > 1024 {
		return false
	} else if key == "." || key == ".." {
		return false
	}

	if regexForbiddenPatterns.MatchString(key) {
		return false
	}

	return utf8.ValidString(key)
}

// TransferKey is the object key of one file of a transfer
func TransferKey(transferID, fileID, filename string) string {
	return path.Join("transfers", transferID, fileID, filename)
}
