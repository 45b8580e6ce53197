package dropsdk

import (
	"errors"
	"fmt"

	"github.com/imroc/req/v3"
)

var (
	// sdk common
	ErrNoServerURL      = errors.New("sdk: server url missing")
	ErrInvalidServerURL = errors.New("sdk: invalid server url")

	// transfers
	ErrNoUploadToken  = errors.New("sdk: upload token missing")
	ErrNoTransferID   = errors.New("sdk: transfer id missing")
	ErrInvalidPart    = errors.New("sdk: invalid part")
	ErrEmptyPartETag  = errors.New("sdk: server returned an empty etag")
	ErrInvalidSession = errors.New("sdk: invalid multipart session")
)

const (
	// Generic request/server errors
	CodeInvalidRequest = "E_INVALID_REQUEST" // bad or invalid request
	CodeRateLimited    = "E_RATE_LIMITED"    // rate limit exceeded
	CodeInternalError  = "E_INTERNAL_ERROR"  // internal server error
	CodeAccessDenied   = "E_ACCESS_DENIED"   // access denied
	CodeUnknownError   = "E_UNKNOWN_ERR"     // unknown error

	// Transfer errors
	CodeTransferNotFound     = "E_TRANSFER_NOT_FOUND"     // the transfer does not exist
	CodeTransferExpired      = "E_TRANSFER_EXPIRED"       // the transfer passed its expiry
	CodeTransferClosed       = "E_TRANSFER_CLOSED"        // the transfer is complete or cancelled
	CodeTransferTooLarge     = "E_TRANSFER_TOO_LARGE"     // a file exceeds the size limit
	CodeTransferCreateFailed = "E_TRANSFER_CREATE_FAILED" // multipart sessions could not be created
	CodeTransferFileNotFound = "E_TRANSFER_FILE_NOT_FOUND"

	// Blob errors
	CodeBlobPutFailed      = "E_BLOB_PUT_OPERATION_FAILED"      // a part could not be stored
	CodeBlobCompleteFailed = "E_BLOB_COMPLETE_OPERATION_FAILED" // the multipart upload could not be committed
	CodeBlobAbortFailed    = "E_BLOB_ABORT_OPERATION_FAILED"    // the multipart upload could not be aborted
)

type SDKError interface {
	error
	ErrorCode() string
	ErrorMessage() string
}

// BaseError provides common error functionality
type BaseError struct {
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *BaseError) ErrorCode() string    { return e.Code }
func (e *BaseError) ErrorMessage() string { return e.Message }

// APIError represents syftdrop API errors
type APIError struct {
	BaseError
	StatusCode int `json:"-"`
}

func NewAPIError(code, message string) *APIError {
	return &APIError{
		BaseError: BaseError{
			Code:    code,
			Message: message,
		},
	}
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: %s - %s", e.Code, e.Message)
}

var _ SDKError = (*APIError)(nil)

// HasErrorCode reports whether err wraps an APIError with the given code
func HasErrorCode(err error, code string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}

// handleAPIError is a helper function that handles the common error pattern
func handleAPIError(resp *req.Response, requestErr error, operation string) error {
	if requestErr != nil {
		return fmt.Errorf("http request error: %s %w", operation, requestErr)
	}

	// got a response, but api returned an error
	if resp.IsErrorState() {
		if err, ok := resp.ErrorResult().(*APIError); ok && err.Code != "" {
			err.StatusCode = resp.StatusCode
			return fmt.Errorf("%s %w", operation, err)
		}

		return fmt.Errorf("api error: %s status %d", operation, resp.StatusCode)
	}

	return nil
}
