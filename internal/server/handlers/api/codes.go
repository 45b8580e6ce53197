package api

const (
	// Generic request/server errors
	CodeInvalidRequest = "E_INVALID_REQUEST" // bad or invalid request
	CodeRateLimited    = "E_RATE_LIMITED"    // rate limit exceeded
	CodeInternalError  = "E_INTERNAL_ERROR"  // internal server error
	CodeAccessDenied   = "E_ACCESS_DENIED"   // access denied
	CodeNotFound       = "E_NOT_FOUND"       // no such route

	// Auth errors
	CodeAuthInvalidCredentials = "E_AUTH_INVALID_CREDENTIALS" // the upload token is invalid, expired, or malformed.

	// Transfer errors
	CodeTransferNotFound     = "E_TRANSFER_NOT_FOUND"      // the transfer does not exist
	CodeTransferExpired      = "E_TRANSFER_EXPIRED"        // the transfer passed its expiry
	CodeTransferClosed       = "E_TRANSFER_CLOSED"         // the transfer is complete or cancelled, or the file is done
	CodeTransferTooLarge     = "E_TRANSFER_TOO_LARGE"      // a file or part exceeds the size limit
	CodeTransferCreateFailed = "E_TRANSFER_CREATE_FAILED"  // multipart sessions could not be created
	CodeTransferFileNotFound = "E_TRANSFER_FILE_NOT_FOUND" // the file or multipart session is not part of the transfer

	// Blob errors
	CodeBlobNotFound       = "E_BLOB_NOT_FOUND"                 // the specified blob could not be found.
	CodeBlobPutFailed      = "E_BLOB_PUT_OPERATION_FAILED"      // a part could not be stored
	CodeBlobGetFailed      = "E_BLOB_GET_OPERATION_FAILED"      // a download url could not be created
	CodeBlobCompleteFailed = "E_BLOB_COMPLETE_OPERATION_FAILED" // the multipart upload could not be committed
	CodeBlobAbortFailed    = "E_BLOB_ABORT_OPERATION_FAILED"    // the multipart upload could not be aborted
)
