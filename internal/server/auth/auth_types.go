package auth

import "errors"

var (
	ErrInvalidToken        = errors.New("invalid token")
	ErrInvalidUploadToken  = errors.New("invalid upload token")
	ErrTransferMismatch    = errors.New("upload token is for another transfer")
	ErrMissingTokenSecret  = errors.New("auth `upload_token_secret` is required")
	ErrTokenSecretTooShort = errors.New("auth `upload_token_secret` must be at least 32 characters")
)
