package transfer

import (
	"context"
	"errors"
)

var (
	// control flow, not failures
	ErrPaused    = errors.New("transfer: paused")
	ErrCancelled = errors.New("transfer: cancelled")

	// resume
	ErrSessionInvalid     = errors.New("transfer: upload session is no longer valid")
	ErrContentUnavailable = errors.New("transfer: file content is not available")
	ErrContentMismatch    = errors.New("transfer: file does not match the original name and size")
	ErrUploadActive       = errors.New("transfer: upload is active")

	// state machine
	ErrInvalidTransition = errors.New("transfer: invalid state transition")
	ErrSessionAssigned   = errors.New("transfer: session already assigned")
	ErrNoSession         = errors.New("transfer: no session assigned")
	ErrPartsMissing      = errors.New("transfer: not all parts are uploaded")

	// lookup and input
	ErrFileNotFound     = errors.New("transfer: file not found")
	ErrTransferNotFound = errors.New("transfer: transfer not found")
	ErrNoFiles          = errors.New("transfer: no files")
	ErrEmptyFile        = errors.New("transfer: file is empty")
	ErrFileTooLarge     = errors.New("transfer: file is too large")

	// retries
	ErrRetriesExhausted = errors.New("transfer: retries exhausted")
)

// IsInterrupted reports whether err is a user initiated pause or cancel
func IsInterrupted(err error) bool {
	return errors.Is(err, ErrPaused) || errors.Is(err, ErrCancelled)
}

// interruption returns the pause/cancel cause of a done context, or nil
func interruption(ctx context.Context) error {
	if ctx.Err() == nil {
		return nil
	}
	cause := context.Cause(ctx)
	if IsInterrupted(cause) {
		return cause
	}
	return nil
}
