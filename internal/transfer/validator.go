package transfer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openmined/syftdrop/internal/dropsdk"
)

// TransferValidator asks the server whether a transfer can still accept parts
type TransferValidator interface {
	ValidateTransfer(ctx context.Context, transferID string) (*dropsdk.ValidateTransferResponse, error)
}

type Validation struct {
	Valid  bool
	Reason string
}

// SessionValidator confirms a transfer is neither expired nor completed before its session is reused
type SessionValidator struct {
	api TransferValidator
}

func NewSessionValidator(api TransferValidator) *SessionValidator {
	return &SessionValidator{api: api}
}

func (v *SessionValidator) Validate(ctx context.Context, transferID string) (*Validation, error) {
	if transferID == "" {
		return &Validation{Valid: false, Reason: "no transfer"}, nil
	}

	resp, err := v.api.ValidateTransfer(ctx, transferID)
	if err != nil {
		// a transfer the server no longer knows about is as good as expired
		if dropsdk.HasErrorCode(err, dropsdk.CodeTransferNotFound) {
			return &Validation{Valid: false, Reason: "transfer not found"}, nil
		}
		return nil, fmt.Errorf("validate transfer %s: %w", transferID, err)
	}

	return &Validation{Valid: resp.Valid, Reason: resp.Reason}, nil
}

// EnsureResumable validates the session of state. When the server rejects it, the state is
// invalidated with a restart message and ErrSessionInvalid is returned. A failed validation
// request leaves the state untouched.
func (v *SessionValidator) EnsureResumable(ctx context.Context, state *FileUploadState) error {
	session := state.Session()
	if session.IsZero() {
		return fmt.Errorf("%w: %s has no upload session, restart it", ErrSessionInvalid, state.Name())
	}

	result, err := v.Validate(ctx, session.TransferID)
	if err != nil {
		return err
	}
	if result.Valid {
		return nil
	}

	reason := result.Reason
	if reason == "" {
		reason = "session rejected"
	}
	slog.Warn("upload session invalid", "file", state.Name(), "transfer", session.TransferID, "reason", reason)

	state.Invalidate(RestartMessage(reason))
	return fmt.Errorf("%w: %s", ErrSessionInvalid, reason)
}

// RestartMessage is the user facing explanation for a discarded session
func RestartMessage(reason string) string {
	return fmt.Sprintf("the upload session is no longer usable (%s); restart the upload", reason)
}
