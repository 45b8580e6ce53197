package transfer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/openmined/syftdrop/internal/dropsdk"
)

const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = 500 * time.Millisecond
	DefaultMaxDelay   = 8 * time.Second
)

// RetryPolicy bounds the attempts made for one part
type RetryPolicy struct {
	MaxRetries int           `json:"max_retries" mapstructure:"max_retries"`
	BaseDelay  time.Duration `json:"base_delay" mapstructure:"base_delay"`
	MaxDelay   time.Duration `json:"max_delay" mapstructure:"max_delay"`
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
		MaxDelay:   DefaultMaxDelay,
	}
}

// Backoff returns the wait before retry n (1-based), doubling from BaseDelay up to MaxDelay.
// A MaxDelay of zero caps at DefaultMaxDelay.
func (p RetryPolicy) Backoff(n int) time.Duration {
	if n < 1 || p.BaseDelay <= 0 {
		return 0
	}
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}

	d := p.BaseDelay
	for i := 1; i < n && d < maxDelay; i++ {
		if d > math.MaxInt64/2 {
			return maxDelay
		}
		d *= 2
	}
	return min(d, maxDelay)
}

// PartTarget identifies the multipart session a part belongs to
type PartTarget struct {
	Token    string
	Key      string
	UploadID string
}

// PartSender is the single request primitive used by PartUploader
type PartSender interface {
	UploadPart(ctx context.Context, params *dropsdk.UploadPartParams) (*dropsdk.UploadPartResponse, error)
}

// PartUploader sends one part with a bounded retry loop
type PartUploader struct {
	sender PartSender
	retry  RetryPolicy
}

func NewPartUploader(sender PartSender, retry RetryPolicy) *PartUploader {
	if retry.MaxRetries < 0 {
		retry.MaxRetries = 0
	}
	return &PartUploader{sender: sender, retry: retry}
}

// Upload sends the byte range of part from content, making at most 1+MaxRetries attempts.
// A pause or cancel on ctx is returned as is and never retried. onProgress receives the bytes
// sent for the current attempt and may be nil.
func (u *PartUploader) Upload(ctx context.Context, target PartTarget, part PartRange, content io.ReaderAt, onProgress func(sent int64)) (UploadPart, error) {
	var lastErr error

	for attempt := 0; attempt <= u.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := u.retry.Backoff(attempt)
			slog.Debug("part retry", "part", part.PartNumber, "attempt", attempt, "wait", wait, "error", lastErr)
			if err := sleep(ctx, wait); err != nil {
				return UploadPart{}, err
			}
		}

		if err := interruption(ctx); err != nil {
			return UploadPart{}, err
		}

		resp, err := u.send(ctx, target, part, content, onProgress)
		if err == nil {
			return UploadPart{PartNumber: part.PartNumber, ETag: resp.ETag}, nil
		}

		if cause := interruption(ctx); cause != nil {
			return UploadPart{}, cause
		}
		if ctx.Err() != nil {
			return UploadPart{}, context.Cause(ctx)
		}
		lastErr = err
	}

	return UploadPart{}, fmt.Errorf("part %d: %w after %d attempts: %w", part.PartNumber, ErrRetriesExhausted, u.retry.MaxRetries+1, lastErr)
}

func (u *PartUploader) send(ctx context.Context, target PartTarget, part PartRange, content io.ReaderAt, onProgress func(sent int64)) (*dropsdk.UploadPartResponse, error) {
	var callback dropsdk.ProgressCallback
	if onProgress != nil {
		callback = func(sent, _ int64) { onProgress(sent) }
	}

	return u.sender.UploadPart(ctx, &dropsdk.UploadPartParams{
		Token:      target.Token,
		Key:        target.Key,
		UploadID:   target.UploadID,
		PartNumber: part.PartNumber,
		Body:       io.NewSectionReader(content, part.Start, part.Size()),
		Size:       part.Size(),
		Callback:   callback,
	})
}

// sleep waits for d or until ctx is done, returning the context cause in the latter case
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return context.Cause(ctx)
	case <-timer.C:
		return nil
	}
}
