package client

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/openmined/syftdrop/internal/dropsdk"
)

// fakeAPI is an in-memory transfer server. Uploads wait on block while it is open.
type fakeAPI struct {
	block   chan struct{}
	invalid map[string]bool
	aborted []string
	created int
	mu      sync.Mutex
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{invalid: make(map[string]bool)}
}

func (f *fakeAPI) hold() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.block = make(chan struct{})
}

func (f *fakeAPI) release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.block != nil {
		close(f.block)
		f.block = nil
	}
}

func (f *fakeAPI) abortedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.aborted...)
}

func (f *fakeAPI) CreateTransfer(ctx context.Context, params *dropsdk.CreateTransferRequest) (*dropsdk.CreateTransferResponse, error) {
	f.mu.Lock()
	f.created++
	id := fmt.Sprintf("t%d", f.created)
	f.mu.Unlock()

	resp := &dropsdk.CreateTransferResponse{
		TransferID:  id,
		ExpiresAt:   time.Now().Add(time.Hour),
		UploadToken: "token-" + id,
		DownloadURL: "http://drop.test/d/" + id,
	}
	for i, spec := range params.Files {
		fileID := fmt.Sprintf("%s-f%d", id, i)
		resp.Files = append(resp.Files, &dropsdk.FileSession{
			FileID:   fileID,
			Filename: spec.Filename,
			UploadID: "upload-" + fileID,
			Key:      "transfers/" + id + "/" + fileID + "/" + spec.Filename,
		})
	}
	return resp, nil
}

func (f *fakeAPI) UploadPart(ctx context.Context, params *dropsdk.UploadPartParams) (*dropsdk.UploadPartResponse, error) {
	f.mu.Lock()
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, context.Cause(ctx)
		}
	}

	if _, err := io.Copy(io.Discard, params.Body); err != nil {
		return nil, err
	}
	return &dropsdk.UploadPartResponse{
		PartNumber: params.PartNumber,
		ETag:       fmt.Sprintf("etag-%s-%d", params.UploadID, params.PartNumber),
	}, nil
}

func (f *fakeAPI) CompleteTransfer(ctx context.Context, params *dropsdk.CompleteTransferRequest) (*dropsdk.CompleteTransferResponse, error) {
	return &dropsdk.CompleteTransferResponse{
		Success: true,
		Object:  &dropsdk.ObjectInfo{Key: params.Key, ETag: "final"},
	}, nil
}

func (f *fakeAPI) ValidateTransfer(ctx context.Context, transferID string) (*dropsdk.ValidateTransferResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.invalid[transferID] {
		return &dropsdk.ValidateTransferResponse{Valid: false, Reason: "transfer expired"}, nil
	}
	return &dropsdk.ValidateTransferResponse{Valid: true}, nil
}

func (f *fakeAPI) AbortTransfer(ctx context.Context, params *dropsdk.AbortTransferRequest) (*dropsdk.AbortTransferResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aborted = append(f.aborted, params.TransferID)
	return &dropsdk.AbortTransferResponse{TransferID: params.TransferID}, nil
}
