package transfer

import (
	"context"
	"slices"
	"sync"
)

type registration struct {
	cancel context.CancelCauseFunc
}

// CancelRegistry tracks the cancel handle of every active file upload.
// A file id has at most one active upload at a time.
type CancelRegistry struct {
	entries map[string]*registration
	mu      sync.Mutex
}

func NewCancelRegistry() *CancelRegistry {
	return &CancelRegistry{entries: make(map[string]*registration)}
}

// Register derives a cancellable context for fileID. The returned release func removes the
// entry and must be called when the upload returns.
func (r *CancelRegistry) Register(parent context.Context, fileID string) (context.Context, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[fileID]; ok {
		return nil, nil, ErrUploadActive
	}

	ctx, cancel := context.WithCancelCause(parent)
	entry := &registration{cancel: cancel}
	r.entries[fileID] = entry

	release := func() {
		r.mu.Lock()
		if r.entries[fileID] == entry {
			delete(r.entries, fileID)
		}
		r.mu.Unlock()
		cancel(context.Canceled)
	}
	return ctx, release, nil
}

// Abort cancels the active upload of fileID with cause. It reports whether one was active.
func (r *CancelRegistry) Abort(fileID string, cause error) bool {
	r.mu.Lock()
	entry, ok := r.entries[fileID]
	r.mu.Unlock()

	if !ok {
		return false
	}
	entry.cancel(cause)
	return true
}

// AbortAll cancels every active upload with cause
func (r *CancelRegistry) AbortAll(cause error) {
	r.mu.Lock()
	entries := make([]*registration, 0, len(r.entries))
	for _, entry := range r.entries {
		entries = append(entries, entry)
	}
	r.mu.Unlock()

	for _, entry := range entries {
		entry.cancel(cause)
	}
}

func (r *CancelRegistry) Active(fileID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[fileID]
	return ok
}

// IDs returns the file ids with an active upload, sorted
func (r *CancelRegistry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (r *CancelRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
