package main

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/openmined/syftdrop/internal/client/config"
	"github.com/openmined/syftdrop/internal/client/workspace"
	"github.com/openmined/syftdrop/internal/dropsdk"
	"github.com/openmined/syftdrop/internal/transfer"
)

// uploadSession drives uploads from the foreground. It holds the workspace lock, so a running
// daemon and a foreground command never upload from the same data dir.
type uploadSession struct {
	ws   *workspace.Workspace
	sdk  *dropsdk.DropSDK
	orch *transfer.Orchestrator

	contents []io.Closer
	onUpdate func(transfer.FileView)
	mu       sync.Mutex
}

func openSession(cfg *config.Config) (*uploadSession, error) {
	ws, err := workspace.NewWorkspace(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	if err := ws.Setup(); err != nil {
		if errors.Is(err, workspace.ErrWorkspaceLocked) {
			return nil, fmt.Errorf("%w: is the daemon running? use its control plane instead", err)
		}
		return nil, err
	}

	store, err := transfer.NewFileSnapshotStore(ws.SnapshotsDir)
	if err != nil {
		ws.Unlock()
		return nil, err
	}

	sdk, err := dropsdk.New(&dropsdk.DropSDKConfig{BaseURL: cfg.ServerURL})
	if err != nil {
		ws.Unlock()
		return nil, fmt.Errorf("failed to create sdk: %w", err)
	}

	s := &uploadSession{ws: ws, sdk: sdk}

	opts := transfer.DefaultOptions()
	opts.ChunkSize = cfg.ChunkSize
	opts.Concurrency = cfg.Concurrency
	opts.Retry = cfg.Retry
	opts.Store = store
	opts.OnUpdate = s.update
	s.orch = transfer.NewOrchestrator(sdk.Transfers, opts)
	return s, nil
}

// OnUpdate sets the observer of file updates
func (s *uploadSession) OnUpdate(fn func(transfer.FileView)) {
	s.mu.Lock()
	s.onUpdate = fn
	s.mu.Unlock()
}

func (s *uploadSession) update(v transfer.FileView) {
	s.mu.Lock()
	fn := s.onUpdate
	s.mu.Unlock()
	if fn != nil {
		fn(v)
	}
}

// Open opens paths as upload contents. The handles live until Close.
func (s *uploadSession) Open(paths []string) ([]transfer.Content, error) {
	contents := make([]transfer.Content, 0, len(paths))
	for _, path := range paths {
		fc, err := transfer.OpenFile(path)
		if err != nil {
			return nil, err
		}
		s.track(fc)
		contents = append(contents, fc)
	}
	return contents, nil
}

// Reattach reopens the recorded source of a restored file
func (s *uploadSession) Reattach(fileID string) error {
	state, err := s.orch.Get(fileID)
	if err != nil {
		return err
	}
	if state.HasContent() {
		return nil
	}

	path := state.SourcePath()
	if path == "" {
		return fmt.Errorf("%w: no source recorded for %s", transfer.ErrContentUnavailable, state.Name())
	}
	fc, err := transfer.OpenFile(path)
	if err != nil {
		return fmt.Errorf("%w: %w", transfer.ErrContentUnavailable, err)
	}
	if err := s.orch.Reattach(fileID, fc); err != nil {
		fc.Close()
		return err
	}
	s.track(fc)
	return nil
}

func (s *uploadSession) track(c io.Closer) {
	s.mu.Lock()
	s.contents = append(s.contents, c)
	s.mu.Unlock()
}

func (s *uploadSession) Close() error {
	s.mu.Lock()
	for _, c := range s.contents {
		c.Close()
	}
	s.contents = nil
	s.mu.Unlock()

	s.sdk.Close()
	return s.ws.Unlock()
}
