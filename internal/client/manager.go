package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/openmined/syftdrop/internal/client/sources"
	"github.com/openmined/syftdrop/internal/transfer"
)

// Manager runs transfers in the background on behalf of the control plane
type Manager struct {
	orch   *transfer.Orchestrator
	events *EventBus

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// open file handles by file state id
	contents map[string]io.Closer
	mu       sync.Mutex
}

func NewManager(api transfer.API, opts transfer.Options) *Manager {
	m := &Manager{
		events:   NewEventBus(),
		contents: make(map[string]io.Closer),
	}

	opts.OnUpdate = m.onUpdate
	m.orch = transfer.NewOrchestrator(api, opts)
	m.ctx, m.cancel = context.WithCancel(context.Background())
	return m
}

// Start restores persisted snapshots. Restored files wait for a reattach.
func (m *Manager) Start(ctx context.Context) error {
	views, err := m.orch.Restore()
	if err != nil {
		return err
	}
	for _, v := range views {
		m.events.Publish(v)
	}
	return nil
}

// Stop pauses every upload, waits for them to settle and releases open files
func (m *Manager) Stop() {
	m.orch.PauseAll()
	m.cancel()
	m.wg.Wait()
	m.events.Close()

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range m.contents {
		c.Close()
		delete(m.contents, id)
	}
}

func (m *Manager) Orchestrator() *transfer.Orchestrator {
	return m.orch
}

func (m *Manager) Subscribe() (<-chan transfer.FileView, func()) {
	return m.events.Subscribe()
}

func (m *Manager) Transfers() []transfer.TransferView {
	return m.orch.Transfers()
}

func (m *Manager) Transfer(id string) (transfer.TransferView, error) {
	return m.orch.Transfer(id)
}

func (m *Manager) File(id string) (transfer.FileView, error) {
	return m.orch.File(id)
}

func (m *Manager) Files() []transfer.FileView {
	return m.orch.Files()
}

// Send collects paths into one transfer and uploads it in the background
func (m *Manager) Send(ctx context.Context, paths []string, opts transfer.SubmitOptions) (transfer.TransferView, error) {
	files, err := sources.Collect(paths)
	if err != nil {
		return transfer.TransferView{}, err
	}

	contents := make([]transfer.Content, 0, len(files))
	closeAll := func() {
		for _, c := range contents {
			c.(io.Closer).Close()
		}
	}
	for _, path := range files {
		fc, err := transfer.OpenFile(path)
		if err != nil {
			closeAll()
			return transfer.TransferView{}, err
		}
		contents = append(contents, fc)
	}

	t, err := m.orch.Submit(ctx, contents, opts)
	if err != nil {
		closeAll()
		return transfer.TransferView{}, err
	}

	m.mu.Lock()
	for i, id := range t.FileIDs {
		m.contents[id] = contents[i].(io.Closer)
	}
	m.mu.Unlock()

	m.run(t.ID)
	return m.orch.Transfer(t.ID)
}

// Cancel stops a transfer and asks the server to abort it
func (m *Manager) Cancel(ctx context.Context, transferID string) error {
	view, err := m.orch.Transfer(transferID)
	if err != nil {
		return err
	}
	if err := m.orch.Cancel(ctx, transferID); err != nil {
		return err
	}
	for _, f := range view.Files {
		m.release(f.ID)
	}
	return nil
}

func (m *Manager) Pause(fileID string) error {
	return m.orch.Pause(fileID)
}

// PauseTransfer pauses every uploading file of a transfer
func (m *Manager) PauseTransfer(transferID string) error {
	return m.orch.PauseTransfer(transferID)
}

// ResumeTransfer resumes the paused and failed files of a transfer in the background.
// Files without content are reported in the log and stay where they are.
func (m *Manager) ResumeTransfer(transferID string) error {
	view, err := m.orch.Transfer(transferID)
	if err != nil {
		return err
	}

	resumable := slices.ContainsFunc(view.Files, func(f transfer.FileView) bool {
		return f.Status == transfer.StatusPaused || f.Status == transfer.StatusError
	})
	if !resumable {
		return fmt.Errorf("%w: nothing to resume in transfer %s", transfer.ErrInvalidTransition, transferID)
	}
	active := m.orch.Active()
	for _, f := range view.Files {
		if slices.Contains(active, f.ID) {
			return transfer.ErrUploadActive
		}
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		res, err := m.orch.ResumeTransfer(m.ctx, transferID)
		if err != nil {
			slog.Error("transfer resume", "transfer", transferID, "error", err)
			return
		}
		for _, f := range res.Files {
			switch {
			case f.Err == nil, transfer.IsInterrupted(f.Err):
			case errors.Is(f.Err, transfer.ErrSessionInvalid):
				slog.Warn("resume rejected, restart required", "file", f.Name, "id", f.FileID, "error", f.Err)
			default:
				slog.Error("resume", "file", f.Name, "id", f.FileID, "error", f.Err)
			}
		}
		if res.Complete() {
			slog.Info("transfer ready", "transfer", transferID, "url", res.DownloadURL)
		}
	}()
	return nil
}

// Discard forgets a file that will not be resumed. The server session expires on its own.
func (m *Manager) Discard(fileID string) error {
	if slices.Contains(m.orch.Active(), fileID) {
		return transfer.ErrUploadActive
	}
	if err := m.orch.Discard(fileID); err != nil {
		return err
	}
	m.release(fileID)
	return nil
}

// Resume checks that a file can be resumed and continues its upload in the background.
// A session the server rejects leaves the file in error; see Restart.
func (m *Manager) Resume(fileID string) error {
	state, err := m.orch.Get(fileID)
	if err != nil {
		return err
	}
	if slices.Contains(m.orch.Active(), fileID) {
		return transfer.ErrUploadActive
	}
	switch status := state.Status(); status {
	case transfer.StatusPaused, transfer.StatusError:
	default:
		return fmt.Errorf("%w: cannot resume a %s file", transfer.ErrInvalidTransition, status)
	}
	if !state.HasContent() {
		return fmt.Errorf("%w: reattach %s first", transfer.ErrContentUnavailable, state.Name())
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		res, err := m.orch.Resume(m.ctx, fileID)
		if err == nil {
			err = res.Err
		}
		switch {
		case err == nil:
		case transfer.IsInterrupted(err):
		case errors.Is(err, transfer.ErrSessionInvalid):
			slog.Warn("resume rejected, restart required", "file", state.Name(), "id", fileID, "error", err)
		default:
			slog.Error("resume", "file", state.Name(), "id", fileID, "error", err)
		}
	}()
	return nil
}

// Restart submits the content of a file as a new transfer and uploads it in the background
func (m *Manager) Restart(ctx context.Context, fileID string) (transfer.TransferView, error) {
	t, err := m.orch.Restart(ctx, fileID)
	if err != nil {
		return transfer.TransferView{}, err
	}

	m.mu.Lock()
	if c, ok := m.contents[fileID]; ok && len(t.FileIDs) == 1 {
		delete(m.contents, fileID)
		m.contents[t.FileIDs[0]] = c
	}
	m.mu.Unlock()

	m.run(t.ID)
	return m.orch.Transfer(t.ID)
}

// Reattach opens path as the content of a restored file
func (m *Manager) Reattach(fileID, path string) (transfer.FileView, error) {
	fc, err := transfer.OpenFile(path)
	if err != nil {
		return transfer.FileView{}, err
	}
	if err := m.orch.Reattach(fileID, fc); err != nil {
		fc.Close()
		return transfer.FileView{}, err
	}

	m.mu.Lock()
	if prev, ok := m.contents[fileID]; ok {
		prev.Close()
	}
	m.contents[fileID] = fc
	m.mu.Unlock()

	return m.orch.File(fileID)
}

func (m *Manager) run(transferID string) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		res, err := m.orch.Run(m.ctx, transferID)
		if err != nil {
			slog.Error("transfer run", "transfer", transferID, "error", err)
			return
		}
		if err := res.Err(); err != nil {
			slog.Error("transfer finished with errors", "transfer", transferID, "error", err)
		} else if res.Complete() {
			slog.Info("transfer ready", "transfer", transferID, "url", res.DownloadURL)
		}
	}()
}

func (m *Manager) onUpdate(view transfer.FileView) {
	if view.Status == transfer.StatusCompleted {
		m.release(view.ID)
	}
	m.events.Publish(view)
}

func (m *Manager) release(fileID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.contents[fileID]; ok {
		c.Close()
		delete(m.contents, fileID)
	}
}
