package workspace

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/openmined/syftdrop/internal/utils"
)

const (
	snapshotsDir = "snapshots"
	logsDir      = "logs"
	lockFile     = "syftdrop.lock"
)

var ErrWorkspaceLocked = errors.New("workspace locked by another process")

// Workspace is the client data directory. Only one process at a time may drive uploads from it;
// read-only commands can use it without the lock.
type Workspace struct {
	Root         string
	SnapshotsDir string
	LogsDir      string

	flock *flock.Flock
}

func NewWorkspace(rootDir string) (*Workspace, error) {
	root, err := utils.ResolvePath(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", rootDir, err)
	}

	return &Workspace{
		Root:         root,
		SnapshotsDir: filepath.Join(root, snapshotsDir),
		LogsDir:      filepath.Join(root, logsDir),
		flock:        flock.New(filepath.Join(root, lockFile)),
	}, nil
}

func (w *Workspace) Lock() error {
	if err := utils.EnsureDir(w.Root); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", w.Root, err)
	}

	locked, err := w.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to lock workspace: %w", err)
	}
	if !locked {
		return ErrWorkspaceLocked
	}

	return nil
}

func (w *Workspace) Unlock() error {
	// if this process hasn't locked the workspace, then don't delete the lock file
	if !w.flock.Locked() {
		return nil
	}

	if err := w.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to unlock workspace: %w", err)
	}

	return os.Remove(w.flock.Path())
}

// Setup locks the workspace and creates its directories
func (w *Workspace) Setup() error {
	if err := w.Lock(); err != nil {
		return err
	}

	slog.Info("workspace", "root", w.Root)

	for _, dir := range []string{w.SnapshotsDir, w.LogsDir} {
		if err := utils.EnsureDir(dir); err != nil {
			w.Unlock()
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
