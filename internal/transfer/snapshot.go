package transfer

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofrs/flock"
	"github.com/openmined/syftdrop/internal/utils"
)

const (
	snapshotExt  = ".json"
	snapshotLock = ".snapshots.lock"
	snapshotPerm = 0o600
)

var ErrSnapshotNotFound = errors.New("transfer: snapshot not found")

// Snapshot is the persisted form of a FileUploadState. It never carries file content.
type Snapshot struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Size        int64        `json:"size"`
	ChunkSize   int64        `json:"chunkSize"`
	PartCount   int          `json:"partCount"`
	SourcePath  string       `json:"sourcePath,omitempty"`
	Session     Session      `json:"session"`
	Status      Status       `json:"status"`
	Parts       []UploadPart `json:"parts"`
	CurrentPart int          `json:"currentPart"`
	Progress    float64      `json:"progress"`
	Error       string       `json:"error,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
	Revision    uint64       `json:"revision"`
}

func (s *FileUploadState) snapshotLocked() *Snapshot {
	return &Snapshot{
		ID:          s.id,
		Name:        s.name,
		Size:        s.size,
		ChunkSize:   s.chunkSize,
		PartCount:   s.partCount,
		SourcePath:  s.sourcePath,
		Session:     s.session,
		Status:      s.status,
		Parts:       s.completedPartsLocked(),
		CurrentPart: s.currentPart,
		Progress:    s.progressLocked(),
		Error:       s.lastError,
		CreatedAt:   s.createdAt,
		UpdatedAt:   s.updatedAt,
		Revision:    s.revision,
	}
}

// RestoreFileUploadState rebuilds a state from a snapshot. The state has no content until
// AttachContent succeeds. A file that was uploading when the snapshot was taken comes back paused.
func RestoreFileUploadState(snap *Snapshot) *FileUploadState {
	s := &FileUploadState{
		id:          snap.ID,
		name:        snap.Name,
		size:        snap.Size,
		chunkSize:   snap.ChunkSize,
		partCount:   snap.PartCount,
		sourcePath:  snap.SourcePath,
		session:     snap.Session,
		status:      snap.Status,
		completed:   make(map[int]UploadPart, len(snap.Parts)),
		inflight:    make(map[int]int64),
		currentPart: snap.CurrentPart,
		lastError:   snap.Error,
		createdAt:   snap.CreatedAt,
		updatedAt:   snap.UpdatedAt,
		revision:    snap.Revision,
	}

	if s.chunkSize <= 0 {
		s.chunkSize = ChunkSizeFor(s.size, DefaultChunkSize)
	}
	if s.partCount <= 0 {
		s.partCount = PartCount(s.size, s.chunkSize)
	}

	for _, p := range snap.Parts {
		if p.PartNumber >= 1 && p.PartNumber <= s.partCount {
			s.completed[p.PartNumber] = p
		}
	}

	switch s.status {
	case StatusUploading:
		s.status = StatusPaused
	case StatusPending:
		if !s.session.IsZero() {
			s.status = StatusPaused
		}
	case StatusPaused, StatusError, StatusCompleted:
	default:
		s.status = StatusError
		s.lastError = fmt.Sprintf("unknown status %q", snap.Status)
	}

	return s
}

// SnapshotStore persists snapshots between runs
type SnapshotStore interface {
	Save(snap *Snapshot) error
	Load(id string) (*Snapshot, error)
	Delete(id string) error
	List() ([]*Snapshot, error)
}

// FileSnapshotStore keeps one JSON document per file in a directory.
// Writes are atomic and serialized across processes with a lock file.
type FileSnapshotStore struct {
	dir       string
	flock     *flock.Flock
	revisions map[string]uint64
	mu        sync.Mutex
}

var _ SnapshotStore = (*FileSnapshotStore)(nil)

func NewFileSnapshotStore(dir string) (*FileSnapshotStore, error) {
	dir, err := utils.ResolvePath(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve snapshot dir: %w", err)
	}
	if err := utils.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}

	return &FileSnapshotStore{
		dir:       dir,
		flock:     flock.New(filepath.Join(dir, snapshotLock)),
		revisions: make(map[string]uint64),
	}, nil
}

func (f *FileSnapshotStore) Dir() string {
	return f.dir
}

// Save writes the snapshot unless a newer revision of the same file was already written
func (f *FileSnapshotStore) Save(snap *Snapshot) error {
	if snap == nil || snap.ID == "" {
		return fmt.Errorf("save snapshot: missing id")
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if rev, ok := f.revisions[snap.ID]; ok && snap.Revision < rev {
		slog.Debug("snapshot stale, skipped", "id", snap.ID, "revision", snap.Revision, "saved", rev)
		return nil
	}

	if err := f.flock.Lock(); err != nil {
		return fmt.Errorf("lock snapshots: %w", err)
	}
	defer f.flock.Unlock()

	if err := utils.WriteFileAtomic(f.path(snap.ID), data, snapshotPerm); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	f.revisions[snap.ID] = snap.Revision
	return nil
}

func (f *FileSnapshotStore) Load(id string) (*Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.flock.RLock(); err != nil {
		return nil, fmt.Errorf("lock snapshots: %w", err)
	}
	defer f.flock.Unlock()

	return f.read(f.path(id))
}

// Delete removes the snapshot of a file. Deleting a missing snapshot is not an error.
func (f *FileSnapshotStore) Delete(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.flock.Lock(); err != nil {
		return fmt.Errorf("lock snapshots: %w", err)
	}
	defer f.flock.Unlock()

	// later saves of an older revision must not bring it back
	f.revisions[id] = ^uint64(0)

	if err := os.Remove(f.path(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

// List returns every readable snapshot ordered by creation time. Corrupt documents are skipped.
func (f *FileSnapshotStore) List() ([]*Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.flock.RLock(); err != nil {
		return nil, fmt.Errorf("lock snapshots: %w", err)
	}
	defer f.flock.Unlock()

	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("read snapshot dir: %w", err)
	}

	snaps := make([]*Snapshot, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != snapshotExt {
			continue
		}

		snap, err := f.read(filepath.Join(f.dir, name))
		if err != nil {
			slog.Warn("snapshot unreadable", "file", name, "error", err)
			continue
		}
		snaps = append(snaps, snap)
	}

	sort.SliceStable(snaps, func(i, j int) bool {
		return snaps[i].CreatedAt.Before(snaps[j].CreatedAt)
	})
	return snaps, nil
}

func (f *FileSnapshotStore) read(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrSnapshotNotFound
	} else if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if snap.ID == "" {
		return nil, fmt.Errorf("snapshot %s has no id", filepath.Base(path))
	}
	return &snap, nil
}

func (f *FileSnapshotStore) path(id string) string {
	sum := sha1.Sum([]byte(id))
	return filepath.Join(f.dir, hex.EncodeToString(sum[:])+snapshotExt)
}
