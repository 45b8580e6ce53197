package transfer

import (
	"fmt"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusUploading Status = "uploading"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// Session holds the identifiers the server assigned to one file of a transfer
type Session struct {
	TransferID  string    `json:"transferId"`
	FileID      string    `json:"fileId"`
	UploadID    string    `json:"uploadId"`
	Key         string    `json:"key"`
	UploadToken string    `json:"uploadToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
	DownloadURL string    `json:"downloadUrl,omitempty"`
}

func (s Session) IsZero() bool {
	return s.UploadID == "" && s.Key == ""
}

// FileView is the observable state of one file
type FileView struct {
	ID         string  `json:"id"`
	TransferID string  `json:"transferId,omitempty"`
	Name       string  `json:"name"`
	Size       int64   `json:"size"`
	Progress   float64 `json:"progress"`
	Status     Status  `json:"status"`
	Error      string  `json:"error,omitempty"`
}

// FileUploadState is the state machine of one file:
//
//	pending -> uploading -> {completed | paused | error}
//	paused | error -> uploading
//
// Every durable change is reported to the change hook as a Snapshot; progress ticks are
// reported only to the update hook.
type FileUploadState struct {
	id          string
	name        string
	size        int64
	chunkSize   int64
	partCount   int
	sourcePath  string
	session     Session
	status      Status
	completed   map[int]UploadPart
	inflight    map[int]int64
	currentPart int
	lastError   string
	content     Content
	createdAt   time.Time
	updatedAt   time.Time
	revision    uint64

	onChange func(*Snapshot)
	onUpdate func(FileView)

	mu sync.RWMutex
}

// NewFileUploadState creates a pending state for content cut into chunkSize parts
func NewFileUploadState(id string, content Content, chunkSize int64) *FileUploadState {
	now := time.Now()
	return &FileUploadState{
		id:         id,
		name:       content.Name(),
		size:       content.Size(),
		chunkSize:  chunkSize,
		partCount:  PartCount(content.Size(), chunkSize),
		sourcePath: sourcePath(content),
		status:     StatusPending,
		completed:  make(map[int]UploadPart),
		inflight:   make(map[int]int64),
		content:    content,
		createdAt:  now,
		updatedAt:  now,
	}
}

// SetHooks installs the change and update observers
func (s *FileUploadState) SetHooks(onChange func(*Snapshot), onUpdate func(FileView)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = onChange
	s.onUpdate = onUpdate
}

func (s *FileUploadState) ID() string         { return s.id }
func (s *FileUploadState) Name() string       { return s.name }
func (s *FileUploadState) Size() int64        { return s.size }
func (s *FileUploadState) ChunkSize() int64   { return s.chunkSize }
func (s *FileUploadState) PartCount() int     { return s.partCount }
func (s *FileUploadState) SourcePath() string { s.mu.RLock(); defer s.mu.RUnlock(); return s.sourcePath }
func (s *FileUploadState) Status() Status     { s.mu.RLock(); defer s.mu.RUnlock(); return s.status }
func (s *FileUploadState) Session() Session   { s.mu.RLock(); defer s.mu.RUnlock(); return s.session }
func (s *FileUploadState) Content() Content   { s.mu.RLock(); defer s.mu.RUnlock(); return s.content }
func (s *FileUploadState) HasContent() bool   { return s.Content() != nil }

func (s *FileUploadState) CurrentPart() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentPart
}

func (s *FileUploadState) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

// AssignSession stores the server assigned identifiers. They can be assigned once, while pending.
func (s *FileUploadState) AssignSession(session Session) error {
	s.mu.Lock()
	if !s.session.IsZero() {
		s.mu.Unlock()
		return ErrSessionAssigned
	}
	if s.status != StatusPending {
		s.mu.Unlock()
		return s.transitionError("assign session")
	}
	s.session = session
	notify := s.changedLocked(true)
	s.mu.Unlock()

	notify()
	return nil
}

// Start moves a pending, paused or errored file to uploading
func (s *FileUploadState) Start() error {
	s.mu.Lock()
	switch s.status {
	case StatusPending, StatusPaused, StatusError:
	case StatusUploading:
		s.mu.Unlock()
		return ErrUploadActive
	default:
		s.mu.Unlock()
		return s.transitionError("start")
	}
	if s.session.IsZero() {
		s.mu.Unlock()
		return ErrNoSession
	}
	if s.content == nil {
		s.mu.Unlock()
		return ErrContentUnavailable
	}

	s.status = StatusUploading
	s.lastError = ""
	clear(s.inflight)
	notify := s.changedLocked(true)
	s.mu.Unlock()

	notify()
	return nil
}

// Pause stops an uploading file. Parts acknowledged so far are kept.
func (s *FileUploadState) Pause() error {
	s.mu.Lock()
	switch s.status {
	case StatusPaused:
		s.mu.Unlock()
		return nil
	case StatusUploading:
	default:
		s.mu.Unlock()
		return s.transitionError("pause")
	}

	s.status = StatusPaused
	clear(s.inflight)
	notify := s.changedLocked(true)
	s.mu.Unlock()

	notify()
	return nil
}

// Fail moves an uploading file to error with the message of err
func (s *FileUploadState) Fail(err error) error {
	s.mu.Lock()
	if s.status != StatusUploading {
		s.mu.Unlock()
		return s.transitionError("fail")
	}

	s.status = StatusError
	if err != nil {
		s.lastError = err.Error()
	}
	clear(s.inflight)
	notify := s.changedLocked(true)
	s.mu.Unlock()

	notify()
	return nil
}

// Complete marks the file finalized. Every part must be recorded.
func (s *FileUploadState) Complete() error {
	s.mu.Lock()
	// a pause racing a finalize the server already confirmed loses
	if s.status != StatusUploading && s.status != StatusPaused {
		s.mu.Unlock()
		return s.transitionError("complete")
	}
	if len(s.completed) != s.partCount {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d of %d", ErrPartsMissing, len(s.completed), s.partCount)
	}

	s.status = StatusCompleted
	clear(s.inflight)
	notify := s.changedLocked(true)
	s.mu.Unlock()

	notify()
	return nil
}

// Invalidate drops the session and every recorded part; the file can only be restarted as a new upload
func (s *FileUploadState) Invalidate(reason string) {
	s.mu.Lock()
	if s.status == StatusCompleted {
		s.mu.Unlock()
		return
	}

	s.session = Session{}
	s.status = StatusError
	s.lastError = reason
	s.currentPart = 0
	clear(s.completed)
	clear(s.inflight)
	notify := s.changedLocked(true)
	s.mu.Unlock()

	notify()
}

// AttachContent reattaches file content after a restart. Name and size must match.
func (s *FileUploadState) AttachContent(c Content) error {
	if err := matchContent(s.name, s.size, c); err != nil {
		return err
	}

	s.mu.Lock()
	s.content = c
	if p := sourcePath(c); p != "" {
		s.sourcePath = p
	}
	notify := s.changedLocked(true)
	s.mu.Unlock()

	notify()
	return nil
}

// MarkAttempt records that a part is being sent
func (s *FileUploadState) MarkAttempt(partNumber int) {
	s.mu.Lock()
	if s.status != StatusUploading {
		s.mu.Unlock()
		return
	}
	s.currentPart = max(s.currentPart, partNumber)
	s.inflight[partNumber] = 0
	notify := s.changedLocked(false)
	s.mu.Unlock()

	notify()
}

// SetPartProgress records the bytes sent for an in-flight part
func (s *FileUploadState) SetPartProgress(partNumber int, sent int64) {
	s.mu.Lock()
	if _, ok := s.inflight[partNumber]; !ok || s.status != StatusUploading {
		s.mu.Unlock()
		return
	}
	s.inflight[partNumber] = sent
	notify := s.changedLocked(false)
	s.mu.Unlock()

	notify()
}

// ClearPart forgets the progress of a part that did not complete
func (s *FileUploadState) ClearPart(partNumber int) {
	s.mu.Lock()
	if _, ok := s.inflight[partNumber]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.inflight, partNumber)
	notify := s.changedLocked(false)
	s.mu.Unlock()

	notify()
}

// RecordPart adds an acknowledged part. Results arriving when the file is no longer uploading
// are discarded and false is returned. Recording a part number twice replaces the entry.
func (s *FileUploadState) RecordPart(part UploadPart) bool {
	s.mu.Lock()
	if s.status != StatusUploading || part.PartNumber < 1 || part.PartNumber > s.partCount {
		s.mu.Unlock()
		return false
	}
	s.completed[part.PartNumber] = part
	delete(s.inflight, part.PartNumber)
	notify := s.changedLocked(true)
	s.mu.Unlock()

	notify()
	return true
}

// CompletedParts returns the recorded parts sorted by part number
func (s *FileUploadState) CompletedParts() []UploadPart {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.completedPartsLocked()
}

// CompletedSet returns the recorded part numbers
func (s *FileUploadState) CompletedSet() mapset.Set[int] {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := mapset.NewThreadUnsafeSetWithSize[int](len(s.completed))
	for p := range s.completed {
		set.Add(p)
	}
	return set
}

// CompletedBytes is the size of every recorded part
func (s *FileUploadState) CompletedBytes() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.completedBytesLocked()
}

// Progress is the completed share of the file in percent, counting partial in-flight parts
func (s *FileUploadState) Progress() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.progressLocked()
}

// View returns the observable state
func (s *FileUploadState) View() FileView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewLocked()
}

// Snapshot returns the serializable state
func (s *FileUploadState) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// ===================================================================================================

func (s *FileUploadState) transitionError(op string) error {
	return fmt.Errorf("%w: cannot %s a %s file", ErrInvalidTransition, op, s.status)
}

// changedLocked bumps the update time and returns the hook invocations to run once the lock is released
func (s *FileUploadState) changedLocked(durable bool) func() {
	s.updatedAt = time.Now()

	var snap *Snapshot
	if durable {
		s.revision++
		if s.onChange != nil {
			snap = s.snapshotLocked()
		}
	}

	var view FileView
	if s.onUpdate != nil {
		view = s.viewLocked()
	}

	onChange, onUpdate := s.onChange, s.onUpdate
	return func() {
		if snap != nil {
			onChange(snap)
		}
		if onUpdate != nil {
			onUpdate(view)
		}
	}
}

func (s *FileUploadState) completedPartsLocked() []UploadPart {
	parts := make([]UploadPart, 0, len(s.completed))
	for _, p := range s.completed {
		parts = append(parts, p)
	}
	SortParts(parts)
	return parts
}

func (s *FileUploadState) completedBytesLocked() int64 {
	var total int64
	for p := range s.completed {
		total += partRange(p, s.size, s.chunkSize).Size()
	}
	return total
}

func (s *FileUploadState) progressLocked() float64 {
	if s.status == StatusCompleted {
		return 100
	}
	if s.size <= 0 {
		return 0
	}

	sent := s.completedBytesLocked()
	for _, n := range s.inflight {
		sent += n
	}
	return min(float64(sent)/float64(s.size)*100, 100)
}

func (s *FileUploadState) viewLocked() FileView {
	return FileView{
		ID:         s.id,
		TransferID: s.session.TransferID,
		Name:       s.name,
		Size:       s.size,
		Progress:   s.progressLocked(),
		Status:     s.status,
		Error:      s.lastError,
	}
}
