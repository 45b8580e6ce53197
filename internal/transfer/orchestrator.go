package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/openmined/syftdrop/internal/dropsdk"
)

// API is the set of server calls the orchestrator drives
type API interface {
	PartSender
	TransferValidator
	CreateTransfer(ctx context.Context, params *dropsdk.CreateTransferRequest) (*dropsdk.CreateTransferResponse, error)
	CompleteTransfer(ctx context.Context, params *dropsdk.CompleteTransferRequest) (*dropsdk.CompleteTransferResponse, error)
	AbortTransfer(ctx context.Context, params *dropsdk.AbortTransferRequest) (*dropsdk.AbortTransferResponse, error)
}

var _ API = (*dropsdk.TransferAPI)(nil)

type Options struct {
	ChunkSize   int64
	Concurrency int
	Retry       RetryPolicy
	Store       SnapshotStore
	OnUpdate    func(FileView)
}

func DefaultOptions() Options {
	return Options{
		ChunkSize:   DefaultChunkSize,
		Concurrency: DefaultConcurrency,
		Retry:       DefaultRetryPolicy(),
	}
}

// SubmitOptions are the transfer level fields of a submission
type SubmitOptions struct {
	Recipient string
	Message   string
}

// Transfer is the local mirror of a server side transfer
type Transfer struct {
	ID          string
	ExpiresAt   time.Time
	DownloadURL string
	Recipient   string
	Message     string
	FileIDs     []string
}

// TransferView is the observable state of a transfer. DownloadURL is set once a file completed.
type TransferView struct {
	ID          string     `json:"id"`
	ExpiresAt   time.Time  `json:"expiresAt"`
	DownloadURL string     `json:"downloadUrl,omitempty"`
	Complete    bool       `json:"complete"`
	Files       []FileView `json:"files"`
}

type FileResult struct {
	FileID string
	Name   string
	Status Status
	Object *dropsdk.ObjectInfo
	Err    error
}

type Result struct {
	TransferID  string
	DownloadURL string
	Files       []FileResult
}

// Complete reports whether at least one file of the transfer was finalized
func (r *Result) Complete() bool {
	for _, f := range r.Files {
		if f.Status == StatusCompleted {
			return true
		}
	}
	return false
}

// Err joins the failures of the transfer's files. Pauses and cancels are not failures.
func (r *Result) Err() error {
	var errs []error
	for _, f := range r.Files {
		if f.Err != nil && !IsInterrupted(f.Err) {
			errs = append(errs, fmt.Errorf("%s: %w", f.Name, f.Err))
		}
	}
	return errors.Join(errs...)
}

// Orchestrator creates transfers and drives their files from slicing to finalize.
// It owns the cancel registry of every active file upload.
type Orchestrator struct {
	api       API
	uploader  *PartUploader
	limiter   *ConcurrencyLimiter
	validator *SessionValidator
	registry  *CancelRegistry
	store     SnapshotStore
	chunkSize int64
	onUpdate  func(FileView)

	files     map[string]*FileUploadState
	transfers map[string]*Transfer
	mu        sync.RWMutex
}

func NewOrchestrator(api API, opts Options) *Orchestrator {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}

	return &Orchestrator{
		api:       api,
		uploader:  NewPartUploader(api, opts.Retry),
		limiter:   NewConcurrencyLimiter(opts.Concurrency),
		validator: NewSessionValidator(api),
		registry:  NewCancelRegistry(),
		store:     opts.Store,
		chunkSize: opts.ChunkSize,
		onUpdate:  opts.OnUpdate,
		files:     make(map[string]*FileUploadState),
		transfers: make(map[string]*Transfer),
	}
}

// Submit creates a transfer for files and assigns a multipart session to each of them.
// Nothing is uploaded until Run.
func (o *Orchestrator) Submit(ctx context.Context, files []Content, opts SubmitOptions) (*Transfer, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	states := make([]*FileUploadState, 0, len(files))
	specs := make([]*dropsdk.FileSpec, 0, len(files))
	for _, c := range files {
		if c.Size() <= 0 {
			return nil, fmt.Errorf("%w: %s", ErrEmptyFile, c.Name())
		}
		if c.Size() > MaxFileSize {
			return nil, fmt.Errorf("%w: %s", ErrFileTooLarge, c.Name())
		}

		states = append(states, NewFileUploadState(uuid.NewString(), c, ChunkSizeFor(c.Size(), o.chunkSize)))
		specs = append(specs, &dropsdk.FileSpec{
			Filename:    c.Name(),
			Filesize:    c.Size(),
			ContentType: DetectContentType(c),
		})
	}

	resp, err := o.api.CreateTransfer(ctx, &dropsdk.CreateTransferRequest{
		Files:     specs,
		Recipient: opts.Recipient,
		Message:   opts.Message,
	})
	if err != nil {
		return nil, fmt.Errorf("create transfer: %w", err)
	}
	if err := matchSessions(resp, states); err != nil {
		o.abortCreated(ctx, resp)
		return nil, fmt.Errorf("create transfer: %w", err)
	}

	t := &Transfer{
		ID:          resp.TransferID,
		ExpiresAt:   resp.ExpiresAt,
		DownloadURL: resp.DownloadURL,
		Recipient:   opts.Recipient,
		Message:     opts.Message,
		FileIDs:     make([]string, 0, len(states)),
	}

	for i, state := range states {
		fs := resp.Files[i]
		o.watch(state)
		if err := state.AssignSession(Session{
			TransferID:  resp.TransferID,
			FileID:      fs.FileID,
			UploadID:    fs.UploadID,
			Key:         fs.Key,
			UploadToken: resp.UploadToken,
			ExpiresAt:   resp.ExpiresAt,
			DownloadURL: resp.DownloadURL,
		}); err != nil {
			for _, s := range states[:i+1] {
				o.discard(s, ErrCancelled)
			}
			o.abortCreated(ctx, resp)
			return nil, err
		}
		t.FileIDs = append(t.FileIDs, state.ID())
	}

	o.mu.Lock()
	for _, state := range states {
		o.files[state.ID()] = state
	}
	o.transfers[t.ID] = t
	o.mu.Unlock()

	slog.Info("transfer created", "transfer", t.ID, "files", len(states), "expires", t.ExpiresAt)
	return cloneTransfer(t), nil
}

// matchSessions checks that the server returned one session per file, in order
func matchSessions(resp *dropsdk.CreateTransferResponse, states []*FileUploadState) error {
	if len(resp.Files) != len(states) {
		return fmt.Errorf("server returned %d sessions for %d files", len(resp.Files), len(states))
	}
	for i, state := range states {
		if fs := resp.Files[i]; fs == nil || fs.Filename != state.Name() {
			return fmt.Errorf("session %d does not match %q", i, state.Name())
		}
	}
	return nil
}

// abortCreated releases the server side of a transfer that was never tracked locally
func (o *Orchestrator) abortCreated(ctx context.Context, resp *dropsdk.CreateTransferResponse) {
	if resp.UploadToken == "" {
		return
	}
	if _, err := o.api.AbortTransfer(ctx, &dropsdk.AbortTransferRequest{Token: resp.UploadToken, TransferID: resp.TransferID}); err != nil {
		slog.Warn("abort transfer", "transfer", resp.TransferID, "error", err)
	}
}

// Run uploads the pending files of a transfer concurrently and waits for all of them to settle
func (o *Orchestrator) Run(ctx context.Context, transferID string) (*Result, error) {
	t, states, err := o.transferStates(transferID)
	if err != nil {
		return nil, err
	}

	result := &Result{TransferID: t.ID, Files: make([]FileResult, len(states))}
	var wg sync.WaitGroup
	for i, state := range states {
		// paused and failed files go through Resume
		if status := state.Status(); status != StatusPending {
			result.Files[i] = FileResult{FileID: state.ID(), Name: state.Name(), Status: status}
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			result.Files[i] = o.uploadFile(ctx, state)
		}()
	}
	wg.Wait()

	if result.Complete() {
		result.DownloadURL = t.DownloadURL
	}
	return result, nil
}

// Send submits files as one transfer and runs it
func (o *Orchestrator) Send(ctx context.Context, files []Content, opts SubmitOptions) (*Result, error) {
	t, err := o.Submit(ctx, files, opts)
	if err != nil {
		return nil, err
	}
	return o.Run(ctx, t.ID)
}

// Pause stops the upload of a file. Acknowledged parts are kept and late results are discarded.
func (o *Orchestrator) Pause(fileID string) error {
	state, err := o.state(fileID)
	if err != nil {
		return err
	}

	// status first, so results racing the abort are dropped
	if err := state.Pause(); err != nil {
		return err
	}
	o.registry.Abort(fileID, ErrPaused)
	slog.Info("file paused", "file", state.Name(), "id", fileID, "parts", len(state.CompletedParts()), "total", state.PartCount())
	return nil
}

// PauseTransfer pauses every uploading file of a transfer
func (o *Orchestrator) PauseTransfer(transferID string) error {
	_, states, err := o.transferStates(transferID)
	if err != nil {
		return err
	}
	for _, state := range states {
		if state.Status() == StatusUploading {
			if err := o.Pause(state.ID()); err != nil && !errors.Is(err, ErrInvalidTransition) {
				return err
			}
		}
	}
	return nil
}

// PauseAll pauses every uploading file
func (o *Orchestrator) PauseAll() {
	for _, id := range o.registry.IDs() {
		if err := o.Pause(id); err != nil && !errors.Is(err, ErrInvalidTransition) {
			slog.Warn("pause", "id", id, "error", err)
		}
	}
}

// Resume validates the session of a paused or failed file and uploads its remaining parts.
// A rejected session leaves the file in error with a restart message and returns ErrSessionInvalid.
func (o *Orchestrator) Resume(ctx context.Context, fileID string) (FileResult, error) {
	state, err := o.state(fileID)
	if err != nil {
		return FileResult{}, err
	}

	if o.registry.Active(fileID) {
		return FileResult{}, ErrUploadActive
	}
	switch status := state.Status(); status {
	case StatusPaused, StatusError:
	default:
		return FileResult{}, fmt.Errorf("%w: cannot resume a %s file", ErrInvalidTransition, status)
	}
	if !state.HasContent() {
		return FileResult{}, fmt.Errorf("%w: reattach %s first", ErrContentUnavailable, state.Name())
	}

	if err := o.validator.EnsureResumable(ctx, state); err != nil {
		return FileResult{}, err
	}

	skip := len(state.CompletedParts())
	slog.Info("file resumed", "file", state.Name(), "id", fileID, "skipped", skip, "remaining", state.PartCount()-skip, "done", state.CompletedBytes())
	return o.uploadFile(ctx, state), nil
}

// ResumeTransfer resumes every paused or failed file of a transfer concurrently
func (o *Orchestrator) ResumeTransfer(ctx context.Context, transferID string) (*Result, error) {
	t, states, err := o.transferStates(transferID)
	if err != nil {
		return nil, err
	}

	result := &Result{TransferID: t.ID, Files: make([]FileResult, len(states))}
	var wg sync.WaitGroup
	for i, state := range states {
		result.Files[i] = FileResult{FileID: state.ID(), Name: state.Name(), Status: state.Status()}
		switch state.Status() {
		case StatusPaused, StatusError:
		default:
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := o.Resume(ctx, state.ID())
			if err != nil {
				res = FileResult{FileID: state.ID(), Name: state.Name(), Status: state.Status(), Err: err}
			}
			result.Files[i] = res
		}()
	}
	wg.Wait()

	if result.Complete() {
		result.DownloadURL = t.DownloadURL
	}
	return result, nil
}

// Reattach gives a restored file its content back. The content must match the recorded name and size.
func (o *Orchestrator) Reattach(fileID string, content Content) error {
	state, err := o.state(fileID)
	if err != nil {
		return err
	}
	if o.registry.Active(fileID) {
		return ErrUploadActive
	}
	return state.AttachContent(content)
}

// Cancel aborts every in-flight upload of a transfer, discards its local state and asks the
// server to abort the multipart sessions
func (o *Orchestrator) Cancel(ctx context.Context, transferID string) error {
	t, states, err := o.transferStates(transferID)
	if err != nil {
		return err
	}

	var token string
	for _, state := range states {
		if s := state.Session(); s.UploadToken != "" {
			token = s.UploadToken
		}
		o.discard(state, ErrCancelled)
	}

	o.mu.Lock()
	delete(o.transfers, t.ID)
	o.mu.Unlock()

	slog.Info("transfer cancelled", "transfer", t.ID, "files", len(states))

	if token == "" {
		return nil
	}
	if _, err := o.api.AbortTransfer(ctx, &dropsdk.AbortTransferRequest{Token: token, TransferID: t.ID}); err != nil {
		slog.Warn("abort transfer", "transfer", t.ID, "error", err)
	}
	return nil
}

// Restart discards a file that cannot be resumed and submits its content as a new transfer
func (o *Orchestrator) Restart(ctx context.Context, fileID string) (*Transfer, error) {
	state, err := o.state(fileID)
	if err != nil {
		return nil, err
	}
	if o.registry.Active(fileID) {
		return nil, ErrUploadActive
	}
	if state.Status() == StatusCompleted {
		return nil, fmt.Errorf("%w: cannot restart a completed file", ErrInvalidTransition)
	}

	content := state.Content()
	if content == nil {
		return nil, fmt.Errorf("%w: reattach %s first", ErrContentUnavailable, state.Name())
	}

	var opts SubmitOptions
	o.mu.RLock()
	if t, ok := o.transfers[state.Session().TransferID]; ok {
		opts = SubmitOptions{Recipient: t.Recipient, Message: t.Message}
	}
	o.mu.RUnlock()

	t, err := o.Submit(ctx, []Content{content}, opts)
	if err != nil {
		return nil, err
	}

	o.discard(state, ErrCancelled)
	slog.Info("file restarted", "file", state.Name(), "old", fileID, "transfer", t.ID)
	return t, nil
}

// Discard forgets a file and its snapshot without contacting the server
func (o *Orchestrator) Discard(fileID string) error {
	state, err := o.state(fileID)
	if err != nil {
		return err
	}
	o.discard(state, ErrCancelled)
	return nil
}

// Restore loads persisted snapshots. Restored files have no content and come back paused or
// errored; they need Reattach before they can be resumed.
func (o *Orchestrator) Restore() ([]FileView, error) {
	if o.store == nil {
		return nil, nil
	}

	snaps, err := o.store.List()
	if err != nil {
		return nil, fmt.Errorf("restore: %w", err)
	}

	views := make([]FileView, 0, len(snaps))
	for _, snap := range snaps {
		if snap.Status == StatusCompleted {
			if err := o.store.Delete(snap.ID); err != nil {
				slog.Warn("restore: delete completed snapshot", "id", snap.ID, "error", err)
			}
			continue
		}

		o.mu.Lock()
		if _, ok := o.files[snap.ID]; ok {
			o.mu.Unlock()
			continue
		}

		state := RestoreFileUploadState(snap)
		o.files[state.ID()] = state

		session := state.Session()
		transferID := session.TransferID
		if transferID == "" {
			// invalidated sessions are grouped on their own
			transferID = "local-" + state.ID()
		}
		t, ok := o.transfers[transferID]
		if !ok {
			t = &Transfer{ID: transferID, ExpiresAt: session.ExpiresAt, DownloadURL: session.DownloadURL}
			o.transfers[transferID] = t
		}
		t.FileIDs = append(t.FileIDs, state.ID())
		o.mu.Unlock()

		o.watch(state)
		views = append(views, state.View())
	}

	slog.Info("snapshots restored", "files", len(views))
	return views, nil
}

// Get returns the state of a file
func (o *Orchestrator) Get(fileID string) (*FileUploadState, error) {
	return o.state(fileID)
}

func (o *Orchestrator) File(fileID string) (FileView, error) {
	state, err := o.state(fileID)
	if err != nil {
		return FileView{}, err
	}
	return state.View(), nil
}

// Files returns the view of every known file, grouped by transfer
func (o *Orchestrator) Files() []FileView {
	var views []FileView
	for _, t := range o.Transfers() {
		views = append(views, t.Files...)
	}
	return views
}

func (o *Orchestrator) Transfer(transferID string) (TransferView, error) {
	t, states, err := o.transferStates(transferID)
	if err != nil {
		return TransferView{}, err
	}
	return transferView(t, states), nil
}

// Transfers returns every known transfer ordered by id
func (o *Orchestrator) Transfers() []TransferView {
	o.mu.RLock()
	ids := make([]string, 0, len(o.transfers))
	for id := range o.transfers {
		ids = append(ids, id)
	}
	o.mu.RUnlock()
	slices.Sort(ids)

	views := make([]TransferView, 0, len(ids))
	for _, id := range ids {
		if v, err := o.Transfer(id); err == nil {
			views = append(views, v)
		}
	}
	return views
}

// Active returns the ids of files with an upload in flight
func (o *Orchestrator) Active() []string {
	return o.registry.IDs()
}

// ===================================================================================================

func (o *Orchestrator) uploadFile(parent context.Context, state *FileUploadState) FileResult {
	result := FileResult{FileID: state.ID(), Name: state.Name()}

	ctx, release, err := o.registry.Register(parent, state.ID())
	if err != nil {
		result.Status, result.Err = state.Status(), err
		return result
	}
	defer release()

	if err := state.Start(); err != nil {
		result.Status, result.Err = state.Status(), err
		return result
	}

	session := state.Session()
	target := PartTarget{Token: session.UploadToken, Key: session.Key, UploadID: session.UploadID}
	content := state.Content()
	parts := Slice(state.Size(), state.ChunkSize())

	slog.Debug("file upload", "file", state.Name(), "parts", len(parts), "chunk", state.ChunkSize(), "concurrency", o.limiter.Limit())

	err = o.limiter.Run(ctx, parts, state.CompletedSet(), func(ctx context.Context, part PartRange) error {
		state.MarkAttempt(part.PartNumber)
		uploaded, err := o.uploader.Upload(ctx, target, part, content, func(sent int64) {
			state.SetPartProgress(part.PartNumber, sent)
		})
		if err != nil {
			state.ClearPart(part.PartNumber)
			return err
		}
		if !state.RecordPart(uploaded) {
			slog.Debug("late part discarded", "file", state.Name(), "part", part.PartNumber)
		}
		return nil
	})
	if err != nil {
		return o.settle(ctx, state, result, err)
	}

	acked := state.CompletedParts()
	if len(acked) != state.PartCount() {
		return o.settle(ctx, state, result, fmt.Errorf("%w: %d of %d", ErrPartsMissing, len(acked), state.PartCount()))
	}

	resp, err := o.api.CompleteTransfer(ctx, &dropsdk.CompleteTransferRequest{
		Token:      session.UploadToken,
		TransferID: session.TransferID,
		Key:        session.Key,
		UploadID:   session.UploadID,
		Parts:      completedParts(acked),
	})
	if err == nil && (resp == nil || !resp.Success) {
		err = errors.New("server did not confirm completion")
	}
	if err != nil {
		return o.settle(ctx, state, result, fmt.Errorf("finalize: %w", err))
	}

	if err := state.Complete(); err != nil {
		return o.settle(ctx, state, result, err)
	}

	slog.Info("file completed", "file", state.Name(), "transfer", session.TransferID, "parts", len(acked))
	result.Status = StatusCompleted
	result.Object = resp.Object
	return result
}

// settle moves an upload that stopped early to paused or error
func (o *Orchestrator) settle(ctx context.Context, state *FileUploadState, result FileResult, err error) FileResult {
	switch cause := interruption(ctx); {
	case errors.Is(cause, ErrPaused):
		_ = state.Pause()
		result.Err = cause
	case cause != nil:
		result.Err = cause
	case ctx.Err() != nil:
		// the caller went away, keep the file resumable
		_ = state.Pause()
		result.Err = context.Cause(ctx)
	default:
		if failErr := state.Fail(err); failErr != nil {
			slog.Debug("fail", "file", state.Name(), "error", failErr)
		}
		slog.Error("file upload failed", "file", state.Name(), "error", err)
		result.Err = err
	}

	result.Status = state.Status()
	return result
}

func (o *Orchestrator) watch(state *FileUploadState) {
	state.SetHooks(o.persist, o.onUpdate)
}

func (o *Orchestrator) persist(snap *Snapshot) {
	if o.store == nil {
		return
	}

	var err error
	if snap.Status == StatusCompleted {
		err = o.store.Delete(snap.ID)
	} else {
		err = o.store.Save(snap)
	}
	if err != nil {
		slog.Warn("snapshot", "id", snap.ID, "status", snap.Status, "error", err)
	}
}

// discard drops a file from memory and storage, aborting its upload with cause
func (o *Orchestrator) discard(state *FileUploadState, cause error) {
	state.SetHooks(nil, nil)
	o.registry.Abort(state.ID(), cause)

	o.mu.Lock()
	delete(o.files, state.ID())
	for id, t := range o.transfers {
		t.FileIDs = slices.DeleteFunc(t.FileIDs, func(fid string) bool { return fid == state.ID() })
		if len(t.FileIDs) == 0 {
			delete(o.transfers, id)
		}
	}
	o.mu.Unlock()

	if o.store != nil {
		if err := o.store.Delete(state.ID()); err != nil {
			slog.Warn("snapshot delete", "id", state.ID(), "error", err)
		}
	}
}

func (o *Orchestrator) state(fileID string) (*FileUploadState, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	state, ok := o.files[fileID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, fileID)
	}
	return state, nil
}

func (o *Orchestrator) transferStates(transferID string) (*Transfer, []*FileUploadState, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	t, ok := o.transfers[transferID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrTransferNotFound, transferID)
	}

	states := make([]*FileUploadState, 0, len(t.FileIDs))
	for _, id := range t.FileIDs {
		if state, ok := o.files[id]; ok {
			states = append(states, state)
		}
	}
	return cloneTransfer(t), states, nil
}

func transferView(t *Transfer, states []*FileUploadState) TransferView {
	view := TransferView{ID: t.ID, ExpiresAt: t.ExpiresAt, Files: make([]FileView, 0, len(states))}
	for _, state := range states {
		fv := state.View()
		if fv.Status == StatusCompleted {
			view.Complete = true
		}
		view.Files = append(view.Files, fv)
	}
	if view.Complete {
		view.DownloadURL = t.DownloadURL
	}
	return view
}

func cloneTransfer(t *Transfer) *Transfer {
	c := *t
	c.FileIDs = slices.Clone(t.FileIDs)
	return &c
}

func completedParts(parts []UploadPart) []*dropsdk.CompletedPart {
	out := make([]*dropsdk.CompletedPart, 0, len(parts))
	for _, p := range parts {
		out = append(out, &dropsdk.CompletedPart{PartNumber: p.PartNumber, ETag: p.ETag})
	}
	return out
}
