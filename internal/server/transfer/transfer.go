package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/jmoiron/sqlx"
	"github.com/openmined/syftdrop/internal/server/auth"
	"github.com/openmined/syftdrop/internal/server/blob"
	"github.com/openmined/syftdrop/internal/server/email"
	"github.com/openmined/syftdrop/internal/utils"
)

const (
	defaultContentType = "application/octet-stream"
	maxFilenameLength  = 255
)

// TransferService owns transfers: the multipart sessions backing each file, the upload
// tokens that authorize parts, completion, and expiry.
type TransferService struct {
	config    *Config
	store     *TransferStore
	backend   blob.IBlobBackend
	auth      *auth.AuthService
	email     email.Service
	publicURL string
	downloads *expirable.LRU[string, string]
	now       func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewTransferService(config *Config, db *sqlx.DB, backend blob.IBlobBackend, authSvc *auth.AuthService, emailSvc email.Service, publicURL string) (*TransferService, error) {
	store, err := NewTransferStore(db)
	if err != nil {
		return nil, err
	}

	return &TransferService{
		config:    config,
		store:     store,
		backend:   backend,
		auth:      authSvc,
		email:     emailSvc,
		publicURL: publicURL,
		downloads: expirable.NewLRU[string, string](config.DownloadCache, nil, config.DownloadTTL),
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Start runs the expiry reaper until Shutdown
func (s *TransferService) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runReaper(ctx)
	}()

	slog.Info("transfer service start", "maxFileSize", s.config.MaxFileSize, "expiry", s.config.Expiry, "reapInterval", s.config.ReapInterval)
	return nil
}

func (s *TransferService) Shutdown(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *TransferService) Store() *TransferStore {
	return s.store
}

// Create opens a transfer with one multipart session per file. Sessions created before a
// failure are aborted, so a failed create leaves nothing behind.
func (s *TransferService) Create(ctx context.Context, params *CreateParams) (*CreateResult, error) {
	if err := s.validateCreate(params); err != nil {
		return nil, err
	}

	now := s.now()
	t := &Transfer{
		ID:        uuid.NewString(),
		Status:    TransferOpen,
		Recipient: params.Recipient,
		Message:   params.Message,
		DeviceID:  params.DeviceID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.config.Expiry),
	}

	token, err := s.auth.IssueUploadToken(t.ID, t.ExpiresAt)
	if err != nil {
		return nil, err
	}

	files := make([]*File, 0, len(params.Files))
	for _, spec := range params.Files {
		contentType := spec.ContentType
		if contentType == "" {
			contentType = defaultContentType
		}

		f := &File{
			ID:          uuid.NewString(),
			TransferID:  t.ID,
			Filename:    spec.Filename,
			Size:        spec.Size,
			ContentType: contentType,
			Status:      FileUploading,
		}
		f.Key = blob.TransferKey(t.ID, f.ID, f.Filename)

		uploadID, err := s.backend.CreateMultipartUpload(ctx, &blob.CreateMultipartUploadParams{
			Key:         f.Key,
			ContentType: f.ContentType,
		})
		if err != nil {
			s.abortSessions(ctx, files)
			return nil, fmt.Errorf("create multipart upload for %q: %w", spec.Filename, err)
		}
		f.UploadID = uploadID
		files = append(files, f)
	}

	if err := s.store.Create(ctx, t, files); err != nil {
		s.abortSessions(ctx, files)
		return nil, err
	}

	slog.Info("transfer created", "transferId", t.ID, "files", len(files), "expiresAt", t.ExpiresAt, "recipient", t.Recipient != "")

	return &CreateResult{
		Transfer:    t,
		Files:       files,
		UploadToken: token,
		DownloadURL: s.downloadPageURL(t.ID),
	}, nil
}

// UploadPart stores one part of a file of transferID
func (s *TransferService) UploadPart(ctx context.Context, transferID string, params *blob.UploadPartParams) (*blob.UploadPartResponse, error) {
	if params.PartNumber < blob.MinPartNumber || params.PartNumber > blob.MaxPartNumber || params.Size <= 0 {
		return nil, blob.ErrInvalidPart
	}

	f, err := s.openFile(ctx, transferID, params.Key, params.UploadID)
	if err != nil {
		return nil, err
	}

	if params.Size > f.Size {
		return nil, fmt.Errorf("%w: %d > %d", ErrPartTooLarge, params.Size, f.Size)
	}

	return s.backend.UploadPart(ctx, params)
}

// Complete commits the parts of one file. Parts must be sorted strictly ascending.
// Completing an already completed file returns its stored object again.
func (s *TransferService) Complete(ctx context.Context, transferID string, params *CompleteParams) (*blob.PutObjectResponse, error) {
	if err := validateParts(params.Parts); err != nil {
		return nil, err
	}

	f, err := s.store.FileByUpload(ctx, params.Key, params.UploadID)
	if err != nil {
		return nil, err
	}
	if f.TransferID != transferID {
		return nil, auth.ErrTransferMismatch
	}
	if f.Status == FileCompleted {
		return &blob.PutObjectResponse{Key: f.Key, ETag: f.ETag, Size: f.Size, LastModified: f.CompletedAt}, nil
	}

	t, err := s.usableTransfer(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if f.Status != FileUploading {
		return nil, ErrFileClosed
	}

	obj, err := s.backend.CompleteMultipartUpload(ctx, &blob.CompleteMultipartUploadParams{
		Key:      f.Key,
		UploadID: f.UploadID,
		Parts:    params.Parts,
	})
	if err != nil {
		return nil, err
	}

	if obj.Size != f.Size {
		slog.Warn("completed object size differs from announced size", "transferId", transferID, "fileId", f.ID, "announced", f.Size, "stored", obj.Size)
	}

	done, err := s.store.CompleteFile(ctx, f, obj.ETag, s.now())
	if err != nil {
		return nil, err
	}

	slog.Info("file completed", "transferId", transferID, "fileId", f.ID, "parts", len(params.Parts), "size", obj.Size)

	if done {
		slog.Info("transfer complete", "transferId", transferID)
		files, err := s.store.Files(ctx, transferID)
		if err != nil {
			slog.Error("list transfer files", "transferId", transferID, "error", err)
		} else {
			t.Status = TransferComplete
			s.notifyRecipient(ctx, t, files)
		}
	}

	return obj, nil
}

// Validate reports whether the sessions of a transfer can still take parts.
// An unknown transfer is invalid, not an error.
func (s *TransferService) Validate(ctx context.Context, transferID string) (*Validation, error) {
	t, err := s.store.Get(ctx, transferID)
	if errors.Is(err, ErrTransferNotFound) {
		return &Validation{Valid: false, Reason: ErrTransferNotFound.Error()}, nil
	} else if err != nil {
		return nil, err
	}

	if err := t.Usable(s.now()); err != nil {
		return &Validation{Valid: false, Reason: err.Error()}, nil
	}
	return &Validation{Valid: true}, nil
}

// Get returns the transfer with its files. Download links are set for completed files.
func (s *TransferService) Get(ctx context.Context, transferID string) (*TransferInfo, error) {
	t, err := s.store.Get(ctx, transferID)
	if err != nil {
		return nil, err
	}

	files, err := s.store.Files(ctx, transferID)
	if err != nil {
		return nil, err
	}

	info := &TransferInfo{Transfer: t, Files: make([]*FileInfo, 0, len(files))}
	for _, f := range files {
		fi := &FileInfo{File: f}
		if f.Status == FileCompleted {
			fi.DownloadURL = utils.JoinURL(s.publicURL, "d", t.ID, f.ID)
			info.DownloadURL = s.downloadPageURL(t.ID)
		}
		info.Files = append(info.Files, fi)
	}
	return info, nil
}

// Abort cancels an open transfer and aborts the sessions of its unfinished files.
// Completed files stay downloadable until the transfer expires.
func (s *TransferService) Abort(ctx context.Context, transferID string) ([]string, error) {
	t, err := s.store.Get(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if t.Status != TransferOpen {
		return nil, ErrTransferClosed
	}

	files, err := s.store.Files(ctx, transferID)
	if err != nil {
		return nil, err
	}

	closed, err := s.store.Close(ctx, transferID, TransferCancelled)
	if err != nil {
		return nil, err
	}
	if !closed {
		return nil, ErrTransferClosed
	}

	aborted := s.abortSessions(ctx, files)
	slog.Info("transfer cancelled", "transferId", transferID, "aborted", len(aborted))
	return aborted, nil
}

// DownloadURL returns a presigned url for a completed file
func (s *TransferService) DownloadURL(ctx context.Context, transferID, fileID string) (string, error) {
	cacheKey := transferID + "/" + fileID
	cached := s.config.DownloadTTL > 0
	if cached {
		if u, ok := s.downloads.Get(cacheKey); ok {
			return u, nil
		}
	}

	t, err := s.store.Get(ctx, transferID)
	if err != nil {
		return "", err
	}
	if t.Status == TransferExpired || !s.now().Before(t.ExpiresAt) {
		return "", ErrTransferExpired
	}

	f, err := s.store.File(ctx, transferID, fileID)
	if err != nil {
		return "", err
	}
	if f.Status != FileCompleted {
		return "", ErrFileNotFound
	}

	u, err := s.backend.GetObjectPresigned(ctx, f.Key, f.Filename)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", f.Key, err)
	}

	if cached {
		s.downloads.Add(cacheKey, u)
	}
	return u, nil
}

// ===================================================================================================

func (s *TransferService) validateCreate(params *CreateParams) error {
	if len(params.Files) == 0 {
		return ErrNoFiles
	}
	if len(params.Files) > s.config.MaxFiles {
		return fmt.Errorf("%w: %d > %d", ErrTooManyFiles, len(params.Files), s.config.MaxFiles)
	}

	if params.Recipient != "" {
		if err := utils.ValidateEmail(params.Recipient); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidRecipient, err)
		}
	}

	seen := make(map[string]struct{}, len(params.Files))
	for _, f := range params.Files {
		if !validFilename(f.Filename) {
			return fmt.Errorf("%w: %q", ErrInvalidFilename, f.Filename)
		}
		if _, ok := seen[f.Filename]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateFilename, f.Filename)
		}
		seen[f.Filename] = struct{}{}

		if f.Size <= 0 {
			return fmt.Errorf("%w: %q", ErrEmptyFile, f.Filename)
		}
		if f.Size > s.config.MaxFileSize {
			return fmt.Errorf("%w: %q is %d bytes, limit %d", ErrFileTooLarge, f.Filename, f.Size, s.config.MaxFileSize)
		}
	}
	return nil
}

func validFilename(name string) bool {
	if name == "" || name == "." || name == ".." || len(name) > maxFilenameLength {
		return false
	}
	if strings.ContainsAny(name, "/\\\x00") {
		return false
	}
	return utf8.ValidString(name)
}

func validateParts(parts []*blob.CompletedPart) error {
	if len(parts) == 0 {
		return ErrNoParts
	}
	prev := 0
	for _, p := range parts {
		if p == nil || p.ETag == "" || p.PartNumber < blob.MinPartNumber || p.PartNumber > blob.MaxPartNumber {
			return blob.ErrInvalidPart
		}
		if p.PartNumber <= prev {
			return fmt.Errorf("%w: %d after %d", ErrPartsNotSorted, p.PartNumber, prev)
		}
		prev = p.PartNumber
	}
	return nil
}

func (s *TransferService) usableTransfer(ctx context.Context, transferID string) (*Transfer, error) {
	t, err := s.store.Get(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if err := t.Usable(s.now()); err != nil {
		return nil, err
	}
	return t, nil
}

// openFile resolves the file owning a session and checks that it can take parts
func (s *TransferService) openFile(ctx context.Context, transferID, key, uploadID string) (*File, error) {
	f, err := s.store.FileByUpload(ctx, key, uploadID)
	if err != nil {
		return nil, err
	}
	if f.TransferID != transferID {
		return nil, auth.ErrTransferMismatch
	}
	if _, err := s.usableTransfer(ctx, transferID); err != nil {
		return nil, err
	}
	if f.Status != FileUploading {
		return nil, ErrFileClosed
	}
	return f, nil
}

// abortSessions aborts the multipart uploads of unfinished files and returns their ids
func (s *TransferService) abortSessions(ctx context.Context, files []*File) []string {
	ctx = context.WithoutCancel(ctx)
	aborted := make([]string, 0, len(files))
	for _, f := range files {
		if f.Status == FileCompleted || f.UploadID == "" {
			continue
		}
		if err := s.backend.AbortMultipartUpload(ctx, f.Key, f.UploadID); err != nil && !errors.Is(err, blob.ErrUploadNotFound) {
			slog.Warn("abort multipart upload", "key", f.Key, "uploadId", f.UploadID, "error", err)
			continue
		}
		aborted = append(aborted, f.ID)
	}
	return aborted
}

func (s *TransferService) downloadPageURL(transferID string) string {
	return utils.JoinURL(s.publicURL, "d", transferID)
}
