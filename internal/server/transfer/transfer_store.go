package transfer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/openmined/syftdrop/internal/db"
)

var migrations = []db.Migration{
	{Version: 1, Name: "transfers", SQL: schemaV1},
}

const schemaV1 = `
CREATE TABLE IF NOT EXISTS transfers (
	id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	recipient TEXT NOT NULL DEFAULT '',
	message TEXT NOT NULL DEFAULT '',
	device_id TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL,
	completed_at INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_transfers_status_expires ON transfers(status, expires_at);

CREATE TABLE IF NOT EXISTS transfer_files (
	id TEXT PRIMARY KEY,
	transfer_id TEXT NOT NULL REFERENCES transfers(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	filename TEXT NOT NULL,
	size INTEGER NOT NULL,
	content_type TEXT NOT NULL DEFAULT '',
	key TEXT NOT NULL,
	upload_id TEXT NOT NULL,
	status TEXT NOT NULL,
	etag TEXT NOT NULL DEFAULT '',
	completed_at INTEGER NOT NULL DEFAULT 0
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_transfer_files_upload ON transfer_files(key, upload_id);
CREATE INDEX IF NOT EXISTS idx_transfer_files_transfer ON transfer_files(transfer_id);
`

const (
	transferColumns = "id, status, recipient, message, device_id, created_at, expires_at, completed_at"
	fileColumns     = "id, transfer_id, position, filename, size, content_type, key, upload_id, status, etag, completed_at"
)

// rows keep times as unix millis
type transferRow struct {
	ID          string `db:"id"`
	Status      string `db:"status"`
	Recipient   string `db:"recipient"`
	Message     string `db:"message"`
	DeviceID    string `db:"device_id"`
	CreatedAt   int64  `db:"created_at"`
	ExpiresAt   int64  `db:"expires_at"`
	CompletedAt int64  `db:"completed_at"`
}

type fileRow struct {
	ID          string `db:"id"`
	TransferID  string `db:"transfer_id"`
	Position    int    `db:"position"`
	Filename    string `db:"filename"`
	Size        int64  `db:"size"`
	ContentType string `db:"content_type"`
	Key         string `db:"key"`
	UploadID    string `db:"upload_id"`
	Status      string `db:"status"`
	ETag        string `db:"etag"`
	CompletedAt int64  `db:"completed_at"`
}

// TransferStore persists transfers and their files in SQLite
type TransferStore struct {
	db *sqlx.DB
}

func NewTransferStore(sqlDB *sqlx.DB) (*TransferStore, error) {
	if err := db.Migrate(context.Background(), sqlDB, "transfer", migrations); err != nil {
		return nil, fmt.Errorf("failed to initialize transfer store: %w", err)
	}
	return &TransferStore{db: sqlDB}, nil
}

// Create inserts a transfer and its files in a single transaction
func (s *TransferStore) Create(ctx context.Context, t *Transfer, files []*File) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	row := toTransferRow(t)
	if _, err := tx.NamedExecContext(ctx,
		`INSERT INTO transfers (`+transferColumns+`)
		VALUES (:id, :status, :recipient, :message, :device_id, :created_at, :expires_at, :completed_at)`,
		row,
	); err != nil {
		return fmt.Errorf("failed to insert transfer %s: %w", t.ID, err)
	}

	for i, f := range files {
		if _, err := tx.NamedExecContext(ctx,
			`INSERT INTO transfer_files (`+fileColumns+`)
			VALUES (:id, :transfer_id, :position, :filename, :size, :content_type, :key, :upload_id, :status, :etag, :completed_at)`,
			toFileRow(f, i),
		); err != nil {
			return fmt.Errorf("failed to insert file %s: %w", f.Filename, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *TransferStore) Get(ctx context.Context, transferID string) (*Transfer, error) {
	var row transferRow
	err := s.db.GetContext(ctx, &row, "SELECT "+transferColumns+" FROM transfers WHERE id = ?", transferID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransferNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to get transfer %s: %w", transferID, err)
	}
	return row.toTransfer(), nil
}

// Files returns the files of a transfer in the order they were announced
func (s *TransferStore) Files(ctx context.Context, transferID string) ([]*File, error) {
	var rows []fileRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT "+fileColumns+" FROM transfer_files WHERE transfer_id = ? ORDER BY position", transferID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files of %s: %w", transferID, err)
	}

	files := make([]*File, 0, len(rows))
	for i := range rows {
		files = append(files, rows[i].toFile())
	}
	return files, nil
}

func (s *TransferStore) File(ctx context.Context, transferID, fileID string) (*File, error) {
	var row fileRow
	err := s.db.GetContext(ctx, &row,
		"SELECT "+fileColumns+" FROM transfer_files WHERE transfer_id = ? AND id = ?", transferID, fileID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFileNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to get file %s: %w", fileID, err)
	}
	return row.toFile(), nil
}

// FileByUpload finds the file owning a multipart session
func (s *TransferStore) FileByUpload(ctx context.Context, key, uploadID string) (*File, error) {
	var row fileRow
	err := s.db.GetContext(ctx, &row,
		"SELECT "+fileColumns+" FROM transfer_files WHERE key = ? AND upload_id = ?", key, uploadID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFileNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to get file by upload: %w", err)
	}
	return row.toFile(), nil
}

// CompleteFile marks a file completed. When it was the last open file of an open transfer,
// the transfer is completed in the same transaction and transferDone is true.
func (s *TransferStore) CompleteFile(ctx context.Context, f *File, etag string, at time.Time) (transferDone bool, err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"UPDATE transfer_files SET status = ?, etag = ?, completed_at = ? WHERE id = ?",
		FileCompleted, etag, at.UnixMilli(), f.ID,
	); err != nil {
		return false, fmt.Errorf("failed to complete file %s: %w", f.ID, err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE transfers SET status = ?, completed_at = ?
		WHERE id = ? AND status = ? AND NOT EXISTS (
			SELECT 1 FROM transfer_files WHERE transfer_id = ? AND status != ?
		)`,
		TransferComplete, at.UnixMilli(), f.TransferID, TransferOpen, f.TransferID, FileCompleted,
	)
	if err != nil {
		return false, fmt.Errorf("failed to complete transfer %s: %w", f.TransferID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return affected == 1, nil
}

// Close moves an open transfer to status and marks its unfinished files aborted.
// It returns false if the transfer was not open.
func (s *TransferStore) Close(ctx context.Context, transferID string, status TransferStatus) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE transfers SET status = ? WHERE id = ? AND status = ?", status, transferID, TransferOpen)
	if err != nil {
		return false, fmt.Errorf("failed to close transfer %s: %w", transferID, err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return false, err
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE transfer_files SET status = ? WHERE transfer_id = ? AND status = ?",
		FileAborted, transferID, FileUploading,
	); err != nil {
		return false, fmt.Errorf("failed to abort files of %s: %w", transferID, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return true, nil
}

// Expired returns open transfers whose expiry is at or before now
func (s *TransferStore) Expired(ctx context.Context, now time.Time, limit int) ([]*Transfer, error) {
	var rows []transferRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT "+transferColumns+" FROM transfers WHERE status = ? AND expires_at <= ? ORDER BY expires_at LIMIT ?",
		TransferOpen, now.UnixMilli(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired transfers: %w", err)
	}

	transfers := make([]*Transfer, 0, len(rows))
	for i := range rows {
		transfers = append(transfers, rows[i].toTransfer())
	}
	return transfers, nil
}

// Count returns the number of transfers with the given status
func (s *TransferStore) Count(ctx context.Context, status TransferStatus) int {
	var count int
	if err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM transfers WHERE status = ?", status); err != nil {
		return 0
	}
	return count
}

// ===================================================================================================

func toTransferRow(t *Transfer) *transferRow {
	return &transferRow{
		ID:          t.ID,
		Status:      string(t.Status),
		Recipient:   t.Recipient,
		Message:     t.Message,
		DeviceID:    t.DeviceID,
		CreatedAt:   t.CreatedAt.UnixMilli(),
		ExpiresAt:   t.ExpiresAt.UnixMilli(),
		CompletedAt: unixMilli(t.CompletedAt),
	}
}

func (r *transferRow) toTransfer() *Transfer {
	return &Transfer{
		ID:          r.ID,
		Status:      TransferStatus(r.Status),
		Recipient:   r.Recipient,
		Message:     r.Message,
		DeviceID:    r.DeviceID,
		CreatedAt:   fromMilli(r.CreatedAt),
		ExpiresAt:   fromMilli(r.ExpiresAt),
		CompletedAt: fromMilli(r.CompletedAt),
	}
}

func toFileRow(f *File, position int) *fileRow {
	return &fileRow{
		ID:          f.ID,
		TransferID:  f.TransferID,
		Position:    position,
		Filename:    f.Filename,
		Size:        f.Size,
		ContentType: f.ContentType,
		Key:         f.Key,
		UploadID:    f.UploadID,
		Status:      string(f.Status),
		ETag:        f.ETag,
		CompletedAt: unixMilli(f.CompletedAt),
	}
}

func (r *fileRow) toFile() *File {
	return &File{
		ID:          r.ID,
		TransferID:  r.TransferID,
		Filename:    r.Filename,
		Size:        r.Size,
		ContentType: r.ContentType,
		Key:         r.Key,
		UploadID:    r.UploadID,
		Status:      FileStatus(r.Status),
		ETag:        r.ETag,
		CompletedAt: fromMilli(r.CompletedAt),
	}
}

func unixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMilli(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
