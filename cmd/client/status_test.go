package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/openmined/syftdrop/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func testSnapshot(id string, status transfer.Status) *transfer.Snapshot {
	size := int64(12 * 1024 * 1024)
	return &transfer.Snapshot{
		ID:        id,
		Name:      "video.mp4",
		Size:      size,
		ChunkSize: transfer.DefaultChunkSize,
		PartCount: transfer.PartCount(size, transfer.DefaultChunkSize),
		Session: transfer.Session{
			TransferID: "tr-1",
			FileID:     "f-1",
			UploadID:   "up-1",
			Key:        "tr-1/video.mp4",
			ExpiresAt:  time.Now().Add(time.Hour),
		},
		Status:    status,
		Parts:     []transfer.UploadPart{{PartNumber: 1, ETag: "etag-1"}},
		CreatedAt: time.Now().Add(-time.Minute),
		UpdatedAt: time.Now(),
	}
}

func TestNewStatusEntry_ReportsRestoredStatus(t *testing.T) {
	e := newStatusEntry(testSnapshot("0d5cb5e1-aaaa", transfer.StatusUploading))

	assert.Equal(t, transfer.StatusPaused, e.Status, "an upload that was cut off shows as paused")
	assert.Equal(t, 1, e.Parts)
	assert.Equal(t, 3, e.PartCount)
	assert.Equal(t, "tr-1", e.TransferID)
	require.NotNil(t, e.ExpiresAt)
	assert.InDelta(t, 41.67, e.Progress, 0.01)
}

func TestWriteStatus_Formats(t *testing.T) {
	entries := []statusEntry{
		newStatusEntry(testSnapshot("0d5cb5e1-aaaa", transfer.StatusPaused)),
		newStatusEntry(testSnapshot("7f00aa12-bbbb", transfer.StatusError)),
	}

	t.Run("json", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, writeStatus(&out, "json", entries))

		var got []statusEntry
		require.NoError(t, json.Unmarshal(out.Bytes(), &got))
		require.Len(t, got, 2)
		assert.Equal(t, "0d5cb5e1-aaaa", got[0].ID)
		assert.Equal(t, transfer.StatusError, got[1].Status)
	})

	t.Run("yaml", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, writeStatus(&out, "yaml", entries))

		var got []map[string]any
		require.NoError(t, yaml.Unmarshal(out.Bytes(), &got))
		require.Len(t, got, 2)
		assert.Equal(t, "video.mp4", got[0]["name"])
		assert.Equal(t, "paused", got[0]["status"])
	})

	t.Run("table", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, writeStatus(&out, "table", entries))

		text := stripANSI(out.String())
		assert.Contains(t, text, "0d5cb5e1")
		assert.Contains(t, text, "video.mp4")
		assert.Contains(t, text, "12 MiB")
		assert.Contains(t, text, "1/3")
	})

	t.Run("table empty", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, writeStatus(&out, "table", nil))
		assert.Equal(t, "No unfinished uploads\n", out.String())
	})
}

func TestStatusCommand(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SYFTDROP_CONFIG_PATH", filepath.Join(dir, "config.json"))

	store, err := transfer.NewFileSnapshotStore(filepath.Join(dir, "data", "snapshots"))
	require.NoError(t, err)
	require.NoError(t, store.Save(testSnapshot("0d5cb5e1-aaaa", transfer.StatusPaused)))

	out, code := runCLI(t, "status", "--data-dir", filepath.Join(dir, "data"), "-o", "json")
	require.Equal(t, 0, code, out)

	var got []statusEntry
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "video.mp4", got[0].Name)

	out, code = runCLI(t, "status", "--data-dir", filepath.Join(dir, "data"), "-o", "xml")
	assert.Equal(t, 1, code)
	assert.True(t, strings.Contains(out, "unknown output format"), out)
}
