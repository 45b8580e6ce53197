package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/openmined/syftdrop/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate_NormalizesAndDefaults(t *testing.T) {
	tmp := t.TempDir()
	cfg := &Config{
		ServerURL: "http://127.0.0.1:8080",
		DataDir:   tmp,
		Path:      filepath.Join(tmp, "config.json"),
	}

	require.NoError(t, cfg.Validate())
	assert.True(t, filepath.IsAbs(cfg.DataDir))
	assert.True(t, filepath.IsAbs(cfg.Path))
	assert.Equal(t, DefaultClientAddr, cfg.ClientAddr)
	assert.Equal(t, transfer.DefaultChunkSize, cfg.ChunkSize)
	assert.Equal(t, transfer.DefaultConcurrency, cfg.Concurrency)
	assert.Equal(t, transfer.DefaultRetryPolicy(), cfg.Retry)
}

func TestConfig_Validate_ErrorsOnInvalidInputs(t *testing.T) {
	tmp := t.TempDir()

	t.Run("bad server url", func(t *testing.T) {
		cfg := &Config{ServerURL: "ftp://bad.example.com", DataDir: tmp}
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "server url")
	})

	t.Run("chunk size below minimum", func(t *testing.T) {
		cfg := &Config{ServerURL: "http://127.0.0.1:8080", DataDir: tmp, ChunkSize: 1024}
		assert.Error(t, cfg.Validate())
	})

	t.Run("negative retries", func(t *testing.T) {
		cfg := &Config{ServerURL: "http://127.0.0.1:8080", DataDir: tmp, Retry: transfer.RetryPolicy{MaxRetries: -1}}
		assert.ErrorContains(t, cfg.Validate(), "retry")
	})

	t.Run("negative concurrency", func(t *testing.T) {
		cfg := &Config{ServerURL: "http://127.0.0.1:8080", DataDir: tmp, Concurrency: -1}
		assert.Error(t, cfg.Validate())
	})
}

func TestConfig_SaveAndLoad(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "nested", "config.json")

	cfg := &Config{
		ServerURL:   "https://drop.example.com",
		DataDir:     tmp,
		ClientToken: "secret",
		Concurrency: 8,
		Path:        path,
	}
	require.NoError(t, cfg.Save())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := LoadClientConfig(path)
	require.NoError(t, err)
	assert.Equal(t, path, loaded.Path)
	assert.Equal(t, "https://drop.example.com", loaded.ServerURL)
	assert.Equal(t, "secret", loaded.ClientToken)
	assert.Equal(t, 8, loaded.Concurrency)
}

func TestConfig_SaveWithoutPath(t *testing.T) {
	cfg := &Config{ServerURL: "http://127.0.0.1:8080"}
	assert.Error(t, cfg.Save())
}

func TestLoadClientConfig_Errors(t *testing.T) {
	_, err := LoadClientConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{nope"), 0o644))
	_, err = LoadClientConfig(bad)
	assert.Error(t, err)
}

func TestConfig_LogValueMasksToken(t *testing.T) {
	cfg := Config{ServerURL: "http://127.0.0.1:8080", ClientToken: "supersecrettoken"}
	assert.NotContains(t, cfg.LogValue().String(), "supersecrettoken")
}
