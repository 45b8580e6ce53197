package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/openmined/syftdrop/internal/client/config"
	"github.com/openmined/syftdrop/internal/transfer"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "syftdrop-test"}
	addPersistentFlags(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("SYFTDROP_CONFIG_PATH", filepath.Join(t.TempDir(), "missing.json"))

	cfg, err := loadConfig(newTestCmd(t))
	require.NoError(t, err)

	assert.Equal(t, config.DefaultServerURL, cfg.ServerURL)
	assert.Equal(t, config.DefaultDataDir, cfg.DataDir)
	assert.Equal(t, config.DefaultClientAddr, cfg.ClientAddr)
	assert.Equal(t, transfer.DefaultChunkSize, cfg.ChunkSize)
	assert.Equal(t, transfer.DefaultConcurrency, cfg.Concurrency)
	assert.Equal(t, transfer.DefaultRetryPolicy(), cfg.Retry)
}

func TestLoadConfigEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SYFTDROP_CONFIG_PATH", filepath.Join(dir, "config.test.json"))
	t.Setenv("SYFTDROP_SERVER_URL", "https://drop.example.org")
	t.Setenv("SYFTDROP_DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("SYFTDROP_CLIENT_TOKEN", "secret-token")
	t.Setenv("SYFTDROP_CONCURRENCY", "8")
	t.Setenv("SYFTDROP_RETRY_MAX_RETRIES", "6")

	cfg, err := loadConfig(newTestCmd(t))
	require.NoError(t, err)

	assert.Equal(t, "https://drop.example.org", cfg.ServerURL)
	assert.Equal(t, filepath.Join(dir, "data"), cfg.DataDir)
	assert.Equal(t, filepath.Join(dir, "config.test.json"), cfg.Path)
	assert.Equal(t, "secret-token", cfg.ClientToken)
	assert.Equal(t, 8, cfg.Concurrency)
	assert.Equal(t, 6, cfg.Retry.MaxRetries)
	assert.Equal(t, transfer.DefaultBaseDelay, cfg.Retry.BaseDelay)
}

func TestLoadConfigJSON(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "dummy.json")
	dummyConfig := `
{
	"server_url": "https://json.example.org",
	"data_dir": "` + filepath.ToSlash(filepath.Join(dir, "json-data")) + `",
	"client_addr": "localhost:9000",
	"chunk_size": 10485760,
	"retry": {"max_retries": 1, "base_delay": "2s", "max_delay": "30s"}
}
`
	require.NoError(t, os.WriteFile(configFile, []byte(dummyConfig), 0o644))

	cfg, err := loadConfig(newTestCmd(t, "--config", configFile))
	require.NoError(t, err)

	assert.Equal(t, configFile, cfg.Path)
	assert.Equal(t, "https://json.example.org", cfg.ServerURL)
	assert.Equal(t, filepath.Join(dir, "json-data"), cfg.DataDir)
	assert.Equal(t, "localhost:9000", cfg.ClientAddr)
	assert.Equal(t, int64(10*1024*1024), cfg.ChunkSize)
	assert.Equal(t, transfer.RetryPolicy{MaxRetries: 1, BaseDelay: 2 * time.Second, MaxDelay: 30 * time.Second}, cfg.Retry)
}

func TestLoadConfigFlagsWin(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(configFile, []byte(`{"server_url": "https://file.example.org"}`), 0o644))
	t.Setenv("SYFTDROP_SERVER_URL", "https://env.example.org")

	cfg, err := loadConfig(newTestCmd(t,
		"--config", configFile,
		"--server", "https://flag.example.org",
		"--data-dir", filepath.Join(dir, "flag-data"),
	))
	require.NoError(t, err)

	assert.Equal(t, "https://flag.example.org", cfg.ServerURL)
	assert.Equal(t, filepath.Join(dir, "flag-data"), cfg.DataDir)
}

func TestLoadConfigInvalid(t *testing.T) {
	dir := t.TempDir()

	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte(`{"server_url": `), 0o644))
	_, err := loadConfig(newTestCmd(t, "--config", broken))
	assert.Error(t, err)

	small := filepath.Join(dir, "small.json")
	require.NoError(t, os.WriteFile(small, []byte(`{"chunk_size": 1024}`), 0o644))
	_, err = loadConfig(newTestCmd(t, "--config", small))
	assert.ErrorContains(t, err, "chunk size")

	_, err = loadConfig(newTestCmd(t, "--config", filepath.Join(dir, "none.json"), "--server", "not a url"))
	assert.ErrorContains(t, err, "invalid server url")
}
