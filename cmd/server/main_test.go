package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/openmined/syftdrop/internal/server"
	"github.com/openmined/syftdrop/internal/server/blob"
	"github.com/openmined/syftdrop/internal/server/transfer"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	addFlags(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestLoadConfigDefaults(t *testing.T) {
	cmd := newTestCmd(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := loadConfig(cmd)
	require.NoError(t, err)

	assert.Equal(t, server.DefaultAddr, cfg.HTTP.Addr)
	assert.Equal(t, server.DefaultPublicURL, cfg.HTTP.PublicURL)
	assert.Equal(t, transfer.DefaultConfig(), cfg.Transfer)
	assert.Equal(t, server.DefaultCreateRPS, cfg.RateLimit.Create)
	assert.Equal(t, blob.DefaultDownloadExpiry, cfg.Blob.DownloadExpiry)
	assert.False(t, cfg.MemoryBlob)
	assert.True(t, filepath.IsAbs(cfg.DataDir))
}

func TestLoadConfigEnv(t *testing.T) {
	t.Setenv("SYFTDROP_HTTP_ADDR", "0.0.0.0:9090")
	t.Setenv("SYFTDROP_HTTP_PUBLIC_URL", "https://drop.example.com")
	t.Setenv("SYFTDROP_BLOB_BUCKET_NAME", "env-bucket")
	t.Setenv("SYFTDROP_BLOB_REGION", "eu-west-2")
	t.Setenv("SYFTDROP_AUTH_UPLOAD_TOKEN_SECRET", "env-secret")
	t.Setenv("SYFTDROP_TRANSFER_MAX_FILE_SIZE", "2048")
	t.Setenv("SYFTDROP_TRANSFER_EXPIRY", "48h")
	t.Setenv("SYFTDROP_MEMORY_BLOB", "true")

	cmd := newTestCmd(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	cfg, err := loadConfig(cmd)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.HTTP.Addr)
	assert.Equal(t, "https://drop.example.com", cfg.HTTP.PublicURL)
	assert.Equal(t, "env-bucket", cfg.Blob.BucketName)
	assert.Equal(t, "eu-west-2", cfg.Blob.Region)
	assert.Equal(t, "env-secret", cfg.Auth.UploadTokenSecret)
	assert.Equal(t, int64(2048), cfg.Transfer.MaxFileSize)
	assert.Equal(t, 48*time.Hour, cfg.Transfer.Expiry)
	assert.True(t, cfg.MemoryBlob)
}

func TestLoadConfigYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlContent := `
http:
  addr: "0.0.0.0:8443"
  public_url: "https://drop.example.com"
blob:
  bucket_name: "yaml-bucket"
  region: "us-west-2"
  access_key: "yaml-access"
  secret_key: "yaml-secret"
auth:
  token_issuer: "drop.example.com"
  upload_token_secret: "yaml-token-secret"
email:
  enabled: true
  sendgrid_api_key: "SG.key"
  from_email: "noreply@example.com"
transfer:
  max_files: 10
  reap_interval: 1m
  download_ttl: 0s
`
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0o644))

	cmd := newTestCmd(t, "--config", path)
	cfg, err := loadConfig(cmd)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8443", cfg.HTTP.Addr)
	assert.Equal(t, "yaml-bucket", cfg.Blob.BucketName)
	assert.Equal(t, "us-west-2", cfg.Blob.Region)
	assert.Equal(t, "yaml-access", cfg.Blob.AccessKey)
	assert.Equal(t, "drop.example.com", cfg.Auth.TokenIssuer)
	assert.Equal(t, "yaml-token-secret", cfg.Auth.UploadTokenSecret)
	assert.True(t, cfg.Email.Enabled)
	assert.Equal(t, "noreply@example.com", cfg.Email.FromEmail)
	assert.Equal(t, 10, cfg.Transfer.MaxFiles)
	assert.Equal(t, time.Minute, cfg.Transfer.ReapInterval)
	assert.Zero(t, cfg.Transfer.DownloadTTL)
	// untouched keys keep their defaults
	assert.Equal(t, int64(transfer.DefaultMaxFileSize), cfg.Transfer.MaxFileSize)
}

func TestLoadConfigJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	jsonContent := `{
		"http": {"addr": "127.0.0.1:7000"},
		"auth": {"upload_token_secret": "json-secret"},
		"rate_limit": {"create": "5-S"},
		"log_level": "debug"
	}`
	require.NoError(t, os.WriteFile(path, []byte(jsonContent), 0o644))

	cmd := newTestCmd(t, "--config", path)
	cfg, err := loadConfig(cmd)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:7000", cfg.HTTP.Addr)
	assert.Equal(t, "json-secret", cfg.Auth.UploadTokenSecret)
	assert.Equal(t, "5-S", cfg.RateLimit.Create)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfigFlagsWin(t *testing.T) {
	t.Setenv("SYFTDROP_HTTP_ADDR", "0.0.0.0:9090")
	dataDir := t.TempDir()

	cmd := newTestCmd(t,
		"--config", filepath.Join(t.TempDir(), "missing.yaml"),
		"--bind", "127.0.0.1:6000",
		"--data-dir", dataDir,
		"--memory-blob",
	)
	cfg, err := loadConfig(cmd)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:6000", cfg.HTTP.Addr)
	assert.Equal(t, dataDir, cfg.DataDir)
	assert.True(t, cfg.MemoryBlob)
}

func TestLoadConfigInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http: [unclosed"), 0o644))

	_, err := loadConfig(newTestCmd(t, "--config", path))
	assert.Error(t, err)
}
