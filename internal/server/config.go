package server

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/openmined/syftdrop/internal/server/auth"
	"github.com/openmined/syftdrop/internal/server/blob"
	"github.com/openmined/syftdrop/internal/server/email"
	"github.com/openmined/syftdrop/internal/server/transfer"
	"github.com/openmined/syftdrop/internal/utils"
)

const (
	DefaultAddr      = "127.0.0.1:8080"
	DefaultPublicURL = "http://127.0.0.1:8080"
	DefaultCreateRPS = "30-M"
)

type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http"`
	Blob      blob.S3Config   `mapstructure:"blob"`
	Auth      auth.Config     `mapstructure:"auth"`
	Email     email.Config    `mapstructure:"email"`
	Transfer  transfer.Config `mapstructure:"transfer"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	DataDir   string          `mapstructure:"data_dir"`
	LogLevel  string          `mapstructure:"log_level"`

	// MemoryBlob keeps objects in memory instead of S3. Development only.
	MemoryBlob bool `mapstructure:"memory_blob"`
}

type HTTPConfig struct {
	Addr      string `mapstructure:"addr"`
	CertFile  string `mapstructure:"cert_file"`
	KeyFile   string `mapstructure:"key_file"`
	PublicURL string `mapstructure:"public_url"`
}

type RateLimitConfig struct {
	Create string `mapstructure:"create"`
}

func (c *Config) Validate() error {
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http: %w", err)
	}
	if !c.MemoryBlob {
		if err := c.Blob.Validate(); err != nil {
			return fmt.Errorf("blob: %w", err)
		}
	}
	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if err := c.Email.Validate(); err != nil {
		return fmt.Errorf("email: %w", err)
	}
	if err := c.Transfer.Validate(); err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	if c.DataDir == "" {
		return errors.New("data_dir is required")
	}
	return nil
}

func (c *HTTPConfig) Validate() error {
	if c.Addr == "" {
		return errors.New("addr is required")
	}
	if (c.CertFile == "") != (c.KeyFile == "") {
		return errors.New("cert_file and key_file must be set together")
	}
	if c.CertFile != "" && !utils.FileExists(c.CertFile) {
		return fmt.Errorf("cert_file %q not found", c.CertFile)
	}
	if c.KeyFile != "" && !utils.FileExists(c.KeyFile) {
		return fmt.Errorf("key_file %q not found", c.KeyFile)
	}
	if !utils.IsValidURL(c.PublicURL) {
		return fmt.Errorf("invalid public_url %q", c.PublicURL)
	}
	return nil
}

func (c *HTTPConfig) TLSEnabled() bool {
	return c.CertFile != "" && c.KeyFile != ""
}

func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "state.db")
}

func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("addr", c.HTTP.Addr),
		slog.String("public_url", c.HTTP.PublicURL),
		slog.Bool("tls", c.HTTP.TLSEnabled()),
		slog.String("data_dir", c.DataDir),
		slog.String("bucket", c.Blob.BucketName),
		slog.String("region", c.Blob.Region),
		slog.String("endpoint", c.Blob.Endpoint),
		slog.String("access_key", utils.MaskSecret(c.Blob.AccessKey)),
		slog.Bool("memory_blob", c.MemoryBlob),
		slog.Any("auth", c.Auth),
		slog.Any("email", c.Email),
		slog.Int64("max_file_size", c.Transfer.MaxFileSize),
		slog.Duration("expiry", c.Transfer.Expiry),
	)
}
