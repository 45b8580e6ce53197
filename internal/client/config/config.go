package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/openmined/syftdrop/internal/transfer"
	"github.com/openmined/syftdrop/internal/utils"
)

var (
	home, _            = os.UserHomeDir()
	DefaultConfigPath  = filepath.Join(home, ".syftdrop", "config.json")
	DefaultDataDir     = filepath.Join(home, ".syftdrop")
	DefaultServerURL   = "http://127.0.0.1:8080"
	DefaultClientAddr  = "localhost:7939"
	DefaultLogFilePath = filepath.Join(DefaultDataDir, "logs", "syftdrop.log")
)

type Config struct {
	ServerURL   string `json:"server_url" mapstructure:"server_url"`
	DataDir     string `json:"data_dir" mapstructure:"data_dir"`
	ClientAddr  string `json:"client_addr,omitempty" mapstructure:"client_addr"`
	ClientToken string `json:"client_token,omitempty" mapstructure:"client_token"`
	ChunkSize   int64  `json:"chunk_size,omitempty" mapstructure:"chunk_size"`
	Concurrency int    `json:"concurrency,omitempty" mapstructure:"concurrency"`

	Retry transfer.RetryPolicy `json:"retry" mapstructure:"retry"`

	Path string `json:"-" mapstructure:"-"`
}

// Validate checks the config and fills in defaults. Paths are made absolute.
func (c *Config) Validate() error {
	var err error

	if !utils.IsValidURL(c.ServerURL) {
		return fmt.Errorf("invalid server url %q", c.ServerURL)
	}

	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}
	if c.DataDir, err = utils.ResolvePath(c.DataDir); err != nil {
		return fmt.Errorf("data dir: %w", err)
	}

	if c.Path != "" {
		if c.Path, err = utils.ResolvePath(c.Path); err != nil {
			return fmt.Errorf("config path: %w", err)
		}
	}

	if c.ClientAddr == "" {
		c.ClientAddr = DefaultClientAddr
	}

	if c.ChunkSize == 0 {
		c.ChunkSize = transfer.DefaultChunkSize
	} else if c.ChunkSize < transfer.MinChunkSize {
		return fmt.Errorf("chunk size must be at least %d bytes", transfer.MinChunkSize)
	}

	if c.Concurrency == 0 {
		c.Concurrency = transfer.DefaultConcurrency
	} else if c.Concurrency < 0 {
		return errors.New("concurrency must be positive")
	}

	if c.Retry == (transfer.RetryPolicy{}) {
		c.Retry = transfer.DefaultRetryPolicy()
	} else if c.Retry.MaxRetries < 0 || c.Retry.BaseDelay < 0 || c.Retry.MaxDelay < 0 {
		return errors.New("retry settings must not be negative")
	}

	return nil
}

func (c *Config) Save() error {
	if c.Path == "" {
		return errors.New("config path is not set")
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if err := utils.EnsureParent(c.Path); err != nil {
		return err
	}
	return utils.WriteFileAtomic(c.Path, data, 0o600)
}

func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("server_url", c.ServerURL),
		slog.String("data_dir", c.DataDir),
		slog.String("client_addr", c.ClientAddr),
		slog.String("client_token", utils.MaskSecret(c.ClientToken)),
		slog.Int64("chunk_size", c.ChunkSize),
		slog.Int("concurrency", c.Concurrency),
		slog.Int("retry_max_retries", c.Retry.MaxRetries),
		slog.Duration("retry_base_delay", c.Retry.BaseDelay),
	)
}

func LoadClientConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Path = path
	return &cfg, nil
}
