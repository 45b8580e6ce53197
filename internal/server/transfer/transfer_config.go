package transfer

import (
	"fmt"
	"time"
)

const (
	GiB = 1 << 30

	DefaultMaxFileSize     = 15 * GiB
	DefaultMaxFiles        = 100
	DefaultExpiry          = 7 * 24 * time.Hour
	DefaultReapInterval    = 10 * time.Minute
	DefaultReapConcurrency = 8
	DefaultDownloadTTL     = 5 * time.Minute
	DefaultDownloadCache   = 1024
)

type Config struct {
	MaxFileSize     int64         `mapstructure:"max_file_size"`
	MaxFiles        int           `mapstructure:"max_files"`
	Expiry          time.Duration `mapstructure:"expiry"`
	ReapInterval    time.Duration `mapstructure:"reap_interval"`
	ReapConcurrency int           `mapstructure:"reap_concurrency"`

	// presigned download urls are reused for DownloadTTL. Keep it below the blob download expiry.
	DownloadTTL   time.Duration `mapstructure:"download_ttl"`
	DownloadCache int           `mapstructure:"download_cache"`
}

func DefaultConfig() Config {
	return Config{
		MaxFileSize:     DefaultMaxFileSize,
		MaxFiles:        DefaultMaxFiles,
		Expiry:          DefaultExpiry,
		ReapInterval:    DefaultReapInterval,
		ReapConcurrency: DefaultReapConcurrency,
		DownloadTTL:     DefaultDownloadTTL,
		DownloadCache:   DefaultDownloadCache,
	}
}

func (c *Config) Validate() error {
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("max_file_size must be positive")
	}
	if c.MaxFiles <= 0 {
		return fmt.Errorf("max_files must be positive")
	}
	if c.Expiry < time.Minute {
		return fmt.Errorf("expiry must be at least 1m, got %s", c.Expiry)
	}
	if c.ReapInterval <= 0 {
		return fmt.Errorf("reap_interval must be positive")
	}
	if c.ReapConcurrency <= 0 {
		return fmt.Errorf("reap_concurrency must be positive")
	}
	if c.DownloadTTL < 0 || c.DownloadCache < 0 {
		return fmt.Errorf("download_ttl and download_cache must not be negative")
	}
	return nil
}
