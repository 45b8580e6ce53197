package blob

import (
	"fmt"
	"time"

	"github.com/openmined/syftdrop/internal/utils"
)

const DefaultDownloadExpiry = 15 * time.Minute

type S3Config struct {
	BucketName     string        `mapstructure:"bucket_name"`
	Region         string        `mapstructure:"region"`
	AccessKey      string        `mapstructure:"access_key"`
	SecretKey      string        `mapstructure:"secret_key"`
	Endpoint       string        `mapstructure:"endpoint"`
	UseAccelerate  bool          `mapstructure:"use_accelerate"`
	DownloadExpiry time.Duration `mapstructure:"download_expiry"`
}

func (c *S3Config) Validate() error {
	if c.BucketName == "" {
		return fmt.Errorf("bucket_name required")
	}
	if c.Region == "" {
		return fmt.Errorf("region required")
	}
	if c.AccessKey == "" {
		return fmt.Errorf("access_key required")
	}
	if c.SecretKey == "" {
		return fmt.Errorf("secret_key required")
	}
	if c.Endpoint != "" && !utils.IsValidURL(c.Endpoint) {
		return fmt.Errorf("invalid endpoint URL %q", c.Endpoint)
	}
	if c.DownloadExpiry < 0 {
		return fmt.Errorf("download_expiry must not be negative")
	}
	return nil
}

func (c *S3Config) downloadExpiry() time.Duration {
	if c.DownloadExpiry <= 0 {
		return DefaultDownloadExpiry
	}
	return c.DownloadExpiry
}
