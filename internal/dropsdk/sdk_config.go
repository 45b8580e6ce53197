package dropsdk

import (
	"github.com/openmined/syftdrop/internal/utils"
)

const (
	DefaultBaseURL = "https://drop.syftbox.net"
)

// DropSDKConfig is the configuration for the DropSDK
type DropSDKConfig struct {
	BaseURL string // BaseURL is required
	Debug   bool   // Debug dumps requests and responses
}

func (c *DropSDKConfig) Validate() error {
	if c.BaseURL == "" {
		return ErrNoServerURL
	}

	if !utils.IsValidURL(c.BaseURL) {
		return ErrInvalidServerURL
	}

	return nil
}
