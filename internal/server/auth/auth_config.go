package auth

import (
	"fmt"
	"log/slog"

	"github.com/openmined/syftdrop/internal/utils"
)

const minSecretLength = 32

type Config struct {
	TokenIssuer       string `mapstructure:"token_issuer"`
	UploadTokenSecret string `mapstructure:"upload_token_secret"`
}

func (c *Config) Validate() error {
	if c.TokenIssuer != "" && !utils.IsValidURL(c.TokenIssuer) {
		return fmt.Errorf("auth: invalid token_issuer %q", c.TokenIssuer)
	}
	if c.UploadTokenSecret == "" {
		return ErrMissingTokenSecret
	}
	if len(c.UploadTokenSecret) < minSecretLength {
		return ErrTokenSecretTooShort
	}
	return nil
}

func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("token_issuer", c.TokenIssuer),
		slog.String("upload_token_secret", utils.MaskSecret(c.UploadTokenSecret)),
	)
}
