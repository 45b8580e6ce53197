package email

import (
	"fmt"
	"log/slog"

	"github.com/openmined/syftdrop/internal/utils"
)

const DefaultFromName = "SyftDrop"

type Config struct {
	Enabled        bool   `mapstructure:"enabled"`
	SendgridAPIKey string `mapstructure:"sendgrid_api_key"`
	FromEmail      string `mapstructure:"from_email"`
	FromName       string `mapstructure:"from_name"`
}

func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("enabled", c.Enabled),
		slog.String("sendgrid_api_key", utils.MaskSecret(c.SendgridAPIKey)),
		slog.String("from_email", c.FromEmail),
	)
}

func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.SendgridAPIKey == "" {
		return fmt.Errorf("sendgrid_api_key is required")
	}
	if err := utils.ValidateEmail(c.FromEmail); err != nil {
		return fmt.Errorf("from_email: %w", err)
	}
	return nil
}
