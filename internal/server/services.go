package server

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/openmined/syftdrop/internal/server/auth"
	"github.com/openmined/syftdrop/internal/server/blob"
	"github.com/openmined/syftdrop/internal/server/email"
	"github.com/openmined/syftdrop/internal/server/transfer"
)

type Services struct {
	Blob     blob.IBlobBackend
	Auth     *auth.AuthService
	Email    *email.EmailService
	Transfer *transfer.TransferService
}

func NewServices(config *Config, db *sqlx.DB) (*Services, error) {
	var backend blob.IBlobBackend
	if config.MemoryBlob {
		backend = blob.NewMemoryBackend(config.HTTP.PublicURL + "/_blob")
	} else {
		s3Backend, err := blob.NewS3BackendWithConfig(&config.Blob)
		if err != nil {
			return nil, fmt.Errorf("create s3 backend: %w", err)
		}
		backend = s3Backend
	}

	return newServices(config, db, backend)
}

func newServices(config *Config, db *sqlx.DB, backend blob.IBlobBackend) (*Services, error) {
	emailSvc := email.NewEmailService(&config.Email)
	authSvc := auth.NewAuthService(&config.Auth)

	transferSvc, err := transfer.NewTransferService(&config.Transfer, db, backend, authSvc, emailSvc, config.HTTP.PublicURL)
	if err != nil {
		return nil, fmt.Errorf("create transfer service: %w", err)
	}

	return &Services{
		Blob:     backend,
		Auth:     authSvc,
		Email:    emailSvc,
		Transfer: transferSvc,
	}, nil
}

func (s *Services) Start(ctx context.Context) error {
	if err := s.Transfer.Start(ctx); err != nil {
		return fmt.Errorf("start transfer service: %w", err)
	}
	return nil
}

func (s *Services) Shutdown(ctx context.Context) error {
	if err := s.Transfer.Shutdown(ctx); err != nil {
		return fmt.Errorf("stop transfer service: %w", err)
	}
	return nil
}
