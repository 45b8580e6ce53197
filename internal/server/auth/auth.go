package auth

import (
	"context"
	"fmt"
	"time"
)

// AuthService issues and checks the bearer tokens that authorize part uploads.
// A token is bound to one transfer and expires with it.
type AuthService struct {
	config *Config
}

func NewAuthService(config *Config) *AuthService {
	return &AuthService{config: config}
}

func (s *AuthService) IssueUploadToken(transferID string, expiresAt time.Time) (string, error) {
	token, err := NewUploadToken(transferID, s.config.TokenIssuer, s.config.UploadTokenSecret, expiresAt)
	if err != nil {
		return "", fmt.Errorf("issue upload token: %w", err)
	}
	return token, nil
}

func (s *AuthService) ValidateUploadToken(ctx context.Context, uploadToken string) (*Claims, error) {
	if uploadToken == "" {
		return nil, ErrInvalidUploadToken
	}

	claims, err := ParseClaims(uploadToken, s.config.UploadTokenSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidUploadToken, err)
	}

	if claims.Type != UploadToken {
		return nil, fmt.Errorf("%w: wrong token type got %q", ErrInvalidUploadToken, claims.Type)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: no transfer", ErrInvalidUploadToken)
	}

	return claims, nil
}

// Authorize checks that uploadToken is valid for transferID
func (s *AuthService) Authorize(ctx context.Context, uploadToken, transferID string) error {
	claims, err := s.ValidateUploadToken(ctx, uploadToken)
	if err != nil {
		return err
	}
	if claims.Subject != transferID {
		return ErrTransferMismatch
	}
	return nil
}
