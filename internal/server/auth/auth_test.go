package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getTestAuthConfig() *Config {
	return &Config{
		TokenIssuer:       "https://drop.example.com",
		UploadTokenSecret: strings.Repeat("s", 32),
	}
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, getTestAuthConfig().Validate())

	cfg := getTestAuthConfig()
	cfg.UploadTokenSecret = ""
	assert.ErrorIs(t, cfg.Validate(), ErrMissingTokenSecret)

	cfg.UploadTokenSecret = "short"
	assert.ErrorIs(t, cfg.Validate(), ErrTokenSecretTooShort)

	cfg = getTestAuthConfig()
	cfg.TokenIssuer = "not-a-url"
	assert.ErrorContains(t, cfg.Validate(), "token_issuer")
}

func TestAuthService_UploadToken(t *testing.T) {
	svc := NewAuthService(getTestAuthConfig())
	ctx := context.Background()

	token, err := svc.IssueUploadToken("tr-1", time.Now().Add(time.Hour))
	require.NoError(t, err)

	claims, err := svc.ValidateUploadToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "tr-1", claims.Subject)
	assert.Equal(t, UploadToken, claims.Type)
	assert.Equal(t, "https://drop.example.com", claims.Issuer)

	assert.NoError(t, svc.Authorize(ctx, token, "tr-1"))
	assert.ErrorIs(t, svc.Authorize(ctx, token, "tr-2"), ErrTransferMismatch)
}

func TestAuthService_RejectsBadTokens(t *testing.T) {
	svc := NewAuthService(getTestAuthConfig())
	ctx := context.Background()

	_, err := svc.ValidateUploadToken(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidUploadToken)

	_, err = svc.ValidateUploadToken(ctx, "invalid.token.string")
	assert.ErrorIs(t, err, ErrInvalidUploadToken)

	expired, err := svc.IssueUploadToken("tr-1", time.Now().Add(-time.Minute))
	require.NoError(t, err)
	_, err = svc.ValidateUploadToken(ctx, expired)
	assert.ErrorIs(t, err, ErrInvalidUploadToken)

	other, err := NewUploadToken("tr-1", "", strings.Repeat("x", 32), time.Now().Add(time.Hour))
	require.NoError(t, err)
	_, err = svc.ValidateUploadToken(ctx, other)
	assert.ErrorIs(t, err, ErrInvalidUploadToken, "signed with another secret")

	wrongType, err := NewToken("tr-1", "", getTestAuthConfig().UploadTokenSecret, time.Now().Add(time.Hour), "access")
	require.NoError(t, err)
	_, err = svc.ValidateUploadToken(ctx, wrongType)
	assert.ErrorIs(t, err, ErrInvalidUploadToken)
}

func TestParseClaims_RejectsNoneAlg(t *testing.T) {
	claims := Claims{Type: UploadToken, RegisteredClaims: jwt.RegisteredClaims{Subject: "tr-1"}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ParseClaims(token, getTestAuthConfig().UploadTokenSecret)
	assert.Error(t, err)
}
