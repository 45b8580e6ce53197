package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func NewUploadToken(transferID, issuer, jwtSecret string, expiresAt time.Time) (string, error) {
	return NewToken(transferID, issuer, jwtSecret, expiresAt, UploadToken)
}

func NewToken(subject, issuer, jwtSecret string, expiresAt time.Time, tokenType AuthTokenType) (string, error) {
	var expiryTime *jwt.NumericDate
	if !expiresAt.IsZero() {
		expiryTime = jwt.NewNumericDate(expiresAt)
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   subject,
			Issuer:    issuer,
			ExpiresAt: expiryTime,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Type: tokenType,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(jwtSecret))
}
