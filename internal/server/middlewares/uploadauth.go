package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/openmined/syftdrop/internal/server/auth"
	"github.com/openmined/syftdrop/internal/server/handlers/api"
)

const (
	bearerPrefix = "Bearer "
	authHeader   = "Authorization"

	// TransferContextKey holds the transfer id the upload token was issued for
	TransferContextKey = "transferId"
)

// UploadAuth validates the per-transfer upload token and stores its transfer id in the context
func UploadAuth(authService *auth.AuthService) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		authHeaderValue := ctx.GetHeader(authHeader)
		if authHeaderValue == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, api.DropAPIError{
				Code:    api.CodeAuthInvalidCredentials,
				Message: "Authorization header is missing",
			})
			return
		}

		if !strings.HasPrefix(authHeaderValue, bearerPrefix) {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, api.DropAPIError{
				Code:    api.CodeAuthInvalidCredentials,
				Message: "Authorization header format must be Bearer {token}",
			})
			return
		}

		tokenString := strings.TrimPrefix(authHeaderValue, bearerPrefix)
		claims, err := authService.ValidateUploadToken(ctx, tokenString)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, api.DropAPIError{
				Code:    api.CodeAuthInvalidCredentials,
				Message: err.Error(),
			})
			return
		}

		ctx.Set(TransferContextKey, claims.Subject)
		ctx.Next()
	}
}
