package middlewares

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS allows browser uploads from any origin. Credentials are never sent, the upload token travels in a header.
func CORS() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "Content-Length", "X-Syftdrop-Version", "X-Syftdrop-Device-Id"},
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		ExposeHeaders:    []string{"ETag"},
		AllowCredentials: false,
	})
}
