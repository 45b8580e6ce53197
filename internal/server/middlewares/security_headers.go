package middlewares

import (
	"github.com/gin-gonic/gin"
)

// DownloadHeaders keeps download links out of referrers and caches
func DownloadHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}
