package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/openmined/syftdrop/internal/server/blob"
	"github.com/openmined/syftdrop/internal/server/handlers/api"
	"github.com/openmined/syftdrop/internal/server/handlers/transfer"
	"github.com/openmined/syftdrop/internal/server/middlewares"
	"github.com/openmined/syftdrop/internal/utils"
	"github.com/openmined/syftdrop/internal/version"
)

func SetupRoutes(config *Config, svc *Services) http.Handler {
	r := gin.New()

	transferH := transfer.New(svc.Transfer)

	r.Use(middlewares.Logger())
	r.Use(gin.Recovery())
	r.Use(middlewares.GZIP())
	r.Use(middlewares.CORS())
	if config.HTTP.TLSEnabled() {
		r.Use(middlewares.HSTS())
	}

	r.GET("/", IndexHandler)
	r.GET("/healthz", HealthHandler)

	if mem, ok := svc.Blob.(*blob.MemoryBackend); ok {
		r.GET("/_blob/*key", MemoryBlobHandler(mem))
	}

	d := r.Group("/d")
	d.Use(middlewares.DownloadHeaders())
	{
		d.GET("/:transferId", transferH.DownloadList)
		d.GET("/:transferId/:fileId", transferH.Download)
	}

	createLimit := config.RateLimit.Create
	if createLimit == "" {
		createLimit = DefaultCreateRPS
	}

	v1 := r.Group("/api/v1")
	{
		v1.POST("/transfers", middlewares.RateLimiter(createLimit), transferH.Create)
		v1.GET("/transfers/:transferId", transferH.Get)
		v1.GET("/transfers/:transferId/validate", transferH.Validate)

		upload := v1.Group("/transfers")
		upload.Use(middlewares.UploadAuth(svc.Auth))
		upload.PUT("/parts", transferH.UploadPart)
		upload.POST("/complete", transferH.Complete)
		upload.POST("/abort", transferH.Abort)
	}

	r.NoRoute(func(c *gin.Context) {
		c.PureJSON(http.StatusNotFound, api.DropAPIError{
			Code:    api.CodeNotFound,
			Message: "not found",
		})
	})

	r.HandleMethodNotAllowed = true
	r.NoMethod(func(c *gin.Context) {
		c.PureJSON(http.StatusMethodNotAllowed, api.DropAPIError{
			Code:    api.CodeInvalidRequest,
			Message: "method not allowed",
		})
	})

	return r.Handler()
}

func IndexHandler(ctx *gin.Context) {
	ctx.String(http.StatusOK, version.DetailedWithApp())
}

func HealthHandler(ctx *gin.Context) {
	ctx.PureJSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// MemoryBlobHandler serves objects of the in-memory backend at its presigned urls
func MemoryBlobHandler(mem *blob.MemoryBackend) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		key := strings.TrimPrefix(ctx.Param("key"), "/")
		data, ok := mem.Object(key)
		if !ok {
			ctx.PureJSON(http.StatusNotFound, api.DropAPIError{Code: api.CodeBlobNotFound, Message: "object not found"})
			return
		}
		ctx.Data(http.StatusOK, utils.DetectContentType(key), data)
	}
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}
