package client

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/openmined/syftdrop/internal/client/handlers"
	"github.com/openmined/syftdrop/internal/client/middleware"
	"github.com/openmined/syftdrop/internal/version"
)

type RouteConfig struct {
	Auth middleware.TokenAuthConfig
}

func SetupRoutes(mgr handlers.TransferManager, routeConfig *RouteConfig) http.Handler {
	r := gin.New()

	rateLimiter := limiter.New(memory.NewStore(), limiter.Rate{
		Period: 1 * time.Second,
		Limit:  20,
	})

	transferH := handlers.NewTransferHandler(mgr)
	fileH := handlers.NewFileHandler(mgr)
	eventsH := handlers.NewEventsHandler(mgr)

	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS())
	r.Use(middleware.Gzip())
	r.Use(mgin.NewMiddleware(rateLimiter))

	r.GET("/", IndexHandler)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, handlers.ControlPlaneResponse{Code: handlers.CodeOk})
	})

	v1 := r.Group("/v1")
	v1.Use(middleware.TokenAuth(routeConfig.Auth))
	{
		v1.GET("/events", eventsH.Stream)

		v1Transfers := v1.Group("/transfers")
		{
			v1Transfers.GET("", transferH.List)
			v1Transfers.POST("", transferH.Create)
			v1Transfers.GET("/:id", transferH.Get)
			v1Transfers.DELETE("/:id", transferH.Cancel)
			v1Transfers.POST("/:id/pause", transferH.Pause)
			v1Transfers.POST("/:id/resume", transferH.Resume)
		}

		v1Files := v1.Group("/files")
		{
			v1Files.GET("/:id", fileH.Get)
			v1Files.DELETE("/:id", fileH.Discard)
			v1Files.POST("/:id/pause", fileH.Pause)
			v1Files.POST("/:id/resume", fileH.Resume)
			v1Files.POST("/:id/restart", fileH.Restart)
			v1Files.POST("/:id/reattach", fileH.Reattach)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, handlers.ControlPlaneError{ErrorCode: handlers.ErrCodeBadRequest, Error: "not found"})
	})

	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, handlers.ControlPlaneError{ErrorCode: handlers.ErrCodeBadRequest, Error: "method not allowed"})
	})

	return r.Handler()
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}

func IndexHandler(c *gin.Context) {
	c.JSON(http.StatusOK, version.Detailed())
}
