package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ohong/poof/internal/config"
	"github.com/ohong/poof/internal/middleware"
	"github.com/redis/go-redis/v9"
)

// multipartMemory bounds how much of a multipart body is kept in memory
// before spilling to temp files.
const multipartMemory = 32 << 20

// RouterDeps is everything NewRouter wires into the HTTP surface.
type RouterDeps struct {
	Config  *config.Config
	Redis   *redis.Client
	Logger  *slog.Logger
	Auth    middleware.TokenValidator
	Catalog *CatalogHandler
	// FilesRoot, when set, is served under /files.
	FilesRoot string
}

func NewRouter(deps RouterDeps) *gin.Engine {
	cfg := deps.Config
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.MaxMultipartMemory = multipartMemory
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.CORS(cfg))
	router.Use(middleware.RateLimiter(deps.Redis, cfg))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	if deps.FilesRoot != "" {
		router.Static("/files", deps.FilesRoot)
	}

	api := router.Group("/api/v1")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "healthy"})
		})

		// CORS preflight
		api.OPTIONS("/*path", func(c *gin.Context) {
			c.Status(http.StatusNoContent)
		})

		authed := api.Group("")
		authed.Use(middleware.Auth(deps.Auth))
		authed.Use(middleware.UploadRateLimit(deps.Redis, cfg))
		{
			authed.POST("/upload", deps.Catalog.UploadImages)
			authed.POST("/process", deps.Catalog.ProcessUploads)
			authed.GET("/objects", deps.Catalog.GetActive)
			authed.GET("/objects/archive", deps.Catalog.GetArchive)
			authed.PATCH("/objects/:id", deps.Catalog.UpdateStatus)
		}
	}

	return router
}
