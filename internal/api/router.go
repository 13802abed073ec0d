package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/limelapse/internal/api/handlers"
	"github.com/your-org/limelapse/internal/auth"
	"github.com/your-org/limelapse/internal/bus"
	"github.com/your-org/limelapse/internal/search"
	"github.com/your-org/limelapse/internal/storage"
	"github.com/your-org/limelapse/internal/video"
)

type RouterConfig struct {
	JWTSecret     string
	ImagesBucket  string
	CapabilityTTL time.Duration

	DB         *storage.PostgresStore
	MinIO      *storage.MinIOStore
	Producer   *bus.Producer
	Normalizer handlers.EventNormalizer
	Videos     *video.Service
	Search     *search.Service
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.DB, cfg.MinIO, cfg.Producer)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Bucket-notification webhook, reachable only from inside the cluster.
	eventH := handlers.NewEventHandler(cfg.Normalizer)
	r.POST("/internal/minio/events", eventH.Notify)

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.Middleware(cfg.JWTSecret))

	// Projects
	projectH := handlers.NewProjectHandler(cfg.DB, cfg.MinIO, cfg.ImagesBucket)
	v1.POST("/projects", projectH.Create)
	v1.GET("/projects", projectH.List)
	v1.GET("/projects/:id", projectH.Get)
	v1.DELETE("/projects/:id", projectH.Delete)

	// Upload and access capabilities
	uploadH := handlers.NewUploadHandler(cfg.DB, cfg.MinIO, cfg.ImagesBucket, cfg.CapabilityTTL)
	v1.POST("/uploads", uploadH.CreateUploadURL)
	v1.POST("/files/access", uploadH.CreateCapability)

	// Search
	searchH := handlers.NewSearchHandler(cfg.Search)
	v1.GET("/search", searchH.Search)
	v1.GET("/search/heatmap", searchH.Heatmap)

	// Videos
	videoH := handlers.NewVideoHandler(cfg.Videos)
	v1.POST("/videos", videoH.Create)
	v1.GET("/videos", videoH.List)
	v1.GET("/videos/:id", videoH.Get)
	v1.DELETE("/videos/:id", videoH.Delete)
	v1.POST("/videos/preview", videoH.Preview)

	return r
}
