package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/docfoundry/docfoundry/internal/docs"
	"github.com/docfoundry/docfoundry/internal/lessons"
	"github.com/docfoundry/docfoundry/internal/storage"
	"github.com/docfoundry/docfoundry/pkg/config"
	"github.com/docfoundry/docfoundry/pkg/health"
	"github.com/docfoundry/docfoundry/pkg/logging"
	"github.com/docfoundry/docfoundry/pkg/metrics"
	"github.com/docfoundry/docfoundry/pkg/resilience"
	"github.com/docfoundry/docfoundry/pkg/tracing"
)

// Dependencies holds everything the router needs. Redis, metrics and tracing
// are optional; the router degrades to a plainer middleware chain without them.
type Dependencies struct {
	Config      *config.Config
	Logger      *logging.Logger
	Health      *health.Service
	Metrics     *metrics.Metrics
	Tracing     *tracing.TracingService
	Redis       *storage.RedisClient
	Docs        *docs.Service
	Lessons     *lessons.Store
	Coordinator *resilience.Coordinator
}

// NewRouter creates the HTTP router with all middleware and routes configured
func NewRouter(deps Dependencies) *gin.Engine {
	if deps.Config != nil && deps.Config.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	if deps.Logger == nil {
		deps.Logger = logging.GetLogger()
	}

	router := gin.New()

	router.Use(RequestIDMiddleware())
	router.Use(LoggingMiddleware(deps.Logger))
	router.Use(ErrorHandlingMiddleware(deps.Logger))
	router.Use(CORSMiddleware())
	router.Use(SecurityHeadersMiddleware())
	if deps.Tracing != nil {
		router.Use(deps.Tracing.TracingMiddleware())
	}
	if deps.Metrics != nil {
		router.Use(deps.Metrics.PrometheusMiddleware())
	}
	router.Use(RateLimitMiddleware(deps.Redis, 100, time.Minute))

	// Health and metrics endpoints sit outside the versioned API
	if deps.Health != nil {
		router.GET("/health", deps.Health.Handler())
		router.GET("/health/live", deps.Health.LivenessHandler())
		router.GET("/health/ready", deps.Health.ReadinessHandler())
	}
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	v1 := router.Group("/api/v1")
	{
		if deps.Docs != nil {
			docsHandler := NewDocsHandler(deps.Docs)
			v1.GET("/docs/:id", docsHandler.GetDocument)
			v1.GET("/search", docsHandler.Search)
		}

		if deps.Lessons != nil {
			lessonsHandler := NewLessonsHandler(deps.Lessons)
			v1.POST("/lessons", lessonsHandler.Create)
			v1.GET("/lessons", lessonsHandler.List)
			v1.GET("/lessons/:id", lessonsHandler.Get)
		}

		if deps.Coordinator != nil {
			resilienceHandler := NewResilienceHandler(deps.Coordinator)
			res := v1.Group("/resilience")
			{
				res.GET("/stats", resilienceHandler.Stats)
				res.POST("/stats/reset", resilienceHandler.ResetStats)
				res.GET("/breakers", resilienceHandler.Breakers)
				res.GET("/services", resilienceHandler.ServiceHealth)
				res.POST("/health-check", resilienceHandler.RunHealthCheck)
				res.POST("/backups", resilienceHandler.RunBackups)
			}
		}
	}

	router.NoRoute(func(c *gin.Context) {
		NotFoundResponse(c, "endpoint not found")
	})

	return router
}
