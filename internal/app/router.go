package app

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/ontomap/sssom-curator/internal/http/handlers"
	"github.com/ontomap/sssom-curator/internal/http/middleware"
	"github.com/ontomap/sssom-curator/internal/platform/logger"
)

func wireRouter(
	log *logger.Logger,
	cfg Config,
	curationHandler *handlers.CurationHandler,
	healthHandler *handlers.HealthHandler,
) *gin.Engine {
	if cfg.LogMode == "prod" || cfg.LogMode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.CORS())
	router.Use(otelgin.Middleware("sssom-curator"))

	router.GET("/healthz", healthHandler.HealthCheck)

	api := router.Group("/api")
	{
		api.GET("/mappings", curationHandler.List)
		api.GET("/mappings/count", curationHandler.Count)
		api.GET("/summary", curationHandler.Summary)
		api.POST("/mappings/:record/mark", curationHandler.Mark)
		api.POST("/persist", curationHandler.Persist)
	}
	return router
}
