// internal/routes/routes.go
package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"tachymeter-service/internal/config"
	"tachymeter-service/internal/database"
	"tachymeter-service/internal/handler"
	"tachymeter-service/internal/middleware"
	"tachymeter-service/internal/service"
	"tachymeter-service/internal/utils"
)

// Router holds all dependencies for routing
type Router struct {
	config             *config.Config
	logger             *zap.Logger
	db                 *database.DB
	eventBus           *handler.EventBus
	instrumentService  *service.InstrumentService
	measurementService *service.MeasurementService
	discoveryService   *service.DiscoveryService
}

// NewRouter creates a new router instance. db may be nil when runs are kept
// in memory.
func NewRouter(
	config *config.Config,
	logger *zap.Logger,
	db *database.DB,
	eventBus *handler.EventBus,
	instrumentService *service.InstrumentService,
	measurementService *service.MeasurementService,
	discoveryService *service.DiscoveryService,
) *Router {
	return &Router{
		config:             config,
		logger:             logger,
		db:                 db,
		eventBus:           eventBus,
		instrumentService:  instrumentService,
		measurementService: measurementService,
		discoveryService:   discoveryService,
	}
}

// SetupRouter creates and configures the Gin router
func (r *Router) SetupRouter() *gin.Engine {
	if r.config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	r.addMiddleware(router)
	r.addRoutes(router)

	return router
}

// addMiddleware adds middleware to the router
func (r *Router) addMiddleware(router *gin.Engine) {
	router.Use(middleware.RecoveryMiddleware(r.logger))
	router.Use(middleware.RequestIDMiddleware())

	serviceLogger := utils.NewServiceLogger(r.logger, "http-server")
	router.Use(middleware.LoggingMiddleware(serviceLogger))

	router.Use(middleware.CORSMiddleware(&r.config.Security))

	r.logger.Info("Middleware configured")
}

// addRoutes sets up all application routes
func (r *Router) addRoutes(router *gin.Engine) {
	healthHandler := handler.NewHealthHandler(r.db, r.instrumentService, r.config, r.logger)
	instrumentHandler := handler.NewInstrumentHandler(r.instrumentService, r.measurementService, r.logger)
	runHandler := handler.NewRunHandler(r.measurementService, r.logger)
	discoveryHandler := handler.NewDiscoveryHandler(r.discoveryService, r.logger)
	wsHandler := handler.NewWebSocketHandler(r.instrumentService, r.eventBus, r.config.Security.AllowedOrigins, r.logger)

	// Probes stay at the root
	healthHandler.RegisterRoutes(&router.RouterGroup)

	apiV1 := router.Group("/api/v1")
	instrumentHandler.RegisterRoutes(apiV1)
	runHandler.RegisterRoutes(apiV1)
	discoveryHandler.RegisterRoutes(apiV1)

	wsHandler.RegisterRoutes(router.Group("/ws"))

	r.addDocumentationRoutes(router)

	r.logger.Info("All routes configured successfully")
}

// addDocumentationRoutes sets up documentation routes
func (r *Router) addDocumentationRoutes(router *gin.Engine) {
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))

	router.GET("/docs", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})
}
