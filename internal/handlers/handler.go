package handlers

import (
	"net/http"

	"fleet_monitor/internal/logger"
	"fleet_monitor/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services    *service.Service
	log         *logger.Logger
	metrics     http.Handler
	authEnabled bool
}

type Option func(*Handler)

// WithMetrics serves h at GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(hd *Handler) { hd.metrics = h }
}

// WithoutAuth leaves /api/v1 unprotected.
func WithoutAuth() Option {
	return func(hd *Handler) { hd.authEnabled = false }
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger, opts ...Option) *Handler {
	h := &Handler{services: services, log: log, authEnabled: true}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health endpoint
	router.GET("/health", h.health)

	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics))
	}

	// Auth endpoints
	h.registerAuthRoutes(router)

	// Versioned API endpoints (protected)
	h.registerAPIRoutes(router)

	// Viewer snapshot stream (HTTP upgrade), same port
	if h.authEnabled {
		router.GET("/ws", h.streamAuthMiddleware, h.wsConnect)
	} else {
		router.GET("/ws", h.wsConnect)
	}

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	if h.authEnabled {
		api.Use(h.operatorMiddleware)
	}
	{
		h.registerMachineRoutes(api)
		h.registerNotificationRoutes(api)
		h.registerEventRoutes(api)
		h.registerConnectionRoutes(api)
	}
}

func (h *Handler) registerMachineRoutes(api *gin.RouterGroup) {
	machines := api.Group("/machines")
	{
		machines.GET("", h.listMachines)
		machines.GET("/:id", h.getMachine)
	}
}

func (h *Handler) registerNotificationRoutes(api *gin.RouterGroup) {
	notifications := api.Group("/notifications")
	{
		notifications.GET("", h.listNotifications)
		notifications.DELETE("/:id", h.dismissNotification)
	}
}

func (h *Handler) registerEventRoutes(api *gin.RouterGroup) {
	api.GET("/events", h.getEvents)
}

func (h *Handler) registerConnectionRoutes(api *gin.RouterGroup) {
	conn := api.Group("/connection")
	{
		conn.GET("", h.getConnection)
		conn.POST("/connect", h.connect)
		conn.POST("/disconnect", h.disconnect)
	}
}
