package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/wire"

	"github.com/courseflow/courseflow/internal/config"
	"github.com/courseflow/courseflow/internal/handler"
	"github.com/courseflow/courseflow/internal/server/middleware"
)

// ProviderSet is the Wire provider set for the HTTP server layer.
var ProviderSet = wire.NewSet(
	SetupRouter,
	NewHTTPServer,
)

// SetupRouter builds the gin engine and wires middleware and routes.
func SetupRouter(
	cfg *config.Config,
	handlers *handler.Handlers,
) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.Logger())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.CORS))

	registerRoutes(r, handlers)
	return r
}

func registerRoutes(r *gin.Engine, h *handler.Handlers) {
	r.GET("/health", h.Health.Health)
	r.GET("/ready", h.Health.Ready)
	r.GET("/metrics", h.Metrics.Expose)
	r.GET("/metrics/json", h.Course.Snapshot)

	r.POST("/enroll", h.Enrollment.Enroll)
	r.GET("/enrollments/:idempotency_key", h.Enrollment.Lookup)
	r.GET("/courses", h.Course.List)
}

// NewHTTPServer wraps the router in an http.Server with the configured
// timeouts. Request deadlines are per-handler; only header reads and idle
// keep-alives are bounded here.
func NewHTTPServer(cfg *config.Config, router *gin.Engine) *http.Server {
	return &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           router,
		ReadHeaderTimeout: time.Duration(cfg.Server.ReadHeaderTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(cfg.Server.IdleTimeoutSeconds) * time.Second,
	}
}
