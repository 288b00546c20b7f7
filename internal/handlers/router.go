package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"activity-sync/internal/health"
	"activity-sync/internal/middleware"
	"activity-sync/internal/observability"
	"activity-sync/internal/telemetry"
)

type RouterConfig struct {
	ServiceName string
	AdminToken  string
	DebugRoutes bool
	Checker     *health.Checker
	Sweeps      *SweepHandler
	Chats       *ChatHandler
	Emitter     *telemetry.InvocationEmitter
	Log         *zap.Logger
}

// NewRouter builds the admin HTTP API.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(observability.HTTPMetricsMiddleware())
	router.Use(RequestLogger(cfg.Log))

	router.GET("/healthz", func(c *gin.Context) {
		st := cfg.Checker.Check(c.Request.Context())
		code := http.StatusOK
		if !st.OK {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, st)
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	admin := router.Group("/", middleware.AdminAuth(cfg.AdminToken))
	admin.POST("/sweeps/archive", cfg.Sweeps.RunArchive)
	admin.POST("/sweeps/cleanup", cfg.Sweeps.RunCleanup)
	admin.GET("/chats/:activity_id", cfg.Chats.GetChat)
	admin.GET("/users/:user_id/chats", cfg.Chats.ListUserChats)
	RegisterDebugRoutes(admin, cfg.Emitter, cfg.DebugRoutes)

	return router
}
