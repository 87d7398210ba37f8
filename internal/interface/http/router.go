package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/horizon/internal/infra/config"
)

// NewRouter wires up the HTTP handlers and returns a configured server.
func NewRouter(cfg *config.Config, handler *Handler) *http.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(
		gin.Recovery(),
		requestLogger(handler.logger),
		corsMiddleware(cfg.HTTP.AllowedOrigins),
		errorHandlingMiddleware(handler.logger),
	)

	mountWeb(router)
	router.GET("/healthz", handler.Health)

	api := router.Group("/api/v1")
	{
		api.POST("/sessions", handler.CreateSession)
		api.GET("/sessions/:id", handler.GetSession)
		api.POST("/sessions/:id/search", handler.Search)
		api.POST("/sessions/:id/position", handler.ReportPosition)
		api.POST("/sessions/:id/position-error", handler.ReportPositionError)
		api.POST("/sessions/:id/cancel", handler.Cancel)
		api.POST("/sessions/:id/reset", handler.Reset)
		api.POST("/sessions/:id/phase", handler.SelectPhase)

		api.POST("/reports", handler.CreateReport)

		api.GET("/analyses", handler.ListAnalyses)
		api.GET("/analyses/export", handler.ExportAnalyses)
	}

	return &http.Server{
		Addr:           cfg.HTTP.Address,
		Handler:        router,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("http request", "method", c.Request.Method, "path", c.Request.URL.Path, "status", c.Writer.Status(), "latency_ms", latency.Milliseconds())
	}
}
