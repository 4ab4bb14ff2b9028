package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"cvStudio/internal/api/middleware"
	"cvStudio/internal/config"
	"cvStudio/internal/metrics"
)

// NewRouter 构建 Gin 路由引擎，包含健康检查与 /metrics。
func NewRouter(logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.CorrelationIDMiddleware(),
		middleware.SlogLoggerMiddleware(logger),
		metrics.GinMiddleware(),
	)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}

// WithCORS 在路由外包一层 CORS。未配置允许来源时原样返回。
func WithCORS(cfg config.APIConfig, handler http.Handler) http.Handler {
	origins := cfg.Origins()
	if len(origins) == 0 {
		return handler
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.CorrelationIDHeader},
		ExposedHeaders:   []string{"Content-Disposition", middleware.CorrelationIDHeader},
		AllowCredentials: true,
	}).Handler(handler)
}
