package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hajj-assistant/internal/common/logger"
)

const requestIDHeader = "X-Request-ID"

// NewRouter wires the handler's routes onto a gin engine.
func NewRouter(h *Handler, log logger.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))

	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	{
		v1.POST("/sessions/:id/turns", h.SubmitTurn)
		v1.GET("/sessions/:id", h.GetSession)
		v1.DELETE("/sessions/:id", h.DeleteSession)
		v1.GET("/stats", h.GetStats)
	}
	return router
}

func requestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)

		start := time.Now()
		c.Next()

		if c.FullPath() == "/health" || c.FullPath() == "/metrics" {
			return
		}
		log.Info("http request", map[string]interface{}{
			"requestId":  id,
			"method":     c.Request.Method,
			"route":      c.FullPath(),
			"status":     c.Writer.Status(),
			"durationMs": time.Since(start).Milliseconds(),
		})
	}
}
