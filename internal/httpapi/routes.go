package httpapi

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

func newRouter(logger *slog.Logger, h *handlers) *gin.Engine {
	r := gin.New()
	r.Use(requestLogger(logger))
	r.Use(gin.Recovery())

	r.GET("/status", h.status)

	r.GET("/variables", h.listVariables)
	r.GET("/variables/:id", h.getVariable)

	r.GET("/actions", h.listActions)
	r.POST("/actions/:id", h.runAction)

	r.GET("/feedbacks", h.listFeedbacks)
	r.PUT("/feedbacks/:id", h.subscribeFeedback)
	r.DELETE("/feedbacks/:id", h.unsubscribeFeedback)

	r.GET("/config", h.getConfig)
	r.PUT("/config", h.updateConfig)

	r.GET("/history/:variable", h.history)
	r.DELETE("/history", h.clearHistory)

	return r
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"client", c.ClientIP(),
		)
	}
}
