package service

import (
	"time"

	"github.com/gin-gonic/gin"
)

// middleware logs HTTP request details
func (api *APIServer) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// Call the next handler
		c.Next()

		api.logger.Info("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}
