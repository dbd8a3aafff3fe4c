package service

import (
	"time"

	"github.com/gin-gonic/gin"
)

// requestLog logs one line per request, at Warn for 4xx and Error for 5xx.
func (api *APIServer) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		if errs := c.Errors.ByType(gin.ErrorTypePrivate).String(); errs != "" {
			attrs = append(attrs, "error", errs)
		}

		switch {
		case status >= 500:
			api.logger.Error("HTTP request", attrs...)
		case status >= 400:
			api.logger.Warn("HTTP request", attrs...)
		default:
			api.logger.Debug("HTTP request", attrs...)
		}
	}
}
