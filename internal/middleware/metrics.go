package middleware

import (
	"pestid/internal/metrics"

	"github.com/gin-gonic/gin"
)

// MetricsMiddleware 按路由模板统计请求数，未匹配的路由归为 unmatched
func MetricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		m.RecordHTTPRequest(c.FullPath(), c.Request.Method, c.Writer.Status())
	}
}
