package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"genimage/internal/metrics"
)

// Metrics records request latency labelled by route template, so ids in the
// path do not explode label cardinality.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequests.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
