package middleware

import (
	"time" // Request duration

	"clube_beneficios/internal/metrics" // Prometheus collectors

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging
)

// RequestLogger logs each request with logrus and records it in the HTTP metrics
func RequestLogger(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath() // Route template keeps label cardinality bounded
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)
		m.ObserveHTTP(c.Request.Method, route, status, elapsed)

		entry := logrus.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"latency_ms": elapsed.Milliseconds(),
			"client_ip":  c.ClientIP(),
		})
		if id, ok := IdentityFrom(c); ok {
			entry = entry.WithFields(logrus.Fields{"sub_id": id.SubjectID, "role": id.Role})
		}
		if club, ok := ClubFrom(c); ok {
			entry = entry.WithField("club", club.Slug)
		}
		switch {
		case status >= 500:
			entry.Error("Request failed")
		case status >= 400:
			entry.Warn("Request rejected")
		default:
			entry.Info("Request handled")
		}
	}
}
