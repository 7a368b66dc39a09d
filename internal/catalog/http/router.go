package http

import (
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	healthStatusOK        = "ok"
	healthStatusUnhealthy = "unhealthy"
)

type HealthChecker interface {
	Health() error
}

// HealthFunc adapts a plain function to HealthChecker.
type HealthFunc func() error

func (f HealthFunc) Health() error { return f() }

// NewRouter builds the worker's operational surface. Every named check must
// pass for /healthz to report ok.
func NewRouter(checks map[string]HealthChecker, gatherer prometheus.Gatherer, logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(AccessLogMiddleware(logger))

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	router.GET("/healthz", healthHandler(checks, logger))
	return router
}

func healthHandler(checks map[string]HealthChecker, logger *slog.Logger) gin.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(c *gin.Context) {
		status := http.StatusOK
		components := make(gin.H, len(names))
		for _, name := range names {
			if err := checks[name].Health(); err != nil {
				logger.Warn("health check failed", "component", name, "error", err)
				components[name] = healthStatusUnhealthy
				status = http.StatusServiceUnavailable
				continue
			}
			components[name] = healthStatusOK
		}

		overall := healthStatusOK
		if status != http.StatusOK {
			overall = healthStatusUnhealthy
		}
		c.JSON(status, gin.H{"status": overall, "components": components})
	}
}

// AccessLogMiddleware logs at debug level since probes hit these routes constantly.
func AccessLogMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		)
	}
}
