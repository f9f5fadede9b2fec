// Package middleware provides Echo middleware for the buybox HTTP server.
package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/donaldgifford/buybox/internal/metrics"
)

// unmatchedPath labels requests that matched no route so arbitrary URLs do
// not create new series.
const unmatchedPath = "unmatched"

// healthGauges maps probe paths to their up/down gauge. Probe and scrape
// paths are excluded from the request histogram and counter.
var healthGauges = map[string]prometheus.Gauge{
	"/healthz": metrics.HealthzUp,
	"/readyz":  metrics.ReadyzUp,
}

var metricsSkipPaths = map[string]struct{}{
	"/metrics": {},
	"/healthz": {},
	"/readyz":  {},
}

// Metrics returns Echo middleware that records request duration and status
// labelled by route template.
func Metrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := routePath(c)

			if _, skip := metricsSkipPaths[path]; skip {
				err := next(c)
				if g, ok := healthGauges[path]; ok {
					g.Set(boolGauge(isSuccess(c.Response().Status)))
				}
				return err
			}

			start := time.Now()
			err := next(c)

			labels := []string{c.Request().Method, path, strconv.Itoa(c.Response().Status)}
			metrics.HTTPRequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
			metrics.HTTPRequestsTotal.WithLabelValues(labels...).Inc()

			return err
		}
	}
}

func routePath(c echo.Context) string {
	if p := c.Path(); p != "" {
		return p
	}
	switch p := c.Request().URL.Path; p {
	case "/metrics", "/healthz", "/readyz":
		return p
	default:
		return unmatchedPath
	}
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func boolGauge(ok bool) float64 {
	if ok {
		return 1
	}
	return 0
}
