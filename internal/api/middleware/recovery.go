package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/trace"

	"github.com/donaldgifford/buybox/internal/metrics"
)

const stackSize = 8 << 10

// Recovery returns Echo middleware that turns a handler panic into a 500.
// The panic is logged with its stack, the request ID set by RequestLog and the
// active trace ID, and counted by route. Nothing is written when the handler
// already committed a response.
func Recovery(log *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}

				buf := make([]byte, stackSize)
				n := runtime.Stack(buf, false)

				route := routePath(c)
				metrics.HTTPPanicsTotal.WithLabelValues(route).Inc()

				attrs := []any{
					"error", fmt.Sprint(r),
					"method", c.Request().Method,
					"path", c.Request().URL.Path,
					"route", route,
					"stack", string(buf[:n]),
				}
				reqID, _ := c.Get("request_id").(string)
				if reqID != "" {
					attrs = append(attrs, "request_id", reqID)
				}
				if sc := trace.SpanContextFromContext(c.Request().Context()); sc.HasTraceID() {
					attrs = append(attrs, "trace_id", sc.TraceID().String())
				}
				log.Error("panic recovered", attrs...)

				if c.Response().Committed {
					return
				}
				body := map[string]string{"error": "internal server error"}
				if reqID != "" {
					body["request_id"] = reqID
				}
				err = c.JSON(http.StatusInternalServerError, body)
			}()
			return next(c)
		}
	}
}
