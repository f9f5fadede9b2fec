package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestRequestLog(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		method        string
		path          string
		status        int
		providedReqID string
		wantLogFields []string
	}{
		{
			name:   "buybox lookup with generated ID",
			method: http.MethodGet,
			path:   "/api/v1/products/p1/buybox",
			status: http.StatusOK,
			wantLogFields: []string{
				"level=INFO",
				"method=GET",
				"path=/api/v1/products/p1/buybox",
				"status=200",
				"duration_ms=",
				"request_id=",
			},
		},
		{
			name:   "override set",
			method: http.MethodPut,
			path:   "/api/v1/products/p1/override",
			status: http.StatusOK,
			wantLogFields: []string{
				"method=PUT",
				"path=/api/v1/products/p1/override",
			},
		},
		{
			name:          "provided request ID is kept",
			method:        http.MethodPost,
			path:          "/api/v1/buybox/batch",
			status:        http.StatusOK,
			providedReqID: "bbx-batch-7",
			wantLogFields: []string{
				"request_id=bbx-batch-7",
			},
		},
		{
			name:   "client error stays at info",
			method: http.MethodGet,
			path:   "/api/v1/products/missing/buybox/winner",
			status: http.StatusNotFound,
			wantLogFields: []string{
				"level=INFO",
				"status=404",
			},
		},
		{
			name:   "server error logs at warn",
			method: http.MethodGet,
			path:   "/api/v1/products/p1/buybox",
			status: http.StatusBadGateway,
			wantLogFields: []string{
				"level=WARN",
				"status=502",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))

			e := echo.New()
			req := httptest.NewRequest(tt.method, tt.path, http.NoBody)
			if tt.providedReqID != "" {
				req.Header.Set(requestIDHeader, tt.providedReqID)
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			handler := RequestLog(logger)(func(c echo.Context) error {
				return c.NoContent(tt.status)
			})
			require.NoError(t, handler(c))

			out := buf.String()
			for _, field := range tt.wantLogFields {
				assert.Contains(t, out, field)
			}
			assert.NotContains(t, out, "trace_id=", "no span in context")

			respID := rec.Header().Get(requestIDHeader)
			require.NotEmpty(t, respID)
			if tt.providedReqID != "" {
				assert.Equal(t, tt.providedReqID, respID)
			}
			assert.Equal(t, respID, c.Get("request_id"))
		})
	}
}

func TestRequestLog_ProbeSuppression(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		path     string
		statuses []int
		// logged[i] reports whether statuses[i] should produce a log line.
		logged []bool
	}{
		{
			name:     "repeated healthz successes logged once",
			path:     "/healthz",
			statuses: []int{200, 200, 200},
			logged:   []bool{true, false, false},
		},
		{
			name:     "readyz failures always logged",
			path:     "/readyz",
			statuses: []int{503, 503},
			logged:   []bool{true, true},
		},
		{
			name:     "readyz recovery logged again",
			path:     "/readyz",
			statuses: []int{200, 200, 503, 200, 200},
			logged:   []bool{true, false, true, true, false},
		},
		{
			name:     "api paths never suppressed",
			path:     "/api/v1/products/p1/buybox",
			statuses: []int{200, 200},
			logged:   []bool{true, true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Len(t, tt.logged, len(tt.statuses))

			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))

			e := echo.New()
			call := 0
			handler := RequestLog(logger)(func(c echo.Context) error {
				status := tt.statuses[call]
				call++
				return c.NoContent(status)
			})

			for i, want := range tt.logged {
				before := buf.Len()
				req := httptest.NewRequest(http.MethodGet, tt.path, http.NoBody)
				require.NoError(t, handler(e.NewContext(req, httptest.NewRecorder())))

				if want {
					assert.Greater(t, buf.Len(), before, "call %d should be logged", i)
				} else {
					assert.Equal(t, before, buf.Len(), "call %d should be suppressed", i)
				}
			}
		})
	}
}

func TestRequestLog_ProbesTrackedIndependently(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	e := echo.New()
	handler := RequestLog(logger)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	for _, path := range []string{"/healthz", "/readyz", "/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
		require.NoError(t, handler(e.NewContext(req, httptest.NewRecorder())))
	}

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "path=/healthz"))
	assert.Equal(t, 1, strings.Count(out, "path=/readyz"))
}

func TestRequestLog_TraceID(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x4b, 0xf9, 0x2f, 0x35, 0x77, 0xb3, 0x4d, 0xa6, 0xa3, 0xce, 0x92, 0x9d, 0x0e, 0x0e, 0x47, 0x36},
		SpanID:     trace.SpanID{0x00, 0xf0, 0x67, 0xaa, 0x0b, 0xa9, 0x02, 0xb7},
		TraceFlags: trace.FlagsSampled,
	})

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/p1/buybox", http.NoBody)
	req = req.WithContext(trace.ContextWithSpanContext(req.Context(), sc))

	handler := RequestLog(logger)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, handler(e.NewContext(req, httptest.NewRecorder())))

	assert.Contains(t, buf.String(), "trace_id=4bf92f3577b34da6a3ce929d0e0e4736")
}
