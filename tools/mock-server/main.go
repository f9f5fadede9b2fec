// Package main implements a mock vendor reputation service for local development.
// It serves vendor metrics from a JSON fixture so the buybox server can run
// with vendor_metrics.backend set to http without a real upstream.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	domain "github.com/donaldgifford/buybox/pkg/types"
)

func main() {
	port := flag.Int("port", 8089, "port to listen on")
	fixtureFile := flag.String("fixture", "tools/mock-server/testdata/vendor_metrics.json", "path to vendor metrics fixture")
	latency := flag.Duration("latency", 0, "artificial delay added to every metrics response")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	fixture, err := loadFixture(*fixtureFile)
	if err != nil {
		logger.Error("failed to load fixture", "path", *fixtureFile, "error", err)
		os.Exit(1)
	}
	logger.Info("loaded fixture", "vendors", len(fixture))

	addr := fmt.Sprintf(":%d", *port)
	logger.Info("starting mock vendor metrics server", "addr", addr)

	srv := &http.Server{
		Addr:         addr,
		Handler:      requestLogger(logger, newMux(logger, fixture, *latency)),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func newMux(logger *slog.Logger, fixture map[string]domain.VendorMetrics, latency time.Duration) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/vendors/{vendor_id}/metrics", metricsHandler(logger, fixture, latency))
	mux.HandleFunc("GET /api/v1/vendors", listHandler(fixture))
	return mux
}

// loadFixture reads a JSON array of vendor metrics keyed by vendor ID.
func loadFixture(path string) (map[string]domain.VendorMetrics, error) {
	data, err := os.ReadFile(path) //nolint:gosec // fixture path from trusted CLI flag
	if err != nil {
		return nil, fmt.Errorf("reading fixture: %w", err)
	}
	var rows []domain.VendorMetrics
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing fixture: %w", err)
	}

	out := make(map[string]domain.VendorMetrics, len(rows))
	for _, m := range rows {
		if m.VendorID == "" {
			return nil, fmt.Errorf("parsing fixture: entry without vendor_id")
		}
		out[m.VendorID] = m
	}
	return out, nil
}

func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("request", "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

func metricsHandler(
	logger *slog.Logger,
	fixture map[string]domain.VendorMetrics,
	latency time.Duration,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("vendor_id")

		if latency > 0 {
			select {
			case <-time.After(latency):
			case <-r.Context().Done():
				return
			}
		}

		m, ok := fixture[id]
		if !ok {
			logger.Info("unknown vendor", "vendor_id", id)
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "vendor not found"})
			return
		}

		writeJSON(w, http.StatusOK, m)
		logger.Info("served metrics", "vendor_id", id, "rating", m.Rating)
	}
}

func listHandler(fixture map[string]domain.VendorMetrics) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		ids := make([]string, 0, len(fixture))
		for id := range fixture {
			ids = append(ids, id)
		}
		writeJSON(w, http.StatusOK, map[string]any{"vendors": ids, "total": len(ids)})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck,gosec // best-effort write to HTTP response in mock server
	json.NewEncoder(w).Encode(v)
}
