package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/telemetrydev/datapoint/internal/metrics"
	"github.com/telemetrydev/datapoint/internal/service"
)

// NewServer creates an HTTP server with all routes configured.
func NewServer(logger *slog.Logger, definitions *service.Definitions, platform *service.Platform) http.Handler {
	mux := chi.NewRouter()

	mux.Use(RequestID)
	mux.Use(Logging(logger))
	mux.Use(Recovery(logger))
	mux.Use(metrics.HTTP)

	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("/metrics", promhttp.Handler())

	humaAPI := humachi.New(mux, huma.DefaultConfig("datapoint", "1.0.0"))
	registerDefinitionRoutes(humaAPI, NewDefinitionHandler(definitions, logger))
	registerPlatformRoutes(humaAPI, NewPlatformHandler(platform, logger))

	return mux
}
