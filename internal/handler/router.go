package handler

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires every route. events and metrics may be nil.
func NewRouter(h *TopologyHandler, events, metrics http.Handler, logger *log.Logger) http.Handler {
	if logger == nil {
		logger = log.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(Recover(logger))
	r.Use(CORS)
	r.Use(Logger(logger))

	r.Get("/healthz", h.Healthz)

	r.Route("/api", func(r chi.Router) {
		r.Get("/topology", h.GetTopology)
		r.Get("/topology.dot", h.ExportDOT)
		r.Get("/topology.svg", h.ExportSVG)
		r.Post("/snapshots", h.PostSnapshot)
		r.Get("/telemetry", h.GetTelemetry)
		r.Get("/sources", h.GetSources)
	})

	if events != nil {
		r.Method(http.MethodGet, "/events", events)
	}
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	return r
}
